// Package countries holds the country dataset: boundary geometries,
// centroids, and a case-insensitive name index.
package countries

import (
	"github.com/sourcegraph/conc"
	"golang.org/x/text/cases"
)

// GeometryType tags a Geometry as a single polygon or a multi-polygon.
type GeometryType string

const (
	TypePolygon      GeometryType = "Polygon"
	TypeMultiPolygon GeometryType = "MultiPolygon"
)

// Point is a single coordinate pair. GeoJSON ordering, longitude first.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Ring is an ordered boundary ring.
type Ring []Point

// Geometry is a tagged variant of a country boundary. The variant is
// decided once at load time, never inferred per call from nesting depth.
type Geometry struct {
	Type  GeometryType `json:"type"`
	Ring  Ring         `json:"ring,omitempty"`
	Rings []Ring       `json:"rings,omitempty"`
}

// Country is a single dataset record. Centroid is precomputed at load.
type Country struct {
	Name     string   `json:"name"`
	Region   string   `json:"region,omitempty"`
	Geometry Geometry `json:"-"`
	Centroid Point    `json:"centroid"`
}

// Points returns the total boundary point count across all rings.
// Used as a coarse landmass size proxy for weighted selection.
func (c *Country) Points() int {
	if c.Geometry.Type == TypeMultiPolygon {
		var n int
		for _, ring := range c.Geometry.Rings {
			n += len(ring)
		}
		return n
	}

	return len(c.Geometry.Ring)
}

// foldName normalizes a country name for case-insensitive lookup.
// A cases.Caser is stateful, so one is created per call.
func foldName(name string) string {
	return cases.Fold().String(name)
}

// Dataset is an order-preserving country list with a folded name index.
// It is immutable once built; concurrent readers need no locking.
type Dataset struct {
	countries []*Country
	index     map[string]*Country
}

// NewDataset builds a dataset from a country list, preserving order.
// Centroids are computed concurrently across the list.
func NewDataset(list []*Country) *Dataset {
	index := make(map[string]*Country, len(list))

	var wg conc.WaitGroup

	for _, country := range list {
		index[foldName(country.Name)] = country

		c := country

		wg.Go(func() {
			c.Centroid = Centroid(c.Geometry)
		})
	}

	wg.Wait()

	return &Dataset{
		countries: list,
		index:     index,
	}
}

// Lookup finds a country by name, case-insensitively.
func (d *Dataset) Lookup(name string) (*Country, bool) {
	c, ok := d.index[foldName(name)]

	return c, ok
}

// Countries returns the ordered country list. Callers must not mutate it.
func (d *Dataset) Countries() []*Country {
	return d.countries
}

// Len returns the number of countries in the dataset.
func (d *Dataset) Len() int {
	return len(d.countries)
}
