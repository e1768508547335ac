package countries

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrUnsupportedFormat is returned when an unsupported dataset format is used.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// minRingPoints is the smallest ring we accept. Anything below cannot
// enclose an area and is dropped at load time.
const minRingPoints = 3

// LoadFile loads a country dataset from a file, dispatching on extension.
func LoadFile(file string) ([]*Country, error) {
	f, err := os.Open(file)

	if err != nil {
		return nil, errors.Wrap(err, "unable to open dataset")
	}

	defer f.Close()

	switch path.Ext(file) {
	case ".geojson":
		return LoadGeoJSON(f)
	case ".json":
		return LoadJSON(f)
	}

	return nil, ErrUnsupportedFormat
}

// LoadURL fetches a dataset over http(s) using the provided client.
// The url's path extension decides the format, like LoadFile.
func LoadURL(client *http.Client, url string) ([]*Country, error) {
	res, err := client.Get(url)

	if err != nil {
		return nil, errors.Wrap(err, "unable to fetch dataset")
	}

	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected dataset status %d", res.StatusCode)
	}

	if strings.HasSuffix(url, ".geojson") {
		return LoadGeoJSON(res.Body)
	}

	return LoadJSON(res.Body)
}

// countryRecord is the compact native dataset format, one of polygon or
// multipolygon set per record.
type countryRecord struct {
	Name         string         `json:"name"`
	Region       string         `json:"region"`
	Polygon      [][2]float64   `json:"polygon,omitempty"`
	MultiPolygon [][][2]float64 `json:"multipolygon,omitempty"`
}

// LoadJSON loads the compact native array format.
func LoadJSON(f io.Reader) ([]*Country, error) {
	var records []countryRecord

	if err := json.NewDecoder(f).Decode(&records); err != nil {
		return nil, errors.Wrap(err, "unable to decode dataset")
	}

	out := make([]*Country, 0, len(records))

	for _, record := range records {
		var geom Geometry

		if len(record.MultiPolygon) > 0 {
			geom = Geometry{
				Type:  TypeMultiPolygon,
				Rings: toRings(record.MultiPolygon),
			}
		} else {
			geom = Geometry{
				Type: TypePolygon,
				Ring: toRing(record.Polygon),
			}
		}

		c := &Country{
			Name:     record.Name,
			Region:   record.Region,
			Geometry: geom,
		}

		if !validGeometry(c) {
			continue
		}

		out = append(out, c)
	}

	return out, nil
}

// featureCollection is the subset of GeoJSON we consume.
type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Properties map[string]any  `json:"properties"`
	Geometry   featureGeometry `json:"geometry"`
}

type featureGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Property keys tried in order for names and regions. Natural Earth
// exports use the uppercase variants.
var (
	nameKeys   = []string{"name", "NAME", "ADMIN", "admin"}
	regionKeys = []string{"region", "continent", "REGION", "CONTINENT"}
)

// LoadGeoJSON loads a GeoJSON FeatureCollection. Only the outer ring of
// each polygon is kept; holes do not affect the centroid we compute.
func LoadGeoJSON(f io.Reader) ([]*Country, error) {
	var collection featureCollection

	if err := json.NewDecoder(f).Decode(&collection); err != nil {
		return nil, errors.Wrap(err, "unable to decode geojson")
	}

	out := make([]*Country, 0, len(collection.Features))

	for _, feat := range collection.Features {
		name := property(feat.Properties, nameKeys)

		if name == "" {
			log.Warning("Skipping feature without a name property")
			continue
		}

		geom, err := parseGeometry(feat.Geometry)

		if err != nil {
			log.WithFields(log.Fields{
				"error":   err,
				"country": name,
			}).Warning("Skipping feature with malformed geometry")
			continue
		}

		c := &Country{
			Name:     name,
			Region:   property(feat.Properties, regionKeys),
			Geometry: geom,
		}

		if !validGeometry(c) {
			continue
		}

		out = append(out, c)
	}

	return out, nil
}

func parseGeometry(g featureGeometry) (Geometry, error) {
	switch g.Type {
	case "Polygon":
		var rings [][][2]float64

		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return Geometry{}, err
		}

		if len(rings) == 0 {
			return Geometry{}, errors.New("polygon has no rings")
		}

		return Geometry{
			Type: TypePolygon,
			Ring: toRing(rings[0]),
		}, nil
	case "MultiPolygon":
		var polys [][][][2]float64

		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return Geometry{}, err
		}

		rings := make([]Ring, 0, len(polys))

		for _, poly := range polys {
			if len(poly) == 0 {
				continue
			}

			rings = append(rings, toRing(poly[0]))
		}

		return Geometry{
			Type:  TypeMultiPolygon,
			Rings: rings,
		}, nil
	}

	return Geometry{}, errors.Errorf("unsupported geometry type %q", g.Type)
}

func property(props map[string]any, keys []string) string {
	for _, key := range keys {
		if v, ok := props[key].(string); ok && v != "" {
			return v
		}
	}

	return ""
}

func toRing(coords [][2]float64) Ring {
	ring := make(Ring, len(coords))

	for i, c := range coords {
		ring[i] = Point{Lon: c[0], Lat: c[1]}
	}

	return ring
}

func toRings(polys [][][2]float64) []Ring {
	rings := make([]Ring, len(polys))

	for i, poly := range polys {
		rings[i] = toRing(poly)
	}

	return rings
}

// validGeometry enforces the load-time invariants: a record must carry a
// non-empty geometry, and every ring needs at least three points.
func validGeometry(c *Country) bool {
	rings := c.Geometry.Rings

	if c.Geometry.Type == TypePolygon {
		rings = []Ring{c.Geometry.Ring}
	}

	// A polygon with a nil ring is missing geometry, not degenerate.
	if len(rings) == 0 || (len(rings) == 1 && len(rings[0]) == 0) {
		log.WithField("country", c.Name).Warning("Skipping country without geometry")
		return false
	}

	for _, ring := range rings {
		if len(ring) < minRingPoints {
			log.WithFields(log.Fields{
				"country": c.Name,
				"points":  len(ring),
			}).Warning("Skipping country with degenerate ring")
			return false
		}
	}

	return true
}
