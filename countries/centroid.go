package countries

// Centroid reduces a boundary to a single representative coordinate.
//
// The result is the unweighted mean of the ring's points, not a true
// area centroid; dense coastline sampling biases it toward detailed
// segments, which is an accepted approximation. For a multi-polygon the
// ring with the most points wins, a proxy for the largest landmass.
//
// Empty or malformed input yields the origin, which callers must treat
// as a degenerate sentinel rather than a valid Pacific coordinate.
func Centroid(g Geometry) Point {
	ring := g.Ring

	if g.Type == TypeMultiPolygon {
		ring = largestRing(g.Rings)
	}

	if len(ring) == 0 {
		return Point{}
	}

	var lon, lat float64

	for _, p := range ring {
		lon += p.Lon
		lat += p.Lat
	}

	n := float64(len(ring))

	return Point{
		Lon: lon / n,
		Lat: lat / n,
	}
}

func largestRing(rings []Ring) Ring {
	var largest Ring

	for _, ring := range rings {
		if len(ring) > len(largest) {
			largest = ring
		}
	}

	return largest
}
