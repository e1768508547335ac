package game

import (
	"math"
)

// Tier is the discrete proximity bucket for a guess.
type Tier string

const (
	TierCorrect   Tier = "correct"
	TierVeryClose Tier = "very_close"
	TierClose     Tier = "close"
	TierFar       Tier = "far"
	TierVeryFar   Tier = "very_far"
)

// earthRadiusKm is the spherical approximation radius.
const earthRadiusKm = 6371

// haversin(θ) function
func hsin(theta float64) float64 {
	return math.Pow(math.Sin(theta/2), 2)
}

// Distance returns the great-circle distance in kilometers between two
// points through the Haversin Distance Formula, using a spherical
// approximation of the Earth with accuracy for small distances.
//
// Point coordinates are supplied in degrees and converted to radians
// inside the function.
// http://en.wikipedia.org/wiki/Haversine_formula
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	la1 := lat1 * math.Pi / 180
	lo1 := lon1 * math.Pi / 180
	la2 := lat2 * math.Pi / 180
	lo2 := lon2 * math.Pi / 180

	h := hsin(la2-la1) + math.Cos(la1)*math.Cos(la2)*hsin(lo2-lo1)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// TierFor buckets a distance into a proximity tier. The intervals are
// half-open and evaluated in order, first match wins. A non-finite
// distance, as produced by a degenerate centroid upstream, always maps
// to TierVeryFar and never to TierCorrect.
func TierFor(distanceKm float64) Tier {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) {
		return TierVeryFar
	}

	switch {
	case distanceKm == 0:
		return TierCorrect
	case distanceKm < 1000:
		return TierVeryClose
	case distanceKm < 2500:
		return TierClose
	case distanceKm < 5000:
		return TierFar
	}

	return TierVeryFar
}

// Score computes the great-circle distance between two coordinates and
// its proximity tier in one call.
func Score(lat1, lon1, lat2, lon2 float64) (float64, Tier) {
	distance := Distance(lat1, lon1, lat2, lon2)

	return distance, TierFor(distance)
}
