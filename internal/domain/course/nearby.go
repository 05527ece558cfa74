package course

import (
	"math"

	"github.com/mmcloughlin/geohash"
)

const (
	maxNearbyPrecision = 7
	kmPerDegree        = EarthRadiusKm * math.Pi / 180
)

// NearbyPrefixes returns the geohash cell containing (lat, lon) plus its eight
// neighbours, at the finest precision whose cells are at least radiusKm tall
// and wide around lat. It returns nil when no precision covers the radius, in
// which case the search cannot be narrowed spatially.
// Candidates matched by prefix must still be filtered with Distance.
func NearbyPrefixes(lat, lon, radiusKm float64) []string {
	if !(radiusKm > 0) || math.IsInf(radiusKm, 0) {
		return nil
	}
	for p := uint(maxNearbyPrecision); p >= 1; p-- {
		heightKm, widthKm := cellSizeKm(p, lat, radiusKm)
		if heightKm >= radiusKm && widthKm >= radiusKm {
			center := geohash.EncodeWithPrecision(lat, lon, p)
			return append([]string{center}, geohash.Neighbors(center)...)
		}
	}
	return nil
}

// cellSizeKm returns the height and width of a geohash cell at precision.
// Width shrinks with cos(latitude), so it is measured at the poleward edge of
// the search radius.
func cellSizeKm(precision uint, lat, radiusKm float64) (heightKm, widthKm float64) {
	bits := 5 * precision
	lonBits := (bits + 1) / 2
	latBits := bits / 2

	heightKm = 180 / float64(uint64(1)<<latBits) * kmPerDegree
	edge := math.Min(90, math.Abs(lat)+radiusKm/kmPerDegree)
	widthKm = 360 / float64(uint64(1)<<lonBits) * kmPerDegree * math.Cos(toRadians(edge))
	return heightKm, widthKm
}
