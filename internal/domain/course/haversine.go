package course

import "math"

// EarthRadiusKm is the mean Earth radius used for all course distances.
const EarthRadiusKm = 6371.0

// Distance returns the great-circle distance between a and b in kilometers.
func Distance(a, b Waypoint) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PathDistance sums Distance over every consecutive pair, in order.
func PathDistance(points []Waypoint) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
