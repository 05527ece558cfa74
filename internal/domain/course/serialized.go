package course

import (
	"fmt"

	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// StartGeohashPrecision is the geohash length stored for a course start (about 150m cells).
const StartGeohashPrecision = 7

// SerializedRoute is a finished course, as persisted with a running event.
type SerializedRoute struct {
	Waypoints       []Waypoint `json:"waypoints"`
	TotalDistanceKm float64    `json:"total_distance_km"`
}

// Validate checks the waypoint count and every coordinate.
func (r SerializedRoute) Validate() error {
	if len(r.Waypoints) < 2 {
		return fmt.Errorf("%w: have %d", ErrRouteTooShort, len(r.Waypoints))
	}
	for i, w := range r.Waypoints {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("waypoint %d: %w", i, err)
		}
	}
	return nil
}

// FromSerialized re-derives a route from client-supplied data.
// The submitted total is discarded and recomputed.
func FromSerialized(r SerializedRoute, opts ...Option) (SerializedRoute, error) {
	b, err := Restore(r.Waypoints, opts...)
	if err != nil {
		return SerializedRoute{}, err
	}
	return b.Finalize()
}

// Start returns the first waypoint, or the zero value for an empty route.
func (r SerializedRoute) Start() Waypoint {
	if len(r.Waypoints) == 0 {
		return Waypoint{}
	}
	return r.Waypoints[0]
}

// StartGeohash encodes the start waypoint at StartGeohashPrecision.
func (r SerializedRoute) StartGeohash() string {
	if len(r.Waypoints) == 0 {
		return ""
	}
	s := r.Start()
	return geohash.EncodeWithPrecision(s.Latitude, s.Longitude, StartGeohashPrecision)
}

// LineString converts the waypoints to lon/lat order.
func (r SerializedRoute) LineString() orb.LineString {
	ls := make(orb.LineString, 0, len(r.Waypoints))
	for _, w := range r.Waypoints {
		ls = append(ls, orb.Point{w.Longitude, w.Latitude})
	}
	return ls
}

// Bound returns the bounding box used as the map's initial region.
func (r SerializedRoute) Bound() orb.Bound {
	return r.LineString().Bound()
}

// GeoJSON returns the course as a LineString feature.
func (r SerializedRoute) GeoJSON() *geojson.Feature {
	f := geojson.NewFeature(r.LineString())
	f.Properties["total_distance_km"] = r.TotalDistanceKm
	f.Properties["waypoint_count"] = len(r.Waypoints)
	return f
}
