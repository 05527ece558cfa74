// Package course builds running courses from an ordered list of map waypoints.
package course

import (
	"fmt"
	"math"
)

// Waypoint is a single coordinate on a course, in signed decimal degrees.
type Waypoint struct {
	Latitude  float64 `json:"latitude" msgpack:"lat"`
	Longitude float64 `json:"longitude" msgpack:"lng"`
}

// NewWaypoint validates lat/lon and returns the waypoint.
func NewWaypoint(lat, lon float64) (Waypoint, error) {
	w := Waypoint{Latitude: lat, Longitude: lon}
	if err := w.Validate(); err != nil {
		return Waypoint{}, err
	}
	return w, nil
}

// Validate reports ErrInvalidCoordinate for non-finite or out-of-range values.
func (w Waypoint) Validate() error {
	if math.IsNaN(w.Latitude) || math.IsInf(w.Latitude, 0) || w.Latitude < -90 || w.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinate, w.Latitude)
	}
	if math.IsNaN(w.Longitude) || math.IsInf(w.Longitude, 0) || w.Longitude < -180 || w.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, w.Longitude)
	}
	return nil
}
