package course

import "fmt"

// DefaultMaxWaypoints is the waypoint capacity of a Builder unless overridden.
const DefaultMaxWaypoints = 20

// Phase is the editing state of a Builder.
type Phase string

const (
	PhaseEmpty    Phase = "empty"
	PhaseBuilding Phase = "building"
)

// RouteState is the result of every editing operation.
type RouteState struct {
	Waypoints       []Waypoint `json:"waypoints"`
	TotalDistanceKm float64    `json:"total_distance_km"`
}

// Option configures a Builder.
type Option func(*Builder)

// WithMaxWaypoints sets the waypoint capacity. Values below 2 are ignored.
func WithMaxWaypoints(n int) Option {
	return func(b *Builder) {
		if n >= 2 {
			b.maxWaypoints = n
		}
	}
}

// Builder owns the waypoint sequence of one course-editing session.
// It is not safe for concurrent use.
//
// Every operation either succeeds completely or returns an error with the
// sequence untouched. The total distance is recomputed over the whole
// sequence after each change.
type Builder struct {
	waypoints    []Waypoint
	maxWaypoints int
	totalKm      float64
}

// NewBuilder returns an empty Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{maxWaypoints: DefaultMaxWaypoints}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Restore rebuilds a Builder from a previously saved waypoint list.
func Restore(waypoints []Waypoint, opts ...Option) (*Builder, error) {
	b := NewBuilder(opts...)
	if len(waypoints) > b.maxWaypoints {
		return nil, fmt.Errorf("%w: %d waypoints, max %d", ErrCapacityExceeded, len(waypoints), b.maxWaypoints)
	}
	for i, w := range waypoints {
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
	}
	b.replace(append([]Waypoint(nil), waypoints...))
	return b, nil
}

// AddWaypoint appends (lat, lon) to the end of the course.
func (b *Builder) AddWaypoint(lat, lon float64) (RouteState, error) {
	w, err := NewWaypoint(lat, lon)
	if err != nil {
		return RouteState{}, err
	}
	if len(b.waypoints) >= b.maxWaypoints {
		return RouteState{}, fmt.Errorf("%w: max %d", ErrCapacityExceeded, b.maxWaypoints)
	}

	next := make([]Waypoint, len(b.waypoints), len(b.waypoints)+1)
	copy(next, b.waypoints)
	b.replace(append(next, w))
	return b.State(), nil
}

// TruncateAfter keeps waypoints [0..index] and discards the rest.
func (b *Builder) TruncateAfter(index int) (RouteState, error) {
	if index < 0 || index >= len(b.waypoints) {
		return RouteState{}, fmt.Errorf("%w: %d of %d", ErrInvalidIndex, index, len(b.waypoints))
	}
	if index == 0 {
		return RouteState{}, ErrCannotRemoveStart
	}

	b.replace(append([]Waypoint(nil), b.waypoints[:index+1]...))
	return b.State(), nil
}

// Clear removes every waypoint, including the start.
func (b *Builder) Clear() RouteState {
	b.replace(nil)
	return b.State()
}

// Finalize exports the course. It does not modify the Builder.
func (b *Builder) Finalize() (SerializedRoute, error) {
	if len(b.waypoints) < 2 {
		return SerializedRoute{}, fmt.Errorf("%w: have %d", ErrRouteTooShort, len(b.waypoints))
	}
	return SerializedRoute{
		Waypoints:       b.copyWaypoints(),
		TotalDistanceKm: round2(b.totalKm),
	}, nil
}

// State returns a copy of the current sequence and its unrounded total.
func (b *Builder) State() RouteState {
	return RouteState{
		Waypoints:       b.copyWaypoints(),
		TotalDistanceKm: b.totalKm,
	}
}

func (b *Builder) Phase() Phase {
	if len(b.waypoints) == 0 {
		return PhaseEmpty
	}
	return PhaseBuilding
}

func (b *Builder) Len() int { return len(b.waypoints) }

func (b *Builder) MaxWaypoints() int { return b.maxWaypoints }

func (b *Builder) replace(waypoints []Waypoint) {
	b.waypoints = waypoints
	b.totalKm = PathDistance(waypoints)
}

func (b *Builder) copyWaypoints() []Waypoint {
	out := make([]Waypoint, len(b.waypoints))
	copy(out, b.waypoints)
	return out
}
