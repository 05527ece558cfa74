package course

import (
	"fmt"
	"time"
)

// DefaultPaceSecPerKm is a 6:00 min/km pace.
const DefaultPaceSecPerKm = 360

// DurationEstimator estimates how long a course takes to run.
type DurationEstimator interface {
	// Estimate returns the expected finishing time for distanceKm.
	Estimate(distanceKm float64) (time.Duration, error)
}

// StandardPaceEstimator assumes an even pace over the whole course.
type StandardPaceEstimator struct {
	secPerKm int
}

// NewStandardPaceEstimator creates an estimator. A non-positive pace falls back to DefaultPaceSecPerKm.
func NewStandardPaceEstimator(secPerKm int) *StandardPaceEstimator {
	if secPerKm <= 0 {
		secPerKm = DefaultPaceSecPerKm
	}
	return &StandardPaceEstimator{secPerKm: secPerKm}
}

// Estimate rounds to the nearest second.
func (e *StandardPaceEstimator) Estimate(distanceKm float64) (time.Duration, error) {
	if distanceKm < 0 {
		return 0, fmt.Errorf("distance cannot be negative")
	}
	seconds := distanceKm * float64(e.secPerKm)
	return time.Duration(seconds * float64(time.Second)).Round(time.Second), nil
}

// PaceSecPerKm returns the configured pace.
func (e *StandardPaceEstimator) PaceSecPerKm() int { return e.secPerKm }
