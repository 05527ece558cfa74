package course

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runcrew/service-running/internal/common/domain"
)

var (
	cityHall   = Waypoint{Latitude: 37.5665, Longitude: 126.9780}
	eulji      = Waypoint{Latitude: 37.5651, Longitude: 126.9895}
	dongdaemun = Waypoint{Latitude: 37.5712, Longitude: 127.0095}
)

func mustAdd(t *testing.T, b *Builder, w Waypoint) RouteState {
	t.Helper()
	state, err := b.AddWaypoint(w.Latitude, w.Longitude)
	require.NoError(t, err)
	return state
}

func TestNewBuilder_StartsEmpty(t *testing.T) {
	b := NewBuilder()

	assert.Equal(t, PhaseEmpty, b.Phase())
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, DefaultMaxWaypoints, b.MaxWaypoints())
	assert.Zero(t, b.State().TotalDistanceKm)
	assert.Empty(t, b.State().Waypoints)
}

func TestAddWaypoint_ScenarioA(t *testing.T) {
	b := NewBuilder()

	state := mustAdd(t, b, cityHall)
	assert.Equal(t, PhaseBuilding, b.Phase())
	assert.Zero(t, state.TotalDistanceKm, "a single waypoint has no distance")

	state = mustAdd(t, b, eulji)
	assert.InDelta(t, 1.05, state.TotalDistanceKm, 0.05)
	assert.Equal(t, []Waypoint{cityHall, eulji}, state.Waypoints)
}

func TestAddWaypoint_DistanceNeverDecreases(t *testing.T) {
	b := NewBuilder()
	path := []Waypoint{cityHall, eulji, dongdaemun, eulji, eulji, cityHall}

	prev := 0.0
	for _, w := range path {
		state := mustAdd(t, b, w)
		assert.GreaterOrEqual(t, state.TotalDistanceKm, prev)
		prev = state.TotalDistanceKm
	}
}

func TestAddWaypoint_SumsConsecutivePairs(t *testing.T) {
	b := NewBuilder()
	mustAdd(t, b, cityHall)
	mustAdd(t, b, dongdaemun)
	state := mustAdd(t, b, cityHall)

	direct := Distance(cityHall, cityHall)
	assert.Zero(t, direct)
	assert.InDelta(t, 2*Distance(cityHall, dongdaemun), state.TotalDistanceKm, 1e-9,
		"total is the path length, not first-to-last")
}

func TestAddWaypoint_RejectsInvalidCoordinates(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
	}{
		{"latitude too high", 90.0001, 0},
		{"latitude too low", -91, 0},
		{"longitude too high", 0, 180.5},
		{"longitude too low", 0, -181},
		{"NaN latitude", math.NaN(), 0},
		{"infinite longitude", 0, math.Inf(1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder()
			mustAdd(t, b, cityHall)

			_, err := b.AddWaypoint(tc.lat, tc.lon)
			assert.ErrorIs(t, err, ErrInvalidCoordinate)
			assert.Equal(t, 1, b.Len())
		})
	}
}

func TestAddWaypoint_AcceptsBoundaryCoordinates(t *testing.T) {
	b := NewBuilder()
	for _, w := range []Waypoint{{90, 180}, {-90, -180}, {0, 0}} {
		mustAdd(t, b, w)
	}
	assert.Equal(t, 3, b.Len())
}

func TestAddWaypoint_ScenarioD_CapacityExceeded(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < DefaultMaxWaypoints; i++ {
		mustAdd(t, b, Waypoint{Latitude: 37.5 + float64(i)*0.001, Longitude: 127.0})
	}
	before := b.State()

	_, err := b.AddWaypoint(37.6, 127.1)
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, DefaultMaxWaypoints, b.Len())
	assert.Equal(t, before, b.State())
}

func TestWithMaxWaypoints(t *testing.T) {
	b := NewBuilder(WithMaxWaypoints(2))
	mustAdd(t, b, cityHall)
	mustAdd(t, b, eulji)

	_, err := b.AddWaypoint(dongdaemun.Latitude, dongdaemun.Longitude)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	assert.Equal(t, DefaultMaxWaypoints, NewBuilder(WithMaxWaypoints(1)).MaxWaypoints())
}

func TestTruncateAfter_ScenarioB(t *testing.T) {
	b := NewBuilder()
	mustAdd(t, b, cityHall)
	mustAdd(t, b, eulji)
	mustAdd(t, b, dongdaemun)

	state, err := b.TruncateAfter(1)
	require.NoError(t, err)
	assert.Equal(t, []Waypoint{cityHall, eulji}, state.Waypoints)
	assert.InDelta(t, Distance(cityHall, eulji), state.TotalDistanceKm, 1e-12)
}

func TestTruncateAfter_RecomputesForEveryIndex(t *testing.T) {
	path := []Waypoint{cityHall, eulji, dongdaemun, {37.58, 127.02}, {37.59, 127.03}}

	for index := 1; index < len(path); index++ {
		b, err := Restore(path)
		require.NoError(t, err)

		state, err := b.TruncateAfter(index)
		require.NoError(t, err)
		assert.Len(t, state.Waypoints, index+1)
		assert.Equal(t, PathDistance(path[:index+1]), state.TotalDistanceKm)
	}
}

func TestTruncateAfter_LastIndexKeepsEverything(t *testing.T) {
	b := NewBuilder()
	mustAdd(t, b, cityHall)
	before := mustAdd(t, b, eulji)

	state, err := b.TruncateAfter(1)
	require.NoError(t, err)
	assert.Equal(t, before, state)
}

func TestTruncateAfter_ScenarioC_CannotRemoveStart(t *testing.T) {
	b := NewBuilder()
	mustAdd(t, b, cityHall)
	mustAdd(t, b, eulji)
	before := b.State()

	_, err := b.TruncateAfter(0)
	require.ErrorIs(t, err, ErrCannotRemoveStart)
	assert.Equal(t, before, b.State())
}

func TestTruncateAfter_InvalidIndex(t *testing.T) {
	b := NewBuilder()
	_, err := b.TruncateAfter(0)
	assert.ErrorIs(t, err, ErrInvalidIndex, "empty route has no index 0")

	mustAdd(t, b, cityHall)
	mustAdd(t, b, eulji)
	for _, index := range []int{-1, 2, 10} {
		_, err := b.TruncateAfter(index)
		assert.ErrorIs(t, err, ErrInvalidIndex)
	}
	assert.Equal(t, 2, b.Len())
}

func TestClear(t *testing.T) {
	b := NewBuilder()
	mustAdd(t, b, cityHall)
	mustAdd(t, b, eulji)

	state := b.Clear()
	assert.Empty(t, state.Waypoints)
	assert.Zero(t, state.TotalDistanceKm)
	assert.Equal(t, PhaseEmpty, b.Phase())

	state = b.Clear()
	assert.Empty(t, state.Waypoints)

	mustAdd(t, b, dongdaemun)
	assert.Equal(t, dongdaemun, b.State().Waypoints[0])
}

func TestFinalize_Boundary(t *testing.T) {
	b := NewBuilder()
	_, err := b.Finalize()
	assert.ErrorIs(t, err, ErrRouteTooShort)

	mustAdd(t, b, cityHall)
	_, err = b.Finalize()
	assert.ErrorIs(t, err, ErrRouteTooShort)

	mustAdd(t, b, eulji)
	route, err := b.Finalize()
	require.NoError(t, err)
	assert.Greater(t, route.TotalDistanceKm, 0.0)

	same := NewBuilder()
	mustAdd(t, same, cityHall)
	mustAdd(t, same, cityHall)
	route, err = same.Finalize()
	require.NoError(t, err)
	assert.Zero(t, route.TotalDistanceKm)
}

func TestFinalize_IsIdempotentAndReadOnly(t *testing.T) {
	b := NewBuilder()
	mustAdd(t, b, cityHall)
	mustAdd(t, b, eulji)
	mustAdd(t, b, dongdaemun)

	first, err := b.Finalize()
	require.NoError(t, err)
	second, err := b.Finalize()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, math.Float64bits(first.TotalDistanceKm), math.Float64bits(second.TotalDistanceKm))
	assert.Equal(t, PhaseBuilding, b.Phase())
	assert.Equal(t, 3, b.Len())
}

func TestFinalize_RoundTripPreservesOrder(t *testing.T) {
	path := []Waypoint{dongdaemun, cityHall, eulji, cityHall}
	b := NewBuilder()
	for _, w := range path {
		mustAdd(t, b, w)
	}

	route, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, path, route.Waypoints)
	assert.Equal(t, round2(PathDistance(path)), route.TotalDistanceKm)
}

func TestFinalize_ResultIsDetachedFromBuilder(t *testing.T) {
	b := NewBuilder()
	mustAdd(t, b, cityHall)
	mustAdd(t, b, eulji)

	route, err := b.Finalize()
	require.NoError(t, err)
	route.Waypoints[0] = dongdaemun

	assert.Equal(t, cityHall, b.State().Waypoints[0])
}

func TestRound2_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 1.25, round2(1.245000001))
	assert.Equal(t, 0.13, round2(0.125))
	assert.Equal(t, -0.13, round2(-0.125))
	assert.Equal(t, 2.0, round2(1.999))
	assert.Equal(t, 0.0, round2(0.004))
}

func TestRestore(t *testing.T) {
	b, err := Restore([]Waypoint{cityHall, eulji})
	require.NoError(t, err)
	assert.Equal(t, 2, b.Len())
	assert.InDelta(t, Distance(cityHall, eulji), b.State().TotalDistanceKm, 1e-12)

	_, err = Restore([]Waypoint{cityHall, {Latitude: 100}})
	assert.ErrorIs(t, err, ErrInvalidCoordinate)

	_, err = Restore([]Waypoint{cityHall, eulji, dongdaemun}, WithMaxWaypoints(2))
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	empty, err := Restore(nil)
	require.NoError(t, err)
	assert.Equal(t, PhaseEmpty, empty.Phase())
}

func TestErrors_AreDomainErrors(t *testing.T) {
	b := NewBuilder()
	_, err := b.Finalize()

	var de *domain.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.CodeValidation, de.Code)

	code, ok := domain.CodeOf(ErrCapacityExceeded)
	require.True(t, ok)
	assert.Equal(t, domain.CodeConflict, code)
}
