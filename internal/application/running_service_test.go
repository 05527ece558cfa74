package application

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/runcrew/service-running/internal/common/domain"
	"github.com/runcrew/service-running/internal/common/events"
	"github.com/runcrew/service-running/internal/common/kafka"
	"github.com/runcrew/service-running/internal/domain/course"
)

var seoul = time.FixedZone("KST", 9*60*60)

type runningFixture struct {
	svc       *RunningService
	repo      *memRunningRepo
	users     *memUserRepo
	publisher *mockPublisher
}

func newRunningFixture(t *testing.T) *runningFixture {
	t.Helper()
	repo := newMemRunningRepo()
	users := newMemUserRepo()
	publisher := newMockPublisher()
	userSvc := NewUserService(users, nil, NewProfileCache(16, time.Minute), zap.NewNop())
	svc := NewRunningService(repo, userSvc, course.NewStandardPaceEstimator(0), 30, publisher, seoul, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC) }
	return &runningFixture{svc: svc, repo: repo, users: users, publisher: publisher}
}

func routeFrom(lat, lon float64) course.SerializedRoute {
	return course.SerializedRoute{Waypoints: []course.Waypoint{
		{Latitude: lat, Longitude: lon},
		{Latitude: lat + 0.01, Longitude: lon + 0.01},
	}}
}

func createRequest(date string) CreateRunningRequest {
	return CreateRunningRequest{
		Title:           "Morning 5k",
		PlaceName:       "Seoul Forest",
		Date:            date,
		Time:            "06:30",
		Course:          routeFrom(37.5444, 127.0374),
		MaxParticipants: 3,
	}
}

func TestRunningService_Create(t *testing.T) {
	f := newRunningFixture(t)
	creator := uuid.New()

	dto, err := f.svc.CreateRunning(context.Background(), creator, createRequest("2026-10-20"))
	require.NoError(t, err)

	assert.Equal(t, "2026-10-20", dto.Date)
	assert.Equal(t, "06:30", dto.Time)
	assert.Equal(t, time.Date(2026, 10, 19, 21, 30, 0, 0, time.UTC), dto.ScheduledAt)
	assert.Equal(t, "recruiting", dto.Status)
	assert.Greater(t, dto.Course.TotalDistanceKm, 0.0)
	assert.Positive(t, dto.EstimatedDurationSec)
	assert.Equal(t, []string{events.RunningCreated}, f.publisher.eventTypes())
}

func TestRunningService_CreateAcceptsConfiguredCourseCapacity(t *testing.T) {
	f := newRunningFixture(t)
	builder := course.NewBuilder(course.WithMaxWaypoints(30))
	for i := 0; i < 25; i++ {
		_, err := builder.AddWaypoint(37.5444+float64(i)*0.001, 127.0374)
		require.NoError(t, err)
	}
	route, err := builder.Finalize()
	require.NoError(t, err)

	req := createRequest("2026-10-20")
	req.Course = route
	dto, err := f.svc.CreateRunning(context.Background(), uuid.New(), req)
	require.NoError(t, err)
	assert.Len(t, dto.Course.Waypoints, 25)
	assert.Equal(t, route.TotalDistanceKm, dto.Course.TotalDistanceKm)
}

func TestRunningService_CreateRejectsPastSchedule(t *testing.T) {
	f := newRunningFixture(t)

	_, err := f.svc.CreateRunning(context.Background(), uuid.New(), createRequest("2026-09-01"))
	code, ok := domain.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeValidation, code)
	assert.Empty(t, f.publisher.eventTypes())
}

func TestRunningService_MembershipFlow(t *testing.T) {
	ctx := context.Background()
	f := newRunningFixture(t)
	creator, alice, bob := uuid.New(), uuid.New(), uuid.New()

	created, err := f.svc.CreateRunning(ctx, creator, createRequest("2026-10-20"))
	require.NoError(t, err)

	_, err = f.svc.Join(ctx, created.ID, alice)
	require.NoError(t, err)
	joined, err := f.svc.Join(ctx, created.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, 2, joined.ParticipantCount)
	assert.Equal(t, int64(3), joined.Version)

	_, err = f.svc.Kick(ctx, created.ID, alice, bob)
	code, _ := domain.CodeOf(err)
	assert.Equal(t, domain.CodeForbidden, code)

	kicked, err := f.svc.Kick(ctx, created.ID, creator, bob)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{alice}, kicked.Participants)

	left, err := f.svc.Leave(ctx, created.ID, alice)
	require.NoError(t, err)
	assert.Zero(t, left.ParticipantCount)

	assert.Equal(t, []string{
		events.RunningCreated,
		events.RunningJoined,
		events.RunningJoined,
		events.RunningParticipantKicked,
		events.RunningLeft,
	}, f.publisher.eventTypes())
}

func TestRunningService_CompletePublishesRoster(t *testing.T) {
	ctx := context.Background()
	f := newRunningFixture(t)
	creator, alice := uuid.New(), uuid.New()

	created, err := f.svc.CreateRunning(ctx, creator, createRequest("2026-10-20"))
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, created.ID, alice)
	require.NoError(t, err)

	done, err := f.svc.Complete(ctx, created.ID, creator)
	require.NoError(t, err)
	assert.Equal(t, "completed", done.Status)

	last := f.publisher.Calls[len(f.publisher.Calls)-1]
	assert.Equal(t, events.TopicRunningEvents, last.Arguments.String(1))
	ce := last.Arguments.Get(3).(kafka.CloudEvent)
	require.Equal(t, events.RunningCompleted, ce.Type)

	var evt events.RunningCompletedEvent
	require.NoError(t, ce.ParseData(&evt))
	assert.Equal(t, []uuid.UUID{creator, alice}, evt.Roster)
	assert.Equal(t, created.Course.TotalDistanceKm, evt.CourseKm)

	_, err = f.svc.Cancel(ctx, created.ID, creator, "late")
	code, _ := domain.CodeOf(err)
	assert.Equal(t, domain.CodeInvalidState, code)
}

func TestRunningService_PublishFailureDoesNotFailCommand(t *testing.T) {
	f := newRunningFixture(t)
	failing := &mockPublisher{}
	failing.On("PublishEventWithKey", mock.Anything, events.TopicRunningEvents, mock.Anything, mock.Anything).
		Return(assert.AnError)
	f.svc.producer = failing

	_, err := f.svc.CreateRunning(context.Background(), uuid.New(), createRequest("2026-10-20"))
	require.NoError(t, err)
	failing.AssertNumberOfCalls(t, "PublishEventWithKey", 1)
}

func TestRunningService_FeedNearby(t *testing.T) {
	ctx := context.Background()
	f := newRunningFixture(t)

	near := createRequest("2026-10-21")
	near.Course = routeFrom(37.5665, 126.9780)
	far := createRequest("2026-10-20")
	far.Course = routeFrom(35.1796, 129.0756)
	soon := createRequest("2026-10-22")
	soon.Course = routeFrom(37.5700, 126.9820)

	var ids []uuid.UUID
	for _, req := range []CreateRunningRequest{near, far, soon} {
		dto, err := f.svc.CreateRunning(ctx, uuid.New(), req)
		require.NoError(t, err)
		ids = append(ids, dto.ID)
	}

	all, err := f.svc.ListFeed(ctx, FeedRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	assert.Equal(t, ids[1], all.Items[0].ID, "feed is soonest first")

	result, err := f.svc.ListFeed(ctx, FeedRequest{Page: 1, Limit: 10, Lat: f64(37.5665), Lng: f64(126.9780), RadiusKm: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Total)
	require.Len(t, result.Items, 2)
	assert.Equal(t, ids[0], result.Items[0].ID)
	assert.Equal(t, ids[2], result.Items[1].ID)
	require.NotNil(t, result.Items[1].DistanceFromKm)
	assert.Less(t, *result.Items[1].DistanceFromKm, 3.0)
	assert.Len(t, f.repo.lastFeed.GeohashPrefixes, 9)

	page2, err := f.svc.ListFeed(ctx, FeedRequest{Page: 2, Limit: 1, Lat: f64(37.5665), Lng: f64(126.9780), RadiusKm: 3})
	require.NoError(t, err)
	require.Len(t, page2.Items, 1)
	assert.Equal(t, ids[2], page2.Items[0].ID)
	assert.Equal(t, 2, page2.TotalPages)

	for _, radius := range []float64{0, -1, math.NaN(), math.Inf(1), MaxFeedRadiusKm + 1} {
		_, err = f.svc.ListFeed(ctx, FeedRequest{Lat: f64(37.5), Lng: f64(127), RadiusKm: radius})
		code, _ := domain.CodeOf(err)
		assert.Equal(t, domain.CodeValidation, code, "radius %v", radius)
	}
}

func TestRunningService_ListMyRunnings(t *testing.T) {
	ctx := context.Background()
	f := newRunningFixture(t)
	me := uuid.New()

	mine, err := f.svc.CreateRunning(ctx, me, createRequest("2026-10-25"))
	require.NoError(t, err)
	other, err := f.svc.CreateRunning(ctx, uuid.New(), createRequest("2026-10-21"))
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, other.ID, me)
	require.NoError(t, err)
	_, err = f.svc.CreateRunning(ctx, uuid.New(), createRequest("2026-10-22"))
	require.NoError(t, err)

	list, err := f.svc.ListMyRunnings(ctx, me)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, other.ID, list[0].ID)
	assert.False(t, list[0].IsCreator)
	assert.Equal(t, mine.ID, list[1].ID)
	assert.True(t, list[1].IsCreator)
}

func TestRunningService_ParticipantsAndGeoJSON(t *testing.T) {
	ctx := context.Background()
	f := newRunningFixture(t)

	users := make([]uuid.UUID, 2)
	for i, name := range []string{"Creator", "Joiner"} {
		u := mustUser(t, f.users, name)
		users[i] = u.ID()
	}

	created, err := f.svc.CreateRunning(ctx, users[0], createRequest("2026-10-20"))
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, created.ID, users[1])
	require.NoError(t, err)

	profiles, err := f.svc.ListParticipants(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Creator", profiles[0].Name)
	assert.Equal(t, "Joiner", profiles[1].Name)

	feature, err := f.svc.CourseGeoJSON(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID.String(), feature.ID)
	assert.Equal(t, "Morning 5k", feature.Properties["title"])
}

func TestRunningService_AdminStats(t *testing.T) {
	ctx := context.Background()
	f := newRunningFixture(t)
	creator := uuid.New()

	a, err := f.svc.CreateRunning(ctx, creator, createRequest("2026-10-20"))
	require.NoError(t, err)
	_, err = f.svc.CreateRunning(ctx, creator, createRequest("2026-10-21"))
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, a.ID, creator, "")
	require.NoError(t, err)

	stats, err := f.svc.GetRunningStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalRunnings)
	assert.Equal(t, int64(1), stats.ByStatus["cancelled"])
	assert.Equal(t, int64(1), stats.ByStatus["recruiting"])

	items, total, err := f.svc.ListAllRunnings(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int64(2), total)
}
