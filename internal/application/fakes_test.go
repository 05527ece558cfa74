package application

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/runcrew/service-running/internal/common/domain"
	"github.com/runcrew/service-running/internal/common/kafka"
	chatDomain "github.com/runcrew/service-running/internal/domain/chat"
	"github.com/runcrew/service-running/internal/domain/course"
	runningDomain "github.com/runcrew/service-running/internal/domain/running"
	userDomain "github.com/runcrew/service-running/internal/domain/user"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishEventWithKey(ctx context.Context, topic, key string, event kafka.CloudEvent) error {
	args := m.Called(ctx, topic, key, event)
	return args.Error(0)
}

// eventTypes returns the CloudEvent types published so far, in order.
func (m *mockPublisher) eventTypes() []string {
	var types []string
	for _, call := range m.Calls {
		if call.Method == "PublishEventWithKey" {
			types = append(types, call.Arguments.Get(3).(kafka.CloudEvent).Type)
		}
	}
	return types
}

func newMockPublisher() *mockPublisher {
	p := &mockPublisher{}
	p.On("PublishEventWithKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return p
}

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]course.Session
	saves    int
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: map[uuid.UUID]course.Session{}}
}

func (s *memSessionStore) Get(_ context.Context, id uuid.UUID) (*course.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.NewNotFoundError("course session", id.String())
	}
	sess.Waypoints = append([]course.Waypoint(nil), sess.Waypoints...)
	return &sess, nil
}

func (s *memSessionStore) Save(_ context.Context, sess *course.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	cp.Waypoints = append([]course.Waypoint(nil), sess.Waypoints...)
	s.sessions[sess.ID] = cp
	s.saves++
	return nil
}

func (s *memSessionStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

type memRunningRepo struct {
	mu       sync.Mutex
	runnings map[uuid.UUID]*runningDomain.Running
	lastFeed runningDomain.FeedQuery
}

func newMemRunningRepo() *memRunningRepo {
	return &memRunningRepo{runnings: map[uuid.UUID]*runningDomain.Running{}}
}

func (r *memRunningRepo) FindByID(_ context.Context, id uuid.UUID) (*runningDomain.Running, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	found, ok := r.runnings[id]
	if !ok {
		return nil, domain.NewNotFoundError("running", id.String())
	}
	return found, nil
}

func (r *memRunningRepo) ListFeed(_ context.Context, q runningDomain.FeedQuery) ([]*runningDomain.Running, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFeed = q

	var matched []*runningDomain.Running
	for _, item := range r.runnings {
		if item.Status() != runningDomain.StatusRecruiting || !item.ScheduledAt().After(q.After) {
			continue
		}
		if len(q.GeohashPrefixes) > 0 && !hasAnyPrefix(item.StartGeohash(), q.GeohashPrefixes) {
			continue
		}
		matched = append(matched, item)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ScheduledAt().Before(matched[j].ScheduledAt()) })
	return paginate(matched, q.Page, q.Limit), int64(len(matched)), nil
}

func (r *memRunningRepo) FindByMember(_ context.Context, userID uuid.UUID) ([]runningDomain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []runningDomain.Membership
	for _, item := range r.runnings {
		if item.IsCreator(userID) || item.IsParticipant(userID) {
			result = append(result, runningDomain.Membership{Running: item, IsCreator: item.IsCreator(userID)})
		}
	}
	return result, nil
}

func (r *memRunningRepo) ListAll(_ context.Context, page, limit int) ([]*runningDomain.Running, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*runningDomain.Running, 0, len(r.runnings))
	for _, item := range r.runnings {
		all = append(all, item)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt().After(all[j].CreatedAt()) })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r *memRunningRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int64{}
	for _, item := range r.runnings {
		counts[item.Status().String()]++
	}
	return counts, nil
}

func (r *memRunningRepo) Save(_ context.Context, item *runningDomain.Running) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runnings[item.ID()] = item
	return nil
}

func (r *memRunningRepo) Update(_ context.Context, item *runningDomain.Running) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runnings[item.ID()]; !ok {
		return domain.NewNotFoundError("running", item.ID().String())
	}
	r.runnings[item.ID()] = item
	return nil
}

type memUserRepo struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*userDomain.User
	findByIDs   int
	updateCalls int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[uuid.UUID]*userDomain.User{}}
}

func (r *memUserRepo) FindByID(_ context.Context, id uuid.UUID) (*userDomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.NewNotFoundError("user", id.String())
	}
	return u, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*userDomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email() == email {
			return u, nil
		}
	}
	return nil, domain.NewNotFoundError("user", email)
}

func (r *memUserRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*userDomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findByIDs++
	var result []*userDomain.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

func (r *memUserRepo) Save(_ context.Context, u *userDomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID()] = u
	return nil
}

func (r *memUserRepo) Update(_ context.Context, u *userDomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	r.users[u.ID()] = u
	return nil
}

type memMessageRepo struct {
	mu       sync.Mutex
	messages []*chatDomain.Message
}

func (r *memMessageRepo) Save(_ context.Context, m *chatDomain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	return nil
}

func (r *memMessageRepo) List(_ context.Context, q chatDomain.ListQuery) ([]*chatDomain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*chatDomain.Message
	for _, m := range r.messages {
		if m.RunningID() != q.RunningID {
			continue
		}
		if q.After != nil && !m.IsAfter(*q.After) {
			continue
		}
		if q.Before != nil && !m.IsBefore(*q.Before) {
			continue
		}
		result = append(result, m)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].IsBefore(chatDomain.CursorOf(result[j]))
	})
	if len(result) > q.Limit {
		if q.After != nil {
			result = result[:q.Limit]
		} else {
			result = result[len(result)-q.Limit:]
		}
	}
	return result, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return nil
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
