package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/runcrew/service-running/internal/common/domain"
	"github.com/runcrew/service-running/internal/domain/course"
)

const sessionKeyPrefix = "running:course-session:"

// RedisCourseSessionStore keeps course drafts in Redis as msgpack blobs with a sliding TTL.
type RedisCourseSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCourseSessionStore creates a store whose drafts expire ttl after their last save.
func NewRedisCourseSessionStore(client *redis.Client, ttl time.Duration) *RedisCourseSessionStore {
	return &RedisCourseSessionStore{client: client, ttl: ttl}
}

func sessionKey(id uuid.UUID) string {
	return sessionKeyPrefix + id.String()
}

// Get loads a draft. Missing and expired drafts are NOT_FOUND.
func (s *RedisCourseSessionStore) Get(ctx context.Context, id uuid.UUID) (*course.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.NewNotFoundError("course session", id.String())
		}
		return nil, fmt.Errorf("failed to load course session: %w", err)
	}

	var sess course.Session
	if err := msgpack.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode course session: %w", err)
	}
	return &sess, nil
}

// Save writes the draft and resets its expiry.
func (s *RedisCourseSessionStore) Save(ctx context.Context, sess *course.Session) error {
	data, err := msgpack.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode course session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save course session: %w", err)
	}
	return nil
}

func (s *RedisCourseSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete course session: %w", err)
	}
	return nil
}

// Ping reports Redis reachability to the readiness probe.
func (s *RedisCourseSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// MemoryCourseSessionStore keeps drafts in a bounded in-process LRU. It is used
// when Redis is not configured, which limits the service to a single replica.
type MemoryCourseSessionStore struct {
	cache *expirable.LRU[uuid.UUID, []byte]
}

// NewMemoryCourseSessionStore creates a store holding at most size drafts for ttl each.
func NewMemoryCourseSessionStore(size int, ttl time.Duration) *MemoryCourseSessionStore {
	return &MemoryCourseSessionStore{cache: expirable.NewLRU[uuid.UUID, []byte](size, nil, ttl)}
}

// Drafts are stored encoded so callers never share waypoint slices.
func (s *MemoryCourseSessionStore) Get(_ context.Context, id uuid.UUID) (*course.Session, error) {
	data, ok := s.cache.Get(id)
	if !ok {
		return nil, domain.NewNotFoundError("course session", id.String())
	}
	var sess course.Session
	if err := msgpack.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode course session: %w", err)
	}
	return &sess, nil
}

func (s *MemoryCourseSessionStore) Save(_ context.Context, sess *course.Session) error {
	data, err := msgpack.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode course session: %w", err)
	}
	s.cache.Add(sess.ID, data)
	return nil
}

func (s *MemoryCourseSessionStore) Delete(_ context.Context, id uuid.UUID) error {
	s.cache.Remove(id)
	return nil
}
