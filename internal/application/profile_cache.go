package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ProfileCache holds recently read public profiles. Writes through UserService invalidate entries.
type ProfileCache struct {
	lru *expirable.LRU[uuid.UUID, ProfileDTO]
}

// NewProfileCache creates a cache of up to size profiles, each kept for ttl.
func NewProfileCache(size int, ttl time.Duration) *ProfileCache {
	if size <= 0 {
		size = 1024
	}
	return &ProfileCache{lru: expirable.NewLRU[uuid.UUID, ProfileDTO](size, nil, ttl)}
}

func (c *ProfileCache) Get(id uuid.UUID) (ProfileDTO, bool) {
	if c == nil {
		return ProfileDTO{}, false
	}
	return c.lru.Get(id)
}

func (c *ProfileCache) Add(p ProfileDTO) {
	if c == nil {
		return
	}
	c.lru.Add(p.ID, p)
}

func (c *ProfileCache) Invalidate(id uuid.UUID) {
	if c == nil {
		return
	}
	c.lru.Remove(id)
}
