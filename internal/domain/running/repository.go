package running

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FeedQuery filters the upcoming recruiting feed.
type FeedQuery struct {
	After time.Time
	// GeohashPrefixes restricts results to courses starting in one of these cells. Empty means anywhere.
	GeohashPrefixes []string
	Page            int
	Limit           int
}

// Membership is a running seen from one user's side.
type Membership struct {
	Running   *Running
	IsCreator bool
}

// Repository defines the persistence contract for running aggregates.
type Repository interface {
	// FindByID retrieves a running by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Running, error)

	// ListFeed retrieves recruiting runnings scheduled after q.After, soonest first.
	ListFeed(ctx context.Context, q FeedQuery) ([]*Running, int64, error)

	// FindByMember retrieves runnings the user created or joined, soonest first.
	FindByMember(ctx context.Context, userID uuid.UUID) ([]Membership, error)

	// ListAll retrieves all runnings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Running, int64, error)

	// CountByStatus returns running counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new running.
	Save(ctx context.Context, r *Running) error

	// Update persists changes to an existing running with optimistic locking.
	Update(ctx context.Context, r *Running) error
}
