package course

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is a saved course-editing draft. The HTTP service is stateless,
// so the Builder is restored from Waypoints on every request.
type Session struct {
	ID        uuid.UUID  `msgpack:"id"`
	OwnerID   uuid.UUID  `msgpack:"owner_id"`
	PlaceName string     `msgpack:"place_name"`
	Waypoints []Waypoint `msgpack:"waypoints"`
	CreatedAt time.Time  `msgpack:"created_at"`
	UpdatedAt time.Time  `msgpack:"updated_at"`
}

// SessionStore keeps drafts until they expire.
type SessionStore interface {
	// Get returns a NOT_FOUND domain error for unknown or expired sessions.
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	// Save creates or replaces a draft and resets its expiry.
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id uuid.UUID) error
}
