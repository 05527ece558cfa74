package chat

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
)

// Cursor is a position in a room's message order (created_at, then id).
// A cursor with a nil ID compares by time only.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// CursorOf returns the position of m.
func CursorOf(m *Message) Cursor {
	return Cursor{CreatedAt: m.CreatedAt(), ID: m.ID()}
}

// ListQuery pages through a room's messages. Results are always returned in
// ascending order. When After is set the oldest Limit matches are returned,
// otherwise the newest Limit matches.
type ListQuery struct {
	RunningID uuid.UUID
	After     *Cursor // excludes messages at or before it
	Before    *Cursor // excludes messages at or after it
	Limit     int
}

// IsAfter reports whether m sorts strictly after c.
func (m *Message) IsAfter(c Cursor) bool {
	if !m.createdAt.Equal(c.CreatedAt) {
		return m.createdAt.After(c.CreatedAt)
	}
	return c.ID != uuid.Nil && bytes.Compare(m.id[:], c.ID[:]) > 0
}

// IsBefore reports whether m sorts strictly before c.
func (m *Message) IsBefore(c Cursor) bool {
	if !m.createdAt.Equal(c.CreatedAt) {
		return m.createdAt.Before(c.CreatedAt)
	}
	return c.ID != uuid.Nil && bytes.Compare(m.id[:], c.ID[:]) < 0
}

// MessageRepository defines persistence operations for chat messages.
type MessageRepository interface {
	Save(ctx context.Context, msg *Message) error
	List(ctx context.Context, q ListQuery) ([]*Message, error)
}
