package chat

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/runcrew/service-running/internal/common/domain"
)

// MaxContentLength is the longest message accepted, in characters.
const MaxContentLength = 1000

// Message is a chat line posted in a running event's room.
type Message struct {
	id         uuid.UUID
	runningID  uuid.UUID
	senderID   uuid.UUID
	senderName string
	content    string
	createdAt  time.Time
}

// NewMessage creates a message with trimmed, non-empty content. The timestamp
// is kept at the microsecond precision Postgres stores, so cursors round-trip.
func NewMessage(runningID, senderID uuid.UUID, senderName, content string) (*Message, error) {
	if runningID == uuid.Nil {
		return nil, domain.NewValidationError("running ID is required")
	}
	if senderID == uuid.Nil {
		return nil, domain.NewValidationError("sender ID is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.NewValidationError("message content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, domain.NewValidationError(fmt.Sprintf("message must be at most %d characters", MaxContentLength))
	}

	return &Message{
		id:         uuid.New(),
		runningID:  runningID,
		senderID:   senderID,
		senderName: senderName,
		content:    content,
		createdAt:  time.Now().UTC().Truncate(time.Microsecond),
	}, nil
}

// Reconstruct rebuilds a Message from persistence.
func Reconstruct(id, runningID, senderID uuid.UUID, senderName, content string, createdAt time.Time) *Message {
	return &Message{
		id:         id,
		runningID:  runningID,
		senderID:   senderID,
		senderName: senderName,
		content:    content,
		createdAt:  createdAt,
	}
}

// Getters.
func (m *Message) ID() uuid.UUID        { return m.id }
func (m *Message) RunningID() uuid.UUID { return m.runningID }
func (m *Message) SenderID() uuid.UUID  { return m.senderID }
func (m *Message) SenderName() string   { return m.senderName }
func (m *Message) Content() string      { return m.content }
func (m *Message) CreatedAt() time.Time { return m.createdAt }
