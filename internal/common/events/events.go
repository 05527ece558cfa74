// Package events defines the topics, CloudEvent types and payloads published by the running service.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicRunningEvents = "running.events"
	TopicChatEvents    = "chat.events"
)

// CloudEvent types.
const (
	RunningCreated           = "running.created"
	RunningJoined            = "running.joined"
	RunningLeft              = "running.left"
	RunningParticipantKicked = "running.participant_kicked"
	RunningCompleted         = "running.completed"
	RunningCancelled         = "running.cancelled"
	ChatMessageSent          = "chat.message_sent"
)

// Source is the CloudEvent source of everything this service publishes.
const Source = "service-running"

type RunningCreatedEvent struct {
	RunningID       uuid.UUID `json:"running_id"`
	CreatorID       uuid.UUID `json:"creator_id"`
	Title           string    `json:"title"`
	PlaceName       string    `json:"place_name"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	CourseKm        float64   `json:"course_km"`
	StartGeohash    string    `json:"start_geohash"`
	MaxParticipants int       `json:"max_participants"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// RunningMembershipEvent covers joined, left and participant_kicked.
type RunningMembershipEvent struct {
	RunningID        uuid.UUID  `json:"running_id"`
	UserID           uuid.UUID  `json:"user_id"`
	ActorID          *uuid.UUID `json:"actor_id,omitempty"`
	ParticipantCount int        `json:"participant_count"`
	OccurredAt       time.Time  `json:"occurred_at"`
}

// RunningCompletedEvent credits every roster member with the course distance.
type RunningCompletedEvent struct {
	RunningID   uuid.UUID   `json:"running_id"`
	CreatorID   uuid.UUID   `json:"creator_id"`
	Roster      []uuid.UUID `json:"roster"`
	CourseKm    float64     `json:"course_km"`
	ScheduledAt time.Time   `json:"scheduled_at"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

type RunningCancelledEvent struct {
	RunningID  uuid.UUID   `json:"running_id"`
	Roster     []uuid.UUID `json:"roster"`
	Reason     string      `json:"reason,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

type ChatMessageSentEvent struct {
	MessageID  uuid.UUID `json:"message_id"`
	RunningID  uuid.UUID `json:"running_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
