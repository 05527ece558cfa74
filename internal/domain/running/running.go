package running

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/runcrew/service-running/internal/common/domain"
	"github.com/runcrew/service-running/internal/domain/course"
)

// MaxTitleLength is the longest title accepted, in characters.
const MaxTitleLength = 100

// Params holds the user-supplied fields of a new running event.
type Params struct {
	CreatorID       uuid.UUID
	Title           string
	Description     string
	PlaceName       string
	ScheduledAt     time.Time
	Course          course.SerializedRoute
	MaxParticipants int
	// MaxWaypoints is the course capacity; zero uses course.DefaultMaxWaypoints.
	MaxWaypoints int
}

// Running is the aggregate root for a running event ("room").
type Running struct {
	id              uuid.UUID
	creatorID       uuid.UUID
	title           string
	description     string
	placeName       string
	scheduledAt     time.Time
	course          course.SerializedRoute
	startGeohash    string
	maxParticipants int
	participants    []uuid.UUID
	status          Status
	cancelReason    string
	completedAt     *time.Time
	cancelledAt     *time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewRunning validates p and creates a Running with status=recruiting.
// The course total is recomputed from its waypoints.
func NewRunning(p Params, now time.Time) (*Running, error) {
	if p.CreatorID == uuid.Nil {
		return nil, domain.NewValidationError("creator ID is required")
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, domain.NewValidationError("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, domain.NewValidationError(fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}
	placeName := strings.TrimSpace(p.PlaceName)
	if placeName == "" {
		return nil, domain.NewValidationError("place name is required")
	}
	if !p.ScheduledAt.After(now) {
		return nil, domain.NewValidationError("scheduled time must be in the future")
	}
	if p.MaxParticipants < 0 {
		return nil, domain.NewValidationError("max participants cannot be negative")
	}
	route, err := course.FromSerialized(p.Course, course.WithMaxWaypoints(p.MaxWaypoints))
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	return &Running{
		id:              uuid.New(),
		creatorID:       p.CreatorID,
		title:           title,
		description:     strings.TrimSpace(p.Description),
		placeName:       placeName,
		scheduledAt:     p.ScheduledAt.UTC(),
		course:          route,
		startGeohash:    route.StartGeohash(),
		maxParticipants: p.MaxParticipants,
		participants:    []uuid.UUID{},
		status:          StatusRecruiting,
		version:         1,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// ReconstructRunning rebuilds a Running from persistence data (no validation).
func ReconstructRunning(
	id uuid.UUID,
	creatorID uuid.UUID,
	title string,
	description string,
	placeName string,
	scheduledAt time.Time,
	route course.SerializedRoute,
	startGeohash string,
	maxParticipants int,
	participants []uuid.UUID,
	status Status,
	cancelReason string,
	completedAt *time.Time,
	cancelledAt *time.Time,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Running {
	if participants == nil {
		participants = []uuid.UUID{}
	}
	return &Running{
		id:              id,
		creatorID:       creatorID,
		title:           title,
		description:     description,
		placeName:       placeName,
		scheduledAt:     scheduledAt,
		course:          route,
		startGeohash:    startGeohash,
		maxParticipants: maxParticipants,
		participants:    participants,
		status:          status,
		cancelReason:    cancelReason,
		completedAt:     completedAt,
		cancelledAt:     cancelledAt,
		version:         version,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// --- Getters ---

func (r *Running) ID() uuid.UUID                  { return r.id }
func (r *Running) CreatorID() uuid.UUID           { return r.creatorID }
func (r *Running) Title() string                  { return r.title }
func (r *Running) Description() string            { return r.description }
func (r *Running) PlaceName() string              { return r.placeName }
func (r *Running) ScheduledAt() time.Time         { return r.scheduledAt }
func (r *Running) Course() course.SerializedRoute { return r.course }
func (r *Running) StartGeohash() string           { return r.startGeohash }
func (r *Running) MaxParticipants() int           { return r.maxParticipants }
func (r *Running) Status() Status                 { return r.status }
func (r *Running) CancelReason() string           { return r.cancelReason }
func (r *Running) CompletedAt() *time.Time        { return r.completedAt }
func (r *Running) CancelledAt() *time.Time        { return r.cancelledAt }
func (r *Running) Version() int64                 { return r.version }
func (r *Running) CreatedAt() time.Time           { return r.createdAt }
func (r *Running) UpdatedAt() time.Time           { return r.updatedAt }

// Participants returns the joined users in join order, excluding the creator.
func (r *Running) Participants() []uuid.UUID {
	return slices.Clone(r.participants)
}

// ParticipantCount excludes the creator.
func (r *Running) ParticipantCount() int { return len(r.participants) }

// IsFull reports whether no further participant can join.
func (r *Running) IsFull() bool {
	return r.maxParticipants > 0 && len(r.participants) >= r.maxParticipants
}

func (r *Running) IsCreator(userID uuid.UUID) bool { return r.creatorID == userID }

func (r *Running) IsParticipant(userID uuid.UUID) bool {
	return slices.Contains(r.participants, userID)
}

// CanAccessChat reports whether userID may read or post in the event chat.
func (r *Running) CanAccessChat(userID uuid.UUID) bool {
	return r.IsCreator(userID) || r.IsParticipant(userID)
}

// Roster returns the creator followed by every participant.
func (r *Running) Roster() []uuid.UUID {
	return append([]uuid.UUID{r.creatorID}, r.participants...)
}

// --- Behavior ---

// Join adds userID as a participant while recruiting.
func (r *Running) Join(userID uuid.UUID) error {
	if r.status != StatusRecruiting {
		return domain.NewValidationError(fmt.Sprintf("running is not recruiting (status: %s)", r.status))
	}
	if userID == uuid.Nil {
		return domain.NewValidationError("user ID is required")
	}
	if r.IsCreator(userID) {
		return domain.NewConflictError("the creator is already part of this running")
	}
	if r.IsParticipant(userID) {
		return domain.NewConflictError("already joined this running")
	}
	if r.IsFull() {
		return domain.NewConflictError("running is full")
	}
	r.participants = append(r.participants, userID)
	r.touch()
	return nil
}

// Leave removes userID from the participants.
func (r *Running) Leave(userID uuid.UUID) error {
	if r.status.IsTerminal() {
		return domain.NewValidationError(fmt.Sprintf("cannot leave a %s running", r.status))
	}
	if !r.removeParticipant(userID) {
		return domain.NewNotFoundError("participant", userID.String())
	}
	r.touch()
	return nil
}

// Kick removes userID on behalf of the creator.
func (r *Running) Kick(actorID, userID uuid.UUID) error {
	if err := r.requireCreator(actorID); err != nil {
		return err
	}
	if r.status.IsTerminal() {
		return domain.NewValidationError(fmt.Sprintf("cannot change participants of a %s running", r.status))
	}
	if !r.removeParticipant(userID) {
		return domain.NewNotFoundError("participant", userID.String())
	}
	r.touch()
	return nil
}

// CloseRecruiting stops new participants from joining.
func (r *Running) CloseRecruiting(actorID uuid.UUID) error {
	return r.transition(actorID, StatusClosed, func(time.Time) {})
}

// Complete marks the running as finished. Every roster member is credited with the course distance.
func (r *Running) Complete(actorID uuid.UUID) error {
	return r.transition(actorID, StatusCompleted, func(now time.Time) {
		r.completedAt = &now
	})
}

// Cancel transitions the running to cancelled if it is not in a terminal state.
func (r *Running) Cancel(actorID uuid.UUID, reason string) error {
	return r.transition(actorID, StatusCancelled, func(now time.Time) {
		r.cancelReason = strings.TrimSpace(reason)
		r.cancelledAt = &now
	})
}

// IncrementVersion bumps the version for optimistic locking.
func (r *Running) IncrementVersion() {
	r.version++
	r.touch()
}

func (r *Running) transition(actorID uuid.UUID, target Status, apply func(now time.Time)) error {
	if err := r.requireCreator(actorID); err != nil {
		return err
	}
	if !r.status.CanTransitionTo(target) {
		return domain.NewInvalidStateError(string(r.status), string(target))
	}
	now := time.Now().UTC()
	r.status = target
	apply(now)
	r.updatedAt = now
	return nil
}

func (r *Running) requireCreator(actorID uuid.UUID) error {
	if !r.IsCreator(actorID) {
		return domain.NewForbiddenError("only the creator can manage this running")
	}
	return nil
}

func (r *Running) removeParticipant(userID uuid.UUID) bool {
	i := slices.Index(r.participants, userID)
	if i < 0 {
		return false
	}
	r.participants = slices.Delete(slices.Clone(r.participants), i, i+1)
	return true
}

func (r *Running) touch() {
	r.updatedAt = time.Now().UTC()
}
