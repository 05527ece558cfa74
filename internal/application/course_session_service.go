package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/runcrew/service-running/internal/common/domain"
	"github.com/runcrew/service-running/internal/domain/course"
)

// WaypointRequest is a single map tap.
type WaypointRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

// StartCourseSessionRequest opens a draft, optionally seeded with the start chosen via place search.
type StartCourseSessionRequest struct {
	PlaceName string           `json:"place_name" binding:"max=200"`
	Start     *WaypointRequest `json:"start"`
}

// TruncateRequest keeps waypoints [0..index].
type TruncateRequest struct {
	Index *int `json:"index" binding:"required"`
}

// CourseSessionDTO is the response representation of a draft.
type CourseSessionDTO struct {
	ID              uuid.UUID         `json:"id"`
	PlaceName       string            `json:"place_name,omitempty"`
	Phase           course.Phase      `json:"phase"`
	Waypoints       []course.Waypoint `json:"waypoints"`
	TotalDistanceKm float64           `json:"total_distance_km"`
	MaxWaypoints    int               `json:"max_waypoints"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// FinalizedCourseDTO is a finished course ready to attach to a new running.
type FinalizedCourseDTO struct {
	SessionID            uuid.UUID              `json:"session_id"`
	PlaceName            string                 `json:"place_name,omitempty"`
	Course               course.SerializedRoute `json:"course"`
	GeoJSON              *geojson.Feature       `json:"geojson"`
	Bound                [2]orb.Point           `json:"bound"`
	EstimatedDurationSec int64                  `json:"estimated_duration_sec"`
}

// CourseSessionService owns course-editing sessions. Each call restores the
// session's Builder, applies one operation and saves the result only on success.
type CourseSessionService struct {
	store        course.SessionStore
	estimator    course.DurationEstimator
	maxWaypoints int
	logger       *zap.Logger
}

// NewCourseSessionService creates a new CourseSessionService.
func NewCourseSessionService(
	store course.SessionStore,
	estimator course.DurationEstimator,
	maxWaypoints int,
	logger *zap.Logger,
) *CourseSessionService {
	return &CourseSessionService{
		store:        store,
		estimator:    estimator,
		maxWaypoints: maxWaypoints,
		logger:       logger,
	}
}

// StartSession creates an empty draft, or one holding only the start waypoint.
func (s *CourseSessionService) StartSession(ctx context.Context, ownerID uuid.UUID, req StartCourseSessionRequest) (*CourseSessionDTO, error) {
	b := s.newBuilder()
	if req.Start != nil {
		if req.Start.Latitude == nil || req.Start.Longitude == nil {
			return nil, domain.NewValidationError("start requires latitude and longitude")
		}
		if _, err := b.AddWaypoint(*req.Start.Latitude, *req.Start.Longitude); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	session := &course.Session{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		PlaceName: strings.TrimSpace(req.PlaceName),
		Waypoints: b.State().Waypoints,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save course session: %w", err)
	}

	s.logger.Info("course session started",
		zap.String("session_id", session.ID.String()),
		zap.String("owner_id", ownerID.String()),
	)
	return s.toDTO(session, b), nil
}

// GetSession returns the owner's draft.
func (s *CourseSessionService) GetSession(ctx context.Context, ownerID, sessionID uuid.UUID) (*CourseSessionDTO, error) {
	session, b, err := s.load(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.toDTO(session, b), nil
}

// AddWaypoint appends a waypoint to the draft.
func (s *CourseSessionService) AddWaypoint(ctx context.Context, ownerID, sessionID uuid.UUID, req WaypointRequest) (*CourseSessionDTO, error) {
	if req.Latitude == nil || req.Longitude == nil {
		return nil, domain.NewValidationError("latitude and longitude are required")
	}
	return s.apply(ctx, ownerID, sessionID, func(b *course.Builder) error {
		_, err := b.AddWaypoint(*req.Latitude, *req.Longitude)
		return err
	})
}

// TruncateAfter discards every waypoint after index.
func (s *CourseSessionService) TruncateAfter(ctx context.Context, ownerID, sessionID uuid.UUID, index int) (*CourseSessionDTO, error) {
	return s.apply(ctx, ownerID, sessionID, func(b *course.Builder) error {
		_, err := b.TruncateAfter(index)
		return err
	})
}

// Clear empties the draft, start included.
func (s *CourseSessionService) Clear(ctx context.Context, ownerID, sessionID uuid.UUID) (*CourseSessionDTO, error) {
	return s.apply(ctx, ownerID, sessionID, func(b *course.Builder) error {
		b.Clear()
		return nil
	})
}

// Finalize exports the draft. The session stays open so the owner can keep editing.
func (s *CourseSessionService) Finalize(ctx context.Context, ownerID, sessionID uuid.UUID) (*FinalizedCourseDTO, error) {
	session, b, err := s.load(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	route, err := b.Finalize()
	if err != nil {
		return nil, err
	}
	duration, err := s.estimator.Estimate(route.TotalDistanceKm)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("duration estimate: %v", err))
	}

	bound := route.Bound()
	s.logger.Info("course finalized",
		zap.String("session_id", sessionID.String()),
		zap.Int("waypoints", len(route.Waypoints)),
		zap.Float64("total_distance_km", route.TotalDistanceKm),
	)
	return &FinalizedCourseDTO{
		SessionID:            session.ID,
		PlaceName:            session.PlaceName,
		Course:               route,
		GeoJSON:              route.GeoJSON(),
		Bound:                [2]orb.Point{bound.Min, bound.Max},
		EstimatedDurationSec: int64(duration / time.Second),
	}, nil
}

// CancelSession discards the draft without finalizing.
func (s *CourseSessionService) CancelSession(ctx context.Context, ownerID, sessionID uuid.UUID) error {
	if _, _, err := s.load(ctx, ownerID, sessionID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete course session: %w", err)
	}
	s.logger.Info("course session cancelled", zap.String("session_id", sessionID.String()))
	return nil
}

func (s *CourseSessionService) apply(ctx context.Context, ownerID, sessionID uuid.UUID, op func(*course.Builder) error) (*CourseSessionDTO, error) {
	session, b, err := s.load(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := op(b); err != nil {
		return nil, err
	}

	session.Waypoints = b.State().Waypoints
	session.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save course session: %w", err)
	}
	return s.toDTO(session, b), nil
}

func (s *CourseSessionService) load(ctx context.Context, ownerID, sessionID uuid.UUID) (*course.Session, *course.Builder, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.OwnerID != ownerID {
		return nil, nil, domain.NewForbiddenError("course session belongs to another user")
	}
	b, err := course.Restore(session.Waypoints, course.WithMaxWaypoints(s.maxWaypoints))
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt course session %s: %w", sessionID, err)
	}
	return session, b, nil
}

func (s *CourseSessionService) newBuilder() *course.Builder {
	return course.NewBuilder(course.WithMaxWaypoints(s.maxWaypoints))
}

func (s *CourseSessionService) toDTO(session *course.Session, b *course.Builder) *CourseSessionDTO {
	state := b.State()
	return &CourseSessionDTO{
		ID:              session.ID,
		PlaceName:       session.PlaceName,
		Phase:           b.Phase(),
		Waypoints:       state.Waypoints,
		TotalDistanceKm: state.TotalDistanceKm,
		MaxWaypoints:    b.MaxWaypoints(),
		UpdatedAt:       session.UpdatedAt,
	}
}
