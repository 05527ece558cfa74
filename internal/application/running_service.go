package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/runcrew/service-running/internal/common/domain"
	"github.com/runcrew/service-running/internal/common/events"
	"github.com/runcrew/service-running/internal/domain/course"
	runningDomain "github.com/runcrew/service-running/internal/domain/running"
)

// maxNearbyCandidates caps how many geohash matches are loaded before the exact distance filter.
const maxNearbyCandidates = 500

// MaxFeedRadiusKm is the widest nearby search accepted.
const MaxFeedRadiusKm = 50.0

// CreateRunningRequest holds the data needed to open a running event.
type CreateRunningRequest struct {
	Title           string                 `json:"title" binding:"required,max=100"`
	Description     string                 `json:"description" binding:"max=2000"`
	PlaceName       string                 `json:"place_name" binding:"required,max=200"`
	Date            string                 `json:"date" binding:"required,runningdate"`
	Time            string                 `json:"time" binding:"required,runningtime"`
	Course          course.SerializedRoute `json:"course"`
	MaxParticipants int                    `json:"max_participants" binding:"min=0,max=1000"`
}

// CancelRunningRequest carries an optional reason.
type CancelRunningRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// FeedRequest filters the upcoming feed. Lat, Lng and RadiusKm must be set together.
type FeedRequest struct {
	Page     int
	Limit    int
	Lat      *float64
	Lng      *float64
	RadiusKm float64
}

// RunningDTO is the response representation of a running event.
type RunningDTO struct {
	ID                   uuid.UUID              `json:"id"`
	CreatorID            uuid.UUID              `json:"creator_id"`
	Title                string                 `json:"title"`
	Description          string                 `json:"description,omitempty"`
	PlaceName            string                 `json:"place_name"`
	Date                 string                 `json:"date"`
	Time                 string                 `json:"time"`
	ScheduledAt          time.Time              `json:"scheduled_at"`
	Course               course.SerializedRoute `json:"course"`
	EstimatedDurationSec int64                  `json:"estimated_duration_sec"`
	MaxParticipants      int                    `json:"max_participants"`
	ParticipantCount     int                    `json:"participant_count"`
	Participants         []uuid.UUID            `json:"participants"`
	Status               string                 `json:"status"`
	CancelReason         string                 `json:"cancel_reason,omitempty"`
	CompletedAt          *time.Time             `json:"completed_at,omitempty"`
	CancelledAt          *time.Time             `json:"cancelled_at,omitempty"`
	DistanceFromKm       *float64               `json:"distance_from_km,omitempty"`
	Version              int64                  `json:"version"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

// MyRunningDTO is a running the caller created or joined.
type MyRunningDTO struct {
	RunningDTO
	IsCreator bool `json:"is_creator"`
}

// RunningStatsDTO contains aggregate statistics for admin use.
type RunningStatsDTO struct {
	TotalRunnings int64            `json:"total_runnings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// ProfileReader resolves user ids to public profiles.
type ProfileReader interface {
	ListProfiles(ctx context.Context, ids []uuid.UUID) ([]ProfileDTO, error)
}

// RunningService is the application service orchestrating running event use cases.
type RunningService struct {
	repo      runningDomain.Repository
	profiles  ProfileReader
	estimator course.DurationEstimator
	maxPoints int
	producer  EventPublisher
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewRunningService creates a new RunningService. Dates and times are read and shown in location.
// maxWaypoints must match the course session capacity so finalized courses are accepted.
func NewRunningService(
	repo runningDomain.Repository,
	profiles ProfileReader,
	estimator course.DurationEstimator,
	maxWaypoints int,
	producer EventPublisher,
	location *time.Location,
	logger *zap.Logger,
) *RunningService {
	if location == nil {
		location = time.UTC
	}
	return &RunningService{
		repo:      repo,
		profiles:  profiles,
		estimator: estimator,
		maxPoints: maxWaypoints,
		producer:  producer,
		location:  location,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateRunning opens a new running event owned by creatorID.
func (s *RunningService) CreateRunning(ctx context.Context, creatorID uuid.UUID, req CreateRunningRequest) (*RunningDTO, error) {
	scheduledAt, err := runningDomain.ParseSchedule(req.Date, req.Time, s.location)
	if err != nil {
		return nil, err
	}

	r, err := runningDomain.NewRunning(runningDomain.Params{
		CreatorID:       creatorID,
		Title:           req.Title,
		Description:     req.Description,
		PlaceName:       req.PlaceName,
		ScheduledAt:     scheduledAt,
		Course:          req.Course,
		MaxParticipants: req.MaxParticipants,
		MaxWaypoints:    s.maxPoints,
	}, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to save running: %w", err)
	}

	s.logger.Info("running created",
		zap.String("running_id", r.ID().String()),
		zap.String("creator_id", creatorID.String()),
		zap.Float64("course_km", r.Course().TotalDistanceKm),
	)
	publishEvent(ctx, s.producer, s.logger, events.TopicRunningEvents, events.RunningCreated, r.ID().String(),
		events.RunningCreatedEvent{
			RunningID:       r.ID(),
			CreatorID:       r.CreatorID(),
			Title:           r.Title(),
			PlaceName:       r.PlaceName(),
			ScheduledAt:     r.ScheduledAt(),
			CourseKm:        r.Course().TotalDistanceKm,
			StartGeohash:    r.StartGeohash(),
			MaxParticipants: r.MaxParticipants(),
			OccurredAt:      time.Now().UTC(),
		})

	result := s.toDTO(r)
	return &result, nil
}

// GetRunning retrieves a running by ID.
func (s *RunningService) GetRunning(ctx context.Context, runningID uuid.UUID) (*RunningDTO, error) {
	r, err := s.repo.FindByID(ctx, runningID)
	if err != nil {
		return nil, err
	}
	result := s.toDTO(r)
	return &result, nil
}

// ListFeed returns upcoming recruiting runnings, soonest first. With a
// location it keeps only courses starting within RadiusKm of it.
func (s *RunningService) ListFeed(ctx context.Context, req FeedRequest) (*domain.PaginatedResult[RunningDTO], error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = 20
	}
	if req.Lat == nil || req.Lng == nil {
		items, total, err := s.repo.ListFeed(ctx, runningDomain.FeedQuery{
			After: s.now(),
			Page:  req.Page,
			Limit: req.Limit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list feed: %w", err)
		}
		dtos := make([]RunningDTO, len(items))
		for i, r := range items {
			dtos[i] = s.toDTO(r)
		}
		result := domain.NewPaginatedResult(dtos, total, req.Page, req.Limit)
		return &result, nil
	}

	origin, err := course.NewWaypoint(*req.Lat, *req.Lng)
	if err != nil {
		return nil, err
	}
	if !(req.RadiusKm > 0 && req.RadiusKm <= MaxFeedRadiusKm) {
		return nil, domain.NewValidationError(fmt.Sprintf("radius_km must be in (0, %g]", MaxFeedRadiusKm))
	}

	candidates, _, err := s.repo.ListFeed(ctx, runningDomain.FeedQuery{
		After:           s.now(),
		GeohashPrefixes: course.NearbyPrefixes(origin.Latitude, origin.Longitude, req.RadiusKm),
		Page:            1,
		Limit:           maxNearbyCandidates,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list nearby feed: %w", err)
	}

	nearby := make([]RunningDTO, 0, len(candidates))
	for _, r := range candidates {
		d := course.Distance(origin, r.Course().Start())
		if d > req.RadiusKm {
			continue
		}
		dto := s.toDTO(r)
		dto.DistanceFromKm = &d
		nearby = append(nearby, dto)
	}

	total := int64(len(nearby))
	start := (req.Page - 1) * req.Limit
	if start > len(nearby) {
		start = len(nearby)
	}
	end := start + req.Limit
	if end > len(nearby) {
		end = len(nearby)
	}
	result := domain.NewPaginatedResult(nearby[start:end], total, req.Page, req.Limit)
	return &result, nil
}

// ListMyRunnings returns the runnings the user created or joined, soonest first.
func (s *RunningService) ListMyRunnings(ctx context.Context, userID uuid.UUID) ([]MyRunningDTO, error) {
	memberships, err := s.repo.FindByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runnings: %w", err)
	}
	result := make([]MyRunningDTO, len(memberships))
	for i, m := range memberships {
		result[i] = MyRunningDTO{RunningDTO: s.toDTO(m.Running), IsCreator: m.IsCreator}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ScheduledAt.Before(result[j].ScheduledAt)
	})
	return result, nil
}

// ListParticipants returns the roster's public profiles, creator first.
func (s *RunningService) ListParticipants(ctx context.Context, runningID uuid.UUID) ([]ProfileDTO, error) {
	r, err := s.repo.FindByID(ctx, runningID)
	if err != nil {
		return nil, err
	}
	return s.profiles.ListProfiles(ctx, r.Roster())
}

// CourseGeoJSON returns the course of a running as a GeoJSON feature.
func (s *RunningService) CourseGeoJSON(ctx context.Context, runningID uuid.UUID) (*geojson.Feature, error) {
	r, err := s.repo.FindByID(ctx, runningID)
	if err != nil {
		return nil, err
	}
	f := r.Course().GeoJSON()
	f.ID = r.ID().String()
	f.Properties["title"] = r.Title()
	f.Properties["place_name"] = r.PlaceName()
	return f, nil
}

// Join adds the user to a recruiting running.
func (s *RunningService) Join(ctx context.Context, runningID, userID uuid.UUID) (*RunningDTO, error) {
	r, err := s.mutate(ctx, runningID, func(r *runningDomain.Running) error { return r.Join(userID) })
	if err != nil {
		return nil, err
	}
	s.logger.Info("running joined", zap.String("running_id", runningID.String()), zap.String("user_id", userID.String()))
	s.publishMembership(ctx, events.RunningJoined, r, userID, nil)
	result := s.toDTO(r)
	return &result, nil
}

// Leave removes the user from a running.
func (s *RunningService) Leave(ctx context.Context, runningID, userID uuid.UUID) (*RunningDTO, error) {
	r, err := s.mutate(ctx, runningID, func(r *runningDomain.Running) error { return r.Leave(userID) })
	if err != nil {
		return nil, err
	}
	s.logger.Info("running left", zap.String("running_id", runningID.String()), zap.String("user_id", userID.String()))
	s.publishMembership(ctx, events.RunningLeft, r, userID, nil)
	result := s.toDTO(r)
	return &result, nil
}

// Kick removes a participant on behalf of the creator.
func (s *RunningService) Kick(ctx context.Context, runningID, actorID, userID uuid.UUID) (*RunningDTO, error) {
	r, err := s.mutate(ctx, runningID, func(r *runningDomain.Running) error { return r.Kick(actorID, userID) })
	if err != nil {
		return nil, err
	}
	s.logger.Info("participant kicked",
		zap.String("running_id", runningID.String()),
		zap.String("user_id", userID.String()),
	)
	s.publishMembership(ctx, events.RunningParticipantKicked, r, userID, &actorID)
	result := s.toDTO(r)
	return &result, nil
}

// CloseRecruiting stops new joins.
func (s *RunningService) CloseRecruiting(ctx context.Context, runningID, actorID uuid.UUID) (*RunningDTO, error) {
	r, err := s.mutate(ctx, runningID, func(r *runningDomain.Running) error { return r.CloseRecruiting(actorID) })
	if err != nil {
		return nil, err
	}
	s.logger.Info("running recruiting closed", zap.String("running_id", runningID.String()))
	result := s.toDTO(r)
	return &result, nil
}

// Complete finishes a running and announces the roster for stats crediting.
func (s *RunningService) Complete(ctx context.Context, runningID, actorID uuid.UUID) (*RunningDTO, error) {
	r, err := s.mutate(ctx, runningID, func(r *runningDomain.Running) error { return r.Complete(actorID) })
	if err != nil {
		return nil, err
	}

	s.logger.Info("running completed",
		zap.String("running_id", runningID.String()),
		zap.Int("roster", len(r.Roster())),
	)
	publishEvent(ctx, s.producer, s.logger, events.TopicRunningEvents, events.RunningCompleted, r.ID().String(),
		events.RunningCompletedEvent{
			RunningID:   r.ID(),
			CreatorID:   r.CreatorID(),
			Roster:      r.Roster(),
			CourseKm:    r.Course().TotalDistanceKm,
			ScheduledAt: r.ScheduledAt(),
			OccurredAt:  time.Now().UTC(),
		})

	result := s.toDTO(r)
	return &result, nil
}

// Cancel cancels a running that has not finished.
func (s *RunningService) Cancel(ctx context.Context, runningID, actorID uuid.UUID, reason string) (*RunningDTO, error) {
	r, err := s.mutate(ctx, runningID, func(r *runningDomain.Running) error { return r.Cancel(actorID, reason) })
	if err != nil {
		return nil, err
	}

	s.logger.Info("running cancelled",
		zap.String("running_id", runningID.String()),
		zap.String("reason", r.CancelReason()),
	)
	publishEvent(ctx, s.producer, s.logger, events.TopicRunningEvents, events.RunningCancelled, r.ID().String(),
		events.RunningCancelledEvent{
			RunningID:  r.ID(),
			Roster:     r.Roster(),
			Reason:     r.CancelReason(),
			OccurredAt: time.Now().UTC(),
		})

	result := s.toDTO(r)
	return &result, nil
}

// ListAllRunnings returns a paginated list of all runnings (admin).
func (s *RunningService) ListAllRunnings(ctx context.Context, page, limit int) ([]RunningDTO, int64, error) {
	items, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runnings: %w", err)
	}
	dtos := make([]RunningDTO, len(items))
	for i, r := range items {
		dtos[i] = s.toDTO(r)
	}
	return dtos, total, nil
}

// GetRunningStats returns aggregate running statistics (admin).
func (s *RunningService) GetRunningStats(ctx context.Context) (*RunningStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get running stats: %w", err)
	}
	var total int64
	for _, c := range counts {
		total += c
	}
	return &RunningStatsDTO{TotalRunnings: total, ByStatus: counts}, nil
}

// --- Helpers ---

func (s *RunningService) mutate(ctx context.Context, runningID uuid.UUID, op func(*runningDomain.Running) error) (*runningDomain.Running, error) {
	r, err := s.repo.FindByID(ctx, runningID)
	if err != nil {
		return nil, err
	}
	if err := op(r); err != nil {
		return nil, err
	}
	r.IncrementVersion()
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to update running: %w", err)
	}
	return r, nil
}

func (s *RunningService) publishMembership(ctx context.Context, eventType string, r *runningDomain.Running, userID uuid.UUID, actorID *uuid.UUID) {
	publishEvent(ctx, s.producer, s.logger, events.TopicRunningEvents, eventType, r.ID().String(),
		events.RunningMembershipEvent{
			RunningID:        r.ID(),
			UserID:           userID,
			ActorID:          actorID,
			ParticipantCount: r.ParticipantCount(),
			OccurredAt:       time.Now().UTC(),
		})
}

func (s *RunningService) toDTO(r *runningDomain.Running) RunningDTO {
	date, clock := runningDomain.FormatSchedule(r.ScheduledAt(), s.location)
	var estimated int64
	if s.estimator != nil {
		if d, err := s.estimator.Estimate(r.Course().TotalDistanceKm); err == nil {
			estimated = int64(d / time.Second)
		}
	}
	return RunningDTO{
		ID:                   r.ID(),
		CreatorID:            r.CreatorID(),
		Title:                r.Title(),
		Description:          r.Description(),
		PlaceName:            r.PlaceName(),
		Date:                 date,
		Time:                 clock,
		ScheduledAt:          r.ScheduledAt(),
		Course:               r.Course(),
		EstimatedDurationSec: estimated,
		MaxParticipants:      r.MaxParticipants(),
		ParticipantCount:     r.ParticipantCount(),
		Participants:         r.Participants(),
		Status:               r.Status().String(),
		CancelReason:         r.CancelReason(),
		CompletedAt:          r.CompletedAt(),
		CancelledAt:          r.CancelledAt(),
		Version:              r.Version(),
		CreatedAt:            r.CreatedAt(),
		UpdatedAt:            r.UpdatedAt(),
	}
}
