package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/runcrew/service-running/internal/common/domain"
	"github.com/runcrew/service-running/internal/domain/course"
	runningDomain "github.com/runcrew/service-running/internal/domain/running"
)

// RunningModel is the GORM model for the runnings table.
type RunningModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CreatorID       uuid.UUID       `gorm:"type:uuid;index;not null"`
	Title           string          `gorm:"not null;size:100"`
	Description     string          `gorm:"type:text"`
	PlaceName       string          `gorm:"not null;size:200"`
	ScheduledAt     time.Time       `gorm:"not null;index"`
	Course          json.RawMessage `gorm:"type:jsonb;not null"`
	TotalDistanceKm float64         `gorm:"type:decimal(8,2);not null"`
	StartGeohash    string          `gorm:"size:12;index;not null"`
	MaxParticipants int             `gorm:"not null;default:0"`
	Participants    json.RawMessage `gorm:"type:jsonb;not null"`
	Status          string          `gorm:"not null;size:20;index"`
	CancelReason    string          `gorm:"size:500"`
	CompletedAt     *time.Time      `gorm:""`
	CancelledAt     *time.Time      `gorm:""`
	Version         int64           `gorm:"not null;default:1"`
	CreatedAt       time.Time       `gorm:"not null"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (RunningModel) TableName() string {
	return "runnings"
}

// GormRunningRepository is the GORM-based implementation of running.Repository.
type GormRunningRepository struct {
	db *gorm.DB
}

// NewGormRunningRepository creates a new GormRunningRepository.
func NewGormRunningRepository(db *gorm.DB) *GormRunningRepository {
	return &GormRunningRepository{db: db}
}

// FindByID retrieves a running by its unique identifier.
func (r *GormRunningRepository) FindByID(ctx context.Context, id uuid.UUID) (*runningDomain.Running, error) {
	var model RunningModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("running", id.String())
		}
		return nil, fmt.Errorf("failed to find running by ID: %w", err)
	}
	return toDomainRunning(&model)
}

// ListFeed retrieves recruiting runnings scheduled after q.After, soonest first.
func (r *GormRunningRepository) ListFeed(ctx context.Context, q runningDomain.FeedQuery) ([]*runningDomain.Running, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("status = ? AND scheduled_at > ?", runningDomain.StatusRecruiting.String(), q.After)
		if len(q.GeohashPrefixes) == 0 {
			return db
		}
		conds := make([]string, len(q.GeohashPrefixes))
		args := make([]interface{}, len(q.GeohashPrefixes))
		for i, p := range q.GeohashPrefixes {
			conds[i] = "start_geohash LIKE ?"
			args[i] = p + "%"
		}
		return db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&RunningModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count feed: %w", err)
	}

	var models []RunningModel
	offset := (q.Page - 1) * q.Limit
	if err := r.db.WithContext(ctx).
		Scopes(scope).
		Order("scheduled_at ASC").
		Offset(offset).
		Limit(q.Limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list feed: %w", err)
	}

	runnings, err := toDomainRunnings(models)
	if err != nil {
		return nil, 0, err
	}
	return runnings, total, nil
}

// FindByMember retrieves runnings the user created or joined, soonest first.
func (r *GormRunningRepository) FindByMember(ctx context.Context, userID uuid.UUID) ([]runningDomain.Membership, error) {
	member, err := json.Marshal([]uuid.UUID{userID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal member filter: %w", err)
	}

	var models []RunningModel
	if err := r.db.WithContext(ctx).
		Where("creator_id = ? OR participants @> ?::jsonb", userID, string(member)).
		Order("scheduled_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find member runnings: %w", err)
	}

	result := make([]runningDomain.Membership, len(models))
	for i := range models {
		item, err := toDomainRunning(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = runningDomain.Membership{Running: item, IsCreator: item.IsCreator(userID)}
	}
	return result, nil
}

// ListAll retrieves all runnings with pagination (admin).
func (r *GormRunningRepository) ListAll(ctx context.Context, page, limit int) ([]*runningDomain.Running, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&RunningModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count runnings: %w", err)
	}

	var models []RunningModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list runnings: %w", err)
	}

	runnings, err := toDomainRunnings(models)
	if err != nil {
		return nil, 0, err
	}
	return runnings, total, nil
}

// CountByStatus returns running counts grouped by status (admin).
func (r *GormRunningRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&RunningModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new running.
func (r *GormRunningRepository) Save(ctx context.Context, item *runningDomain.Running) error {
	model, err := toRunningModel(item)
	if err != nil {
		return fmt.Errorf("failed to convert running to model: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save running: %w", err)
	}
	return nil
}

// Update persists changes to an existing running with optimistic locking.
func (r *GormRunningRepository) Update(ctx context.Context, item *runningDomain.Running) error {
	model, err := toRunningModel(item)
	if err != nil {
		return fmt.Errorf("failed to convert running to model: %w", err)
	}

	// IncrementVersion has already been called, so the stored row holds version-1.
	expectedVersion := item.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&RunningModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"title":             model.Title,
			"description":       model.Description,
			"place_name":        model.PlaceName,
			"scheduled_at":      model.ScheduledAt,
			"course":            model.Course,
			"total_distance_km": model.TotalDistanceKm,
			"start_geohash":     model.StartGeohash,
			"max_participants":  model.MaxParticipants,
			"participants":      model.Participants,
			"status":            model.Status,
			"cancel_reason":     model.CancelReason,
			"completed_at":      model.CompletedAt,
			"cancelled_at":      model.CancelledAt,
			"version":           model.Version,
			"updated_at":        model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update running: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("running was modified by another transaction")
	}
	return nil
}

// --- Conversion Helpers ---

func toRunningModel(item *runningDomain.Running) (*RunningModel, error) {
	route := item.Course()
	courseJSON, err := json.Marshal(route)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal course: %w", err)
	}
	participantsJSON, err := json.Marshal(item.Participants())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal participants: %w", err)
	}

	return &RunningModel{
		ID:              item.ID(),
		CreatorID:       item.CreatorID(),
		Title:           item.Title(),
		Description:     item.Description(),
		PlaceName:       item.PlaceName(),
		ScheduledAt:     item.ScheduledAt(),
		Course:          courseJSON,
		TotalDistanceKm: route.TotalDistanceKm,
		StartGeohash:    item.StartGeohash(),
		MaxParticipants: item.MaxParticipants(),
		Participants:    participantsJSON,
		Status:          item.Status().String(),
		CancelReason:    item.CancelReason(),
		CompletedAt:     item.CompletedAt(),
		CancelledAt:     item.CancelledAt(),
		Version:         item.Version(),
		CreatedAt:       item.CreatedAt(),
		UpdatedAt:       item.UpdatedAt(),
	}, nil
}

func toDomainRunning(m *RunningModel) (*runningDomain.Running, error) {
	var route course.SerializedRoute
	if err := json.Unmarshal(m.Course, &route); err != nil {
		return nil, fmt.Errorf("failed to unmarshal course: %w", err)
	}

	var participants []uuid.UUID
	if len(m.Participants) > 0 {
		if err := json.Unmarshal(m.Participants, &participants); err != nil {
			return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
		}
	}

	status, err := runningDomain.ParseStatus(m.Status)
	if err != nil {
		return nil, err
	}

	return runningDomain.ReconstructRunning(
		m.ID,
		m.CreatorID,
		m.Title,
		m.Description,
		m.PlaceName,
		m.ScheduledAt.UTC(),
		route,
		m.StartGeohash,
		m.MaxParticipants,
		participants,
		status,
		m.CancelReason,
		m.CompletedAt,
		m.CancelledAt,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainRunnings(models []RunningModel) ([]*runningDomain.Running, error) {
	runnings := make([]*runningDomain.Running, len(models))
	for i := range models {
		item, err := toDomainRunning(&models[i])
		if err != nil {
			return nil, err
		}
		runnings[i] = item
	}
	return runnings, nil
}
