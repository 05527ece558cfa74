package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/runcrew/service-running/internal/common/auth"
	"github.com/runcrew/service-running/internal/common/domain"
	userDomain "github.com/runcrew/service-running/internal/domain/user"
)

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Email              string          `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash       string          `gorm:"type:varchar(100);not null"`
	Role               string          `gorm:"type:varchar(20);not null;default:'member'"`
	Name               string          `gorm:"type:varchar(50);not null"`
	Nickname           string          `gorm:"type:varchar(30)"`
	StatusMessage      string          `gorm:"type:varchar(150)"`
	Pace               string          `gorm:"type:varchar(20)"`
	ProfileImageURL    string          `gorm:"type:text"`
	TotalDistanceKm    float64         `gorm:"type:decimal(10,2);not null;default:0"`
	ParticipationCount int             `gorm:"not null;default:0"`
	History            json.RawMessage `gorm:"type:jsonb;not null"`
	Version            int64           `gorm:"not null;default:1"`
	CreatedAt          time.Time       `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt          time.Time       `gorm:"type:timestamptz;not null;default:now()"`
}

func (UserModel) TableName() string { return "users" }

// GormUserRepository implements user.Repository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	return r.findOne(ctx, "user", id.String(), "id = ?", id)
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*userDomain.User, error) {
	return r.findOne(ctx, "user", email, "email = ?", email)
}

func (r *GormUserRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*userDomain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []UserModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	users := make([]*userDomain.User, len(models))
	for i := range models {
		u, err := toUserDomain(&models[i])
		if err != nil {
			return nil, err
		}
		users[i] = u
	}
	return users, nil
}

func (r *GormUserRepository) Save(ctx context.Context, u *userDomain.User) error {
	model, err := toUserModel(u)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("email is already registered")
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (r *GormUserRepository) Update(ctx context.Context, u *userDomain.User) error {
	model, err := toUserModel(u)
	if err != nil {
		return err
	}
	previousVersion := u.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Updates(map[string]interface{}{
			"name":                model.Name,
			"nickname":            model.Nickname,
			"status_message":      model.StatusMessage,
			"pace":                model.Pace,
			"profile_image_url":   model.ProfileImageURL,
			"total_distance_km":   model.TotalDistanceKm,
			"participation_count": model.ParticipationCount,
			"history":             model.History,
			"version":             model.Version,
			"updated_at":          model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("user was modified by another transaction")
	}
	return nil
}

func (r *GormUserRepository) findOne(ctx context.Context, entity, key, query string, arg interface{}) (*userDomain.User, error) {
	var model UserModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError(entity, key)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return toUserDomain(&model)
}

// --- Conversions ---

func toUserModel(u *userDomain.User) (*UserModel, error) {
	history, err := json.Marshal(u.History())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	return &UserModel{
		ID:                 u.ID(),
		Email:              u.Email(),
		PasswordHash:       u.PasswordHash(),
		Role:               string(u.Role()),
		Name:               u.Name(),
		Nickname:           u.Nickname(),
		StatusMessage:      u.StatusMessage(),
		Pace:               u.Pace(),
		ProfileImageURL:    u.ProfileImageURL(),
		TotalDistanceKm:    u.TotalDistanceKm(),
		ParticipationCount: u.ParticipationCount(),
		History:            history,
		Version:            u.Version(),
		CreatedAt:          u.CreatedAt(),
		UpdatedAt:          u.UpdatedAt(),
	}, nil
}

func toUserDomain(m *UserModel) (*userDomain.User, error) {
	var history []userDomain.Participation
	if len(m.History) > 0 {
		if err := json.Unmarshal(m.History, &history); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history: %w", err)
		}
	}
	return userDomain.Reconstruct(
		m.ID,
		m.Email, m.PasswordHash,
		auth.Role(m.Role),
		m.Name, m.Nickname, m.StatusMessage, m.Pace, m.ProfileImageURL,
		m.TotalDistanceKm,
		m.ParticipationCount,
		history,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	), nil
}
