package application

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/runcrew/service-running/internal/common/auth"
	"github.com/runcrew/service-running/internal/common/domain"
	userDomain "github.com/runcrew/service-running/internal/domain/user"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// RegisterRequest holds the data needed to create an account.
type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	Name            string `json:"name" binding:"required,max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UpdateProfileRequest is a partial profile edit. Omitted fields are left unchanged.
type UpdateProfileRequest struct {
	Name            *string `json:"name" binding:"omitempty,max=50"`
	Nickname        *string `json:"nickname" binding:"omitempty,max=30"`
	StatusMessage   *string `json:"status_message" binding:"omitempty,max=150"`
	Pace            *string `json:"pace" binding:"omitempty,max=20"`
	ProfileImageURL *string `json:"profile_image_url" binding:"omitempty,max=500"`
}

// ProfileDTO is the public view of a user.
type ProfileDTO struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Nickname        string    `json:"nickname,omitempty"`
	DisplayName     string    `json:"display_name"`
	StatusMessage   string    `json:"status_message,omitempty"`
	Pace            string    `json:"pace,omitempty"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
}

// MeDTO is the signed-in user's own account.
type MeDTO struct {
	ProfileDTO
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// StatsDTO is a user's running record.
type StatsDTO struct {
	TotalDistanceKm    float64                    `json:"total_distance_km"`
	ParticipationCount int                        `json:"participation_count"`
	History            []userDomain.Participation `json:"history"`
}

type AuthResultDTO struct {
	User   MeDTO          `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

// UserService is the application service for accounts, profiles and stats.
type UserService struct {
	repo   userDomain.Repository
	jwt    *auth.JWTManager
	cache  *ProfileCache
	logger *zap.Logger
}

// NewUserService creates a new UserService. cache may be nil.
func NewUserService(repo userDomain.Repository, jwt *auth.JWTManager, cache *ProfileCache, logger *zap.Logger) *UserService {
	return &UserService{repo: repo, jwt: jwt, cache: cache, logger: logger}
}

// Register creates a member account and signs it in.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*AuthResultDTO, error) {
	if req.Password != req.ConfirmPassword {
		return nil, domain.NewValidationError("passwords do not match")
	}
	if utf8.RuneCountInString(req.Password) < MinPasswordLength {
		return nil, domain.NewValidationError(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	email, err := userDomain.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.NewConflictError("email is already registered")
	} else if !domain.IsNotFound(err) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u, err := userDomain.NewUser(email, hash, req.Name)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", u.ID().String()))
	return s.signIn(u)
}

// Login verifies credentials. Unknown email and wrong password look the same to the caller.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*AuthResultDTO, error) {
	email, err := userDomain.NormalizeEmail(req.Email)
	if err != nil {
		return nil, domain.NewUnauthorizedError("invalid email or password")
	}
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewUnauthorizedError("invalid email or password")
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !auth.CheckPassword(req.Password, u.PasswordHash()) {
		return nil, domain.NewUnauthorizedError("invalid email or password")
	}
	return s.signIn(u)
}

// Refresh exchanges a refresh token for a new token pair.
func (s *UserService) Refresh(ctx context.Context, req RefreshRequest) (*AuthResultDTO, error) {
	claims, err := s.jwt.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, domain.NewUnauthorizedError("invalid or expired refresh token")
	}
	u, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewUnauthorizedError("account no longer exists")
		}
		return nil, err
	}
	return s.signIn(u)
}

// GetMe returns the caller's own account.
func (s *UserService) GetMe(ctx context.Context, userID uuid.UUID) (*MeDTO, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	me := toMeDTO(u)
	return &me, nil
}

// UpdateProfile applies a partial profile edit.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*MeDTO, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := u.UpdateProfile(userDomain.ProfileUpdate{
		Name:            req.Name,
		Nickname:        req.Nickname,
		StatusMessage:   req.StatusMessage,
		Pace:            req.Pace,
		ProfileImageURL: req.ProfileImageURL,
	}); err != nil {
		return nil, err
	}

	u.IncrementVersion()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	s.cache.Invalidate(userID)

	me := toMeDTO(u)
	return &me, nil
}

// GetProfile returns a public profile, from cache when possible.
func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error) {
	if p, ok := s.cache.Get(userID); ok {
		return &p, nil
	}
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := toProfileDTO(u)
	s.cache.Add(p)
	return &p, nil
}

// ListProfiles returns profiles in the order of ids. Unknown ids are skipped.
func (s *UserService) ListProfiles(ctx context.Context, ids []uuid.UUID) ([]ProfileDTO, error) {
	found := make(map[uuid.UUID]ProfileDTO, len(ids))
	var missing []uuid.UUID
	for _, id := range ids {
		if p, ok := s.cache.Get(id); ok {
			found[id] = p
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		users, err := s.repo.FindByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to load profiles: %w", err)
		}
		for _, u := range users {
			p := toProfileDTO(u)
			s.cache.Add(p)
			found[p.ID] = p
		}
	}

	profiles := make([]ProfileDTO, 0, len(ids))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

// GetStats returns the user's distance, participation count and history.
func (s *UserService) GetStats(ctx context.Context, userID uuid.UUID) (*StatsDTO, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &StatsDTO{
		TotalDistanceKm:    u.TotalDistanceKm(),
		ParticipationCount: u.ParticipationCount(),
		History:            u.History(),
	}, nil
}

// RecordParticipation credits a completed running to userID. Crediting the
// same running twice is a no-op.
func (s *UserService) RecordParticipation(ctx context.Context, userID uuid.UUID, p userDomain.Participation) error {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.RecordParticipation(p) {
		s.logger.Debug("participation already recorded",
			zap.String("user_id", userID.String()),
			zap.String("running_id", p.RunningID.String()),
		)
		return nil
	}

	u.IncrementVersion()
	if err := s.repo.Update(ctx, u); err != nil {
		return fmt.Errorf("failed to record participation: %w", err)
	}

	s.logger.Info("participation recorded",
		zap.String("user_id", userID.String()),
		zap.String("running_id", p.RunningID.String()),
		zap.Float64("course_km", p.CourseKm),
		zap.Float64("total_distance_km", u.TotalDistanceKm()),
	)
	return nil
}

func (s *UserService) signIn(u *userDomain.User) (*AuthResultDTO, error) {
	tokens, err := s.jwt.GenerateTokenPair(u.ID(), u.Role())
	if err != nil {
		return nil, err
	}
	return &AuthResultDTO{User: toMeDTO(u), Tokens: tokens}, nil
}

func toProfileDTO(u *userDomain.User) ProfileDTO {
	return ProfileDTO{
		ID:              u.ID(),
		Name:            u.Name(),
		Nickname:        u.Nickname(),
		DisplayName:     u.DisplayName(),
		StatusMessage:   u.StatusMessage(),
		Pace:            u.Pace(),
		ProfileImageURL: u.ProfileImageURL(),
	}
}

func toMeDTO(u *userDomain.User) MeDTO {
	return MeDTO{
		ProfileDTO: toProfileDTO(u),
		Email:      u.Email(),
		Role:       u.Role(),
		CreatedAt:  u.CreatedAt(),
	}
}
