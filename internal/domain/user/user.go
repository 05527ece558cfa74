package user

import (
	"fmt"
	"math"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runcrew/service-running/internal/common/auth"
	"github.com/runcrew/service-running/internal/common/domain"
)

// Participation is one completed running credited to a user.
type Participation struct {
	RunningID uuid.UUID `json:"running_id"`
	Date      time.Time `json:"date"`
	CourseKm  float64   `json:"course_km"`
}

// ProfileUpdate carries a partial profile edit. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name            *string
	Nickname        *string
	StatusMessage   *string
	Pace            *string
	ProfileImageURL *string
}

// User is the aggregate root for an account, its profile and its running stats.
type User struct {
	id              uuid.UUID
	email           string
	passwordHash    string
	role            auth.Role
	name            string
	nickname        string
	statusMessage   string
	pace            string
	profileImageURL string

	totalDistanceKm    float64
	participationCount int
	history            []Participation

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewUser creates a member account. passwordHash must already be hashed.
func NewUser(email, passwordHash, name string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, domain.NewValidationError("password is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name is required")
	}

	now := time.Now().UTC()
	return &User{
		id:           uuid.New(),
		email:        email,
		passwordHash: passwordHash,
		role:         auth.RoleMember,
		name:         name,
		history:      []Participation{},
		version:      1,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// Reconstruct rebuilds a User from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	email, passwordHash string,
	role auth.Role,
	name, nickname, statusMessage, pace, profileImageURL string,
	totalDistanceKm float64,
	participationCount int,
	history []Participation,
	version int64,
	createdAt, updatedAt time.Time,
) *User {
	if history == nil {
		history = []Participation{}
	}
	return &User{
		id:                 id,
		email:              email,
		passwordHash:       passwordHash,
		role:               role,
		name:               name,
		nickname:           nickname,
		statusMessage:      statusMessage,
		pace:               pace,
		profileImageURL:    profileImageURL,
		totalDistanceKm:    totalDistanceKm,
		participationCount: participationCount,
		history:            history,
		version:            version,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}
}

// NormalizeEmail lower-cases and validates an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.NewValidationError(fmt.Sprintf("invalid email: %q", email))
	}
	return email, nil
}

// --- Getters ---

func (u *User) ID() uuid.UUID              { return u.id }
func (u *User) Email() string              { return u.email }
func (u *User) PasswordHash() string       { return u.passwordHash }
func (u *User) Role() auth.Role            { return u.role }
func (u *User) Name() string               { return u.name }
func (u *User) Nickname() string           { return u.nickname }
func (u *User) StatusMessage() string      { return u.statusMessage }
func (u *User) Pace() string               { return u.pace }
func (u *User) ProfileImageURL() string    { return u.profileImageURL }
func (u *User) TotalDistanceKm() float64   { return u.totalDistanceKm }
func (u *User) ParticipationCount() int    { return u.participationCount }
func (u *User) Version() int64             { return u.version }
func (u *User) CreatedAt() time.Time       { return u.createdAt }
func (u *User) UpdatedAt() time.Time       { return u.updatedAt }
func (u *User) History() []Participation   { return slices.Clone(u.history) }

// DisplayName prefers the nickname.
func (u *User) DisplayName() string {
	if u.nickname != "" {
		return u.nickname
	}
	return u.name
}

// --- Behavior ---

// UpdateProfile applies a partial update. A set but blank name is rejected.
func (u *User) UpdateProfile(p ProfileUpdate) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return domain.NewValidationError("name cannot be blank")
		}
		u.name = name
	}
	if p.Nickname != nil {
		u.nickname = strings.TrimSpace(*p.Nickname)
	}
	if p.StatusMessage != nil {
		u.statusMessage = strings.TrimSpace(*p.StatusMessage)
	}
	if p.Pace != nil {
		u.pace = strings.TrimSpace(*p.Pace)
	}
	if p.ProfileImageURL != nil {
		u.profileImageURL = strings.TrimSpace(*p.ProfileImageURL)
	}
	u.updatedAt = time.Now().UTC()
	return nil
}

// RecordParticipation credits a completed running. It returns false when the
// running was already credited, leaving the stats unchanged.
func (u *User) RecordParticipation(p Participation) bool {
	for _, h := range u.history {
		if h.RunningID == p.RunningID {
			return false
		}
	}
	u.history = append(slices.Clone(u.history), p)
	u.participationCount++
	u.totalDistanceKm = roundKm(u.totalDistanceKm + p.CourseKm)
	u.updatedAt = time.Now().UTC()
	return true
}

// IncrementVersion bumps the version for optimistic locking.
func (u *User) IncrementVersion() {
	u.version++
	u.updatedAt = time.Now().UTC()
}

func roundKm(v float64) float64 {
	return math.Round(v*100) / 100
}
