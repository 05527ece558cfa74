// Package auth issues and validates JWTs and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the authorization role carried in access tokens.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims issued by this service.
type Claims struct {
	UserID    uuid.UUID `json:"uid"`
	Role      Role      `json:"role"`
	TokenType string    `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is an access token plus the refresh token that renews it.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// JWTManager signs and verifies HS256 tokens.
type JWTManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewJWTManager creates a manager. The same secret signs both token kinds.
func NewJWTManager(secret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return NewJWTManagerWithSecrets(secret, secret, accessTTL, refreshTTL)
}

// NewJWTManagerWithSecrets creates a manager with distinct access and refresh secrets.
func NewJWTManagerWithSecrets(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// GenerateTokenPair issues an access and a refresh token for userID.
func (m *JWTManager) GenerateTokenPair(userID uuid.UUID, role Role) (TokenPair, error) {
	now := m.now()
	access, err := m.sign(userID, role, tokenTypeAccess, now, m.accessTTL, m.accessSecret)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.sign(userID, role, tokenTypeRefresh, now, m.refreshTTL, m.refreshSecret)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(m.accessTTL).UTC(),
	}, nil
}

// ValidateAccessToken verifies an access token and returns its claims.
func (m *JWTManager) ValidateAccessToken(token string) (*Claims, error) {
	return m.validate(token, tokenTypeAccess, m.accessSecret)
}

// ValidateRefreshToken verifies a refresh token and returns its claims.
func (m *JWTManager) ValidateRefreshToken(token string) (*Claims, error) {
	return m.validate(token, tokenTypeRefresh, m.refreshSecret)
}

func (m *JWTManager) sign(userID uuid.UUID, role Role, tokenType string, now time.Time, ttl time.Duration, secret []byte) (string, error) {
	claims := Claims{
		UserID:    userID,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (m *JWTManager) validate(token, tokenType string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
