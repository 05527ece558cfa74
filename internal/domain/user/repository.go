package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for user accounts.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error)
	Save(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
}
