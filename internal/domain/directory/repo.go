package directory

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository handles user persistence.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListByRole(ctx context.Context, role Role, limit, offset int) ([]*User, int, error)
	ListStaff(ctx context.Context, limit, offset int) ([]*User, int, error)
}
