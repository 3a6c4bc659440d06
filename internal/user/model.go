package user

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"fullName"`
	HashedPassword string    `json:"-"`
	Salt           string    `json:"-"`
	RefreshToken   string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Repository is the persistence contract for users. The bun, mongo and
// memory implementations are interchangeable.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetByIDs returns the users that exist among ids, in no particular order.
	GetByIDs(ctx context.Context, ids []string) ([]User, error)
	// CheckRefreshToken reports whether token is the refresh token stored for userID.
	CheckRefreshToken(ctx context.Context, userID, token string) (bool, error)
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
