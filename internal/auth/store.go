package auth

import "context"

// UserStore describes persistence operations required by the auth subsystem.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetActive(ctx context.Context, userID string, active bool) error
}
