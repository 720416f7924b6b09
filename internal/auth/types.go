package auth

import "time"

// User is the persisted account record.
type User struct {
	ID           string
	Username     string
	Email        string
	DisplayName  string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the authenticated actor attached to a request or connection.
// Only active users become principals; liveness is checked at resolution
// time, never cached beyond it.
type Principal struct {
	ID          string
	Username    string
	DisplayName string
}
