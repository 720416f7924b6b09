package auth

import "errors"

var (
	// ErrInvalidToken indicates the token failed signature or structural checks.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenExpired indicates a well-formed token whose expiry has passed.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrUnauthorized indicates the token subject does not resolve to a user.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrForbidden indicates the resolved user is deactivated.
	ErrForbidden = errors.New("auth: forbidden")

	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
)
