package auth

import (
	"context"
	"errors"
)

// Resolver turns verified tokens into live principals. The user record is
// loaded fresh on every resolution: deactivating a user takes effect on the
// next authentication, never retroactively against an open connection.
type Resolver struct {
	users UserStore
}

// NewResolver constructs a Resolver over the given user store.
func NewResolver(users UserStore) *Resolver {
	return &Resolver{users: users}
}

// ResolveHTTP authenticates a per-request bearer token. Token failures map
// to ErrInvalidToken/ErrTokenExpired, an unknown subject to ErrUnauthorized
// and a deactivated user to ErrForbidden.
func (r *Resolver) ResolveHTTP(ctx context.Context, token string) (Principal, error) {
	claims, err := ParseAndValidate(token)
	if err != nil {
		return Principal{}, err
	}
	user, err := r.users.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}
	if !user.IsActive {
		return Principal{}, ErrForbidden
	}
	return Principal{ID: user.ID, Username: user.Username, DisplayName: user.DisplayName}, nil
}

// ResolveConnection authenticates a connection handshake. In strict mode it
// behaves exactly like ResolveHTTP. In non-strict mode a missing or invalid
// token yields (nil, nil): the connection is anonymous and receives no
// personalized data. Store errors surface in both modes.
func (r *Resolver) ResolveConnection(ctx context.Context, token string, strict bool) (*Principal, error) {
	principal, err := r.ResolveHTTP(ctx, token)
	if err != nil {
		if strict {
			return nil, err
		}
		switch {
		case errors.Is(err, ErrInvalidToken),
			errors.Is(err, ErrTokenExpired),
			errors.Is(err, ErrUnauthorized),
			errors.Is(err, ErrForbidden):
			return nil, nil
		}
		return nil, err
	}
	return &principal, nil
}
