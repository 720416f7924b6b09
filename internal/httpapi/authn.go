package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"folionest.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/signup",
	"/v1/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// The websocket endpoint authenticates inside its own handler (the token
// usually arrives as a query parameter, not a header).
var publicPrefixes = []string{
	"/v1/ws/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		principal, err := a.resolver.ResolveHTTP(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				writeError(w, r, http.StatusUnauthorized, "token expired")
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUnauthorized):
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			case errors.Is(err, auth.ErrForbidden):
				writeError(w, r, http.StatusForbidden, "account disabled")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func mustPrincipal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Principal{}, false
	}
	return principal, true
}
