package auth

import "context"

type ctxKey int

const (
	principalKey ctxKey = iota
	tokenKey
)

// ContextWithPrincipal returns a context carrying the resolved principal.
// The auth middleware attaches it once per request; handlers and the
// interceptor read it back with PrincipalFromContext.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext reports the principal attached during
// authentication, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// ContextWithToken keeps the raw bearer token alongside the principal so
// downstream code can reuse it without reparsing headers. An empty token
// leaves the context untouched.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext returns the bearer token stored by ContextWithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	token, ok := ctx.Value(tokenKey).(string)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
