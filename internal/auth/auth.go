package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer            = "folionest"
	secretEnvVariable = "FOLIONEST_AUTH_SECRET"
)

var (
	errMissingSecret = errors.New("auth secret is not configured")

	secretMu sync.Mutex
	secret   cachedSecret
)

type cachedSecret struct {
	value []byte
	err   error
	ready bool
}

// Claims represents verified JWT claims. Expiry and issued-at are carried as
// integer seconds since epoch (jwt.NumericDate); no duration arithmetic
// leaks past token issuance.
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken signs a JWT for the given subject using HS256. Rotating the
// signing secret invalidates all outstanding tokens; there is no revocation
// list.
func GenerateToken(subject string, ttl time.Duration) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("subject is required")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("ttl must be greater than zero")
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return "", time.Time{}, err
	}

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secretBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseAndValidate verifies the token signature and required claims. It is
// pure: no store access happens here, so it stays cheap on the hot path.
func ParseAndValidate(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secretBytes, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := validateClaims(claims); err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func validateClaims(claims *Claims) error {
	if claims.Issuer != issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := time.Now().UTC()
	if now.After(claims.ExpiresAt.Time) {
		return ErrTokenExpired
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

func loadSecret() ([]byte, error) {
	secretMu.Lock()
	defer secretMu.Unlock()
	if secret.ready {
		return secret.value, secret.err
	}
	raw := strings.TrimSpace(os.Getenv(secretEnvVariable))
	if raw == "" {
		secret.err = errMissingSecret
		secret.ready = true
		return nil, secret.err
	}
	secret.value = []byte(raw)
	secret.err = nil
	secret.ready = true
	return secret.value, nil
}

// ResetSecretForTests clears the cached secret value. Only intended for test use.
func ResetSecretForTests() {
	secretMu.Lock()
	defer secretMu.Unlock()
	secret = cachedSecret{}
}
