package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newResolverFixture(t *testing.T) (*Resolver, *MemStore) {
	t.Helper()
	withTestSecret(t)
	store := NewMemStore()
	return NewResolver(store), store
}

func issueFor(t *testing.T, username string) string {
	t.Helper()
	token, _, err := GenerateToken(username, 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func TestResolveHTTPActiveUser(t *testing.T) {
	resolver, store := newResolverFixture(t)
	user := &User{Username: "ayana", DisplayName: "Ayana", IsActive: true}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	principal, err := resolver.ResolveHTTP(context.Background(), issueFor(t, "ayana"))
	if err != nil {
		t.Fatalf("ResolveHTTP: %v", err)
	}
	if principal.ID != user.ID || principal.Username != "ayana" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

func TestResolveHTTPUnknownSubject(t *testing.T) {
	resolver, _ := newResolverFixture(t)

	_, err := resolver.ResolveHTTP(context.Background(), issueFor(t, "ghost"))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveHTTPInactiveUser(t *testing.T) {
	resolver, store := newResolverFixture(t)
	user := &User{Username: "dina", IsActive: false}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	_, err := resolver.ResolveHTTP(context.Background(), issueFor(t, "dina"))
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestResolveHTTPInvalidToken(t *testing.T) {
	resolver, _ := newResolverFixture(t)

	_, err := resolver.ResolveHTTP(context.Background(), "garbage")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestResolveConnectionStrict(t *testing.T) {
	resolver, store := newResolverFixture(t)
	user := &User{Username: "ayana", IsActive: true}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	principal, err := resolver.ResolveConnection(context.Background(), issueFor(t, "ayana"), true)
	if err != nil {
		t.Fatalf("strict resolve: %v", err)
	}
	if principal == nil || principal.Username != "ayana" {
		t.Fatalf("unexpected principal: %+v", principal)
	}

	if _, err := resolver.ResolveConnection(context.Background(), "garbage", true); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := resolver.ResolveConnection(context.Background(), issueFor(t, "ghost"), true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveConnectionNonStrictAllowsAnonymous(t *testing.T) {
	resolver, store := newResolverFixture(t)
	inactive := &User{Username: "dina", IsActive: false}
	if err := store.Create(context.Background(), inactive); err != nil {
		t.Fatalf("create user: %v", err)
	}

	for _, token := range []string{"", "garbage", issueFor(t, "ghost"), issueFor(t, "dina")} {
		principal, err := resolver.ResolveConnection(context.Background(), token, false)
		if err != nil {
			t.Fatalf("non-strict resolve for %q: %v", token, err)
		}
		if principal != nil {
			t.Fatalf("expected anonymous principal for %q, got %+v", token, principal)
		}
	}
}
