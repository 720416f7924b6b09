package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"folionest.org/internal/ids"
)

var _ UserStore = (*MemStore)(nil)

// MemStore is an in-memory UserStore used by tests.
type MemStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewMemStore() *MemStore {
	return &MemStore{users: make(map[string]*User)}
}

func (s *MemStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Username = strings.TrimSpace(strings.ToLower(u.Username))
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return ErrAlreadyExists
		}
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	copied := *u
	s.users[u.ID] = &copied
	return nil
}

func (s *MemStore) Find(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *MemStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) SetActive(ctx context.Context, userID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = time.Now().UTC()
	return nil
}
