package project

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"folionest.org/internal/ids"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store for tests and local development.
type MemStore struct {
	mu       sync.RWMutex
	projects map[string]Project
}

func NewMemStore() *MemStore {
	return &MemStore{projects: make(map[string]Project)}
}

func (s *MemStore) Create(_ context.Context, p *Project) error {
	if strings.TrimSpace(p.OwnerID) == "" || strings.TrimSpace(p.Name) == "" {
		return ErrInvalidInput
	}
	if p.ID == "" {
		p.ID = ids.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = *p
	return nil
}

func (s *MemStore) Find(_ context.Context, id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemStore) ListByOwner(_ context.Context, ownerID string) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Project
	for _, p := range s.projects {
		if p.OwnerID == ownerID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *MemStore) Update(_ context.Context, p *Project) error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.projects[p.ID]
	if !ok || existing.OwnerID != p.OwnerID {
		return ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.projects[p.ID] = *p
	return nil
}

func (s *MemStore) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.projects[id]
	if !ok || existing.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.projects, id)
	return nil
}
