package notification

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"folionest.org/internal/ids"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store with the same ordering and cursor semantics
// as PGStore. Used by tests and by the session unit tests.
type MemStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Insert(ctx context.Context, rec *Record) error {
	if strings.TrimSpace(rec.UserID) == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.Type == "" {
		rec.Type = TypeSystem
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.records = append(s.records, cloneRecord(*rec))
	return nil
}

func (s *MemStore) Query(ctx context.Context, p QueryParams) ([]Record, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return nil, ErrInvalidInput
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Record
	for _, rec := range s.records {
		if rec.UserID != p.UserID {
			continue
		}
		if p.SinceID != "" && rec.ID <= p.SinceID {
			continue
		}
		if p.IsRead != nil && rec.IsRead != *p.IsRead {
			continue
		}
		matched = append(matched, cloneRecord(rec))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	if p.Offset > 0 {
		if p.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[p.Offset:]
	}
	if p.Limit > 0 && len(matched) > p.Limit {
		matched = matched[:p.Limit]
	}
	return matched, nil
}

func (s *MemStore) CountUnread(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.records {
		if rec.UserID == userID && !rec.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) MarkRead(ctx context.Context, userID, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		rec := &s.records[i]
		if rec.ID == id && rec.UserID == userID {
			rec.IsRead = true
			if rec.ReadAt == nil {
				now := time.Now().UTC()
				rec.ReadAt = &now
			}
			copied := cloneRecord(*rec)
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for i := range s.records {
		rec := &s.records[i]
		if rec.UserID == userID && !rec.IsRead {
			rec.IsRead = true
			rec.ReadAt = &now
			n++
		}
	}
	return n, nil
}

func (s *MemStore) DeleteRead(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	n := 0
	for _, rec := range s.records {
		if rec.UserID == userID && rec.IsRead {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	return n, nil
}

func (s *MemStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range s.records {
		if rec.ID == id && rec.UserID == userID {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func cloneRecord(rec Record) Record {
	if rec.Meta != nil {
		meta := make(map[string]any, len(rec.Meta))
		for k, v := range rec.Meta {
			meta[k] = v
		}
		rec.Meta = meta
	}
	if rec.ReadAt != nil {
		t := *rec.ReadAt
		rec.ReadAt = &t
	}
	return rec
}
