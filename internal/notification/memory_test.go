package notification

import (
	"context"
	"errors"
	"testing"
)

func seedRecords(t *testing.T, store Store, userID string, messages ...string) []string {
	t.Helper()
	var ids []string
	for _, msg := range messages {
		rec := &Record{UserID: userID, Message: msg}
		if err := store.Insert(context.Background(), rec); err != nil {
			t.Fatalf("insert %q: %v", msg, err)
		}
		ids = append(ids, rec.ID)
	}
	return ids
}

func TestQueryNewestFirst(t *testing.T) {
	store := NewMemStore()
	ids := seedRecords(t, store, "u-1", "first", "second", "third")

	got, err := store.Query(context.Background(), QueryParams{UserID: "u-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].ID != ids[2] || got[2].ID != ids[0] {
		t.Fatalf("expected newest-first ordering, got %v", []string{got[0].ID, got[1].ID, got[2].ID})
	}
}

func TestQuerySinceIDDelta(t *testing.T) {
	store := NewMemStore()
	ids := seedRecords(t, store, "u-1", "a", "b")

	delta, err := store.Query(context.Background(), QueryParams{UserID: "u-1", SinceID: ids[0]})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(delta) != 1 || delta[0].ID != ids[1] {
		t.Fatalf("expected only the second record, got %v", delta)
	}

	// Delta idempotence: same cursor, no intervening writes, second call from
	// the newest id returns nothing.
	empty, err := store.Query(context.Background(), QueryParams{UserID: "u-1", SinceID: ids[1]})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty delta, got %v", empty)
	}
}

func TestQueryReadFilterAndPaging(t *testing.T) {
	store := NewMemStore()
	ids := seedRecords(t, store, "u-1", "a", "b", "c")
	if _, err := store.MarkRead(context.Background(), "u-1", ids[1]); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	unread := false
	read, err := store.Query(context.Background(), QueryParams{UserID: "u-1", IsRead: &unread})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(read) != 2 {
		t.Fatalf("expected 2 unread, got %d", len(read))
	}

	paged, err := store.Query(context.Background(), QueryParams{UserID: "u-1", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(paged) != 1 || paged[0].ID != ids[1] {
		t.Fatalf("unexpected page: %v", paged)
	}
}

func TestQueryScopedToUser(t *testing.T) {
	store := NewMemStore()
	seedRecords(t, store, "u-1", "mine")
	seedRecords(t, store, "u-2", "theirs")

	got, err := store.Query(context.Background(), QueryParams{UserID: "u-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].Message != "mine" {
		t.Fatalf("expected only own records, got %v", got)
	}
}

func TestMarkAllReadAndDeleteRead(t *testing.T) {
	store := NewMemStore()
	seedRecords(t, store, "u-1", "a", "b", "c")

	n, err := store.MarkAllRead(context.Background(), "u-1")
	if err != nil || n != 3 {
		t.Fatalf("MarkAllRead = (%d, %v), want (3, nil)", n, err)
	}

	unread, err := store.CountUnread(context.Background(), "u-1")
	if err != nil || unread != 0 {
		t.Fatalf("CountUnread = (%d, %v), want (0, nil)", unread, err)
	}

	deleted, err := store.DeleteRead(context.Background(), "u-1")
	if err != nil || deleted != 3 {
		t.Fatalf("DeleteRead = (%d, %v), want (3, nil)", deleted, err)
	}
}

func TestMarkReadUnknownRecord(t *testing.T) {
	store := NewMemStore()
	if _, err := store.MarkRead(context.Background(), "u-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(context.Background(), "u-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertRequiresUser(t *testing.T) {
	store := NewMemStore()
	if err := store.Insert(context.Background(), &Record{Message: "orphan"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
