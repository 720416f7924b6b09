package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"folionest.org/internal/auth"
	"folionest.org/internal/notification"
)

type capturePusher struct {
	mu       sync.Mutex
	messages []any
	failAt   int // 1-based index of push that fails; 0 disables
	pushed   int
}

func (p *capturePusher) Push(_ context.Context, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed++
	if p.failAt > 0 && p.pushed >= p.failAt {
		return errors.New("connection reset")
	}
	p.messages = append(p.messages, v)
	return nil
}

func (p *capturePusher) snapshot() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.messages...)
}

type failingStore struct {
	notification.Store
	failQuery bool
}

func (s *failingStore) Query(ctx context.Context, params notification.QueryParams) ([]notification.Record, error) {
	if s.failQuery {
		return nil, errors.New("connection refused")
	}
	return s.Store.Query(ctx, params)
}

var tester = auth.Principal{ID: "u-1", Username: "ayana"}

func insert(t *testing.T, store notification.Store, msg string) notification.Record {
	t.Helper()
	rec := notification.Record{UserID: tester.ID, Message: msg}
	if err := store.Insert(context.Background(), &rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return rec
}

func TestInitialEmptyBatch(t *testing.T) {
	push := &capturePusher{}
	sess := NewSession(notification.NewMemStore(), push, tester)

	if err := sess.initial(context.Background()); err != nil {
		t.Fatalf("initial: %v", err)
	}
	msgs := push.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	batch, ok := msgs[0].(InitialBatch)
	if !ok {
		t.Fatalf("expected InitialBatch, got %T", msgs[0])
	}
	if batch.Type != MessageInitialBatch || batch.Count != 0 || batch.Data == nil {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	if sess.lastSeenID != "" {
		t.Fatalf("cursor moved on empty batch: %q", sess.lastSeenID)
	}
}

func TestInitialBatchSetsCursor(t *testing.T) {
	store := notification.NewMemStore()
	insert(t, store, "first")
	newest := insert(t, store, "second")

	push := &capturePusher{}
	sess := NewSession(store, push, tester)
	if err := sess.initial(context.Background()); err != nil {
		t.Fatalf("initial: %v", err)
	}
	batch := push.snapshot()[0].(InitialBatch)
	if batch.Count != 2 || batch.Data[0].ID != newest.ID {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	if sess.lastSeenID != newest.ID {
		t.Fatalf("cursor = %q, want %q", sess.lastSeenID, newest.ID)
	}
}

func TestPollDeliversNewInOrderThenHeartbeat(t *testing.T) {
	store := notification.NewMemStore()
	push := &capturePusher{}
	sess := NewSession(store, push, tester)
	if err := sess.initial(context.Background()); err != nil {
		t.Fatalf("initial: %v", err)
	}

	a := insert(t, store, "a")
	b := insert(t, store, "b")

	if err := sess.pollOnce(context.Background()); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	msgs := push.snapshot()[1:]
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d: %v", len(msgs), msgs)
	}
	first, second := msgs[0].(NewNotification), msgs[1].(NewNotification)
	if first.Data.ID != b.ID || second.Data.ID != a.ID {
		t.Fatalf("expected newest first: %q then %q", first.Data.ID, second.Data.ID)
	}
	hb, ok := msgs[2].(Heartbeat)
	if !ok || hb.Type != MessageHeartbeat {
		t.Fatalf("expected heartbeat last, got %T", msgs[2])
	}
	if _, err := time.Parse(time.RFC3339, hb.Timestamp); err != nil {
		t.Fatalf("bad heartbeat timestamp %q: %v", hb.Timestamp, err)
	}
}

func TestPollDoesNotRedeliver(t *testing.T) {
	store := notification.NewMemStore()
	push := &capturePusher{}
	sess := NewSession(store, push, tester)
	if err := sess.initial(context.Background()); err != nil {
		t.Fatalf("initial: %v", err)
	}

	insert(t, store, "once")
	if err := sess.pollOnce(context.Background()); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	if err := sess.pollOnce(context.Background()); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}

	var delivered int
	for _, m := range push.snapshot() {
		if _, ok := m.(NewNotification); ok {
			delivered++
		}
	}
	if delivered != 1 {
		t.Fatalf("notification delivered %d times", delivered)
	}
}

func TestPollDeliversMoreThanPageSize(t *testing.T) {
	store := notification.NewMemStore()
	push := &capturePusher{}
	sess := NewSession(store, push, tester, WithPageSize(3))
	if err := sess.initial(context.Background()); err != nil {
		t.Fatalf("initial: %v", err)
	}

	inserted := make(map[string]bool)
	for i := 0; i < 8; i++ {
		rec := insert(t, store, "burst")
		inserted[rec.ID] = true
	}

	if err := sess.pollOnce(context.Background()); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	if err := sess.pollOnce(context.Background()); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}

	delivered := make(map[string]bool)
	for _, m := range push.snapshot() {
		if n, ok := m.(NewNotification); ok {
			if delivered[n.Data.ID] {
				t.Fatalf("record %q delivered twice", n.Data.ID)
			}
			delivered[n.Data.ID] = true
		}
	}
	if len(delivered) != len(inserted) {
		t.Fatalf("inserted %d, delivered %d", len(inserted), len(delivered))
	}
	for id := range inserted {
		if !delivered[id] {
			t.Fatalf("record %q never delivered", id)
		}
	}
}

func TestHeartbeatEveryCycle(t *testing.T) {
	store := notification.NewMemStore()
	push := &capturePusher{}
	sess := NewSession(store, push, tester)
	if err := sess.initial(context.Background()); err != nil {
		t.Fatalf("initial: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := sess.pollOnce(context.Background()); err != nil {
			t.Fatalf("pollOnce: %v", err)
		}
	}
	var beats int
	for _, m := range push.snapshot() {
		if _, ok := m.(Heartbeat); ok {
			beats++
		}
	}
	if beats != 3 {
		t.Fatalf("expected 3 heartbeats, got %d", beats)
	}
}

func TestCursorHoldsOnPushFailure(t *testing.T) {
	store := notification.NewMemStore()
	push := &capturePusher{failAt: 2} // initial batch succeeds, next push fails
	sess := NewSession(store, push, tester)
	if err := sess.initial(context.Background()); err != nil {
		t.Fatalf("initial: %v", err)
	}

	insert(t, store, "lost in transit")
	err := sess.pollOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "push notification") {
		t.Fatalf("expected push failure, got %v", err)
	}
	if sess.lastSeenID != "" {
		t.Fatalf("cursor advanced past undelivered record: %q", sess.lastSeenID)
	}
}

func TestStoreErrorIsFatal(t *testing.T) {
	store := &failingStore{Store: notification.NewMemStore(), failQuery: true}
	push := &capturePusher{}
	sess := NewSession(store, push, tester, WithInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := sess.Run(ctx)
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected store error, got %v", err)
	}

	msgs := push.snapshot()
	if len(msgs) == 0 {
		t.Fatal("expected error frame")
	}
	frame, ok := msgs[len(msgs)-1].(ErrorMessage)
	if !ok || frame.Type != MessageError {
		t.Fatalf("expected ErrorMessage last, got %T", msgs[len(msgs)-1])
	}
	if strings.Contains(frame.Message, "refused") {
		t.Fatalf("internal error leaked to client: %q", frame.Message)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := notification.NewMemStore()
	push := &capturePusher{}
	sess := NewSession(store, push, tester, WithInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("session did not stop")
	}
}

func TestRunStreamsEndToEnd(t *testing.T) {
	store := notification.NewMemStore()
	push := &capturePusher{}
	sess := NewSession(store, push, tester, WithInterval(2*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	insert(t, store, "live")
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	var got bool
	for _, m := range push.snapshot() {
		if n, ok := m.(NewNotification); ok && n.Data.Message == "live" {
			got = true
		}
	}
	if !got {
		t.Fatal("live notification never delivered")
	}
}

func TestReadFilterPassedThrough(t *testing.T) {
	store := notification.NewMemStore()
	read := insert(t, store, "seen")
	if _, err := store.MarkRead(context.Background(), tester.ID, read.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	insert(t, store, "unseen")

	push := &capturePusher{}
	sess := NewSession(store, push, tester, WithReadFilter(false))
	if err := sess.initial(context.Background()); err != nil {
		t.Fatalf("initial: %v", err)
	}
	batch := push.snapshot()[0].(InitialBatch)
	if batch.Count != 1 || batch.Data[0].Message != "unseen" {
		t.Fatalf("filter not applied: %+v", batch)
	}
}
