package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"folionest.org/internal/auth"
	"folionest.org/internal/notification"
	"folionest.org/internal/obs"
)

const (
	defaultInterval = 5 * time.Second
	defaultPageSize = 50
)

// Pusher delivers a single JSON-encodable message to the client. A non-nil
// error means the connection is unusable and the session must terminate.
type Pusher interface {
	Push(ctx context.Context, v any) error
}

// PushFunc adapts a function to the Pusher interface.
type PushFunc func(ctx context.Context, v any) error

func (f PushFunc) Push(ctx context.Context, v any) error { return f(ctx, v) }

// Session streams one principal's notifications over a single connection.
// It sends the current notifications once, then polls the store on a fixed
// interval, pushing each record created since the last successful delivery
// followed by a heartbeat. Any store or push failure is fatal: the session
// makes one best-effort attempt to send an error frame and returns.
type Session struct {
	source    notification.Store
	push      Pusher
	principal auth.Principal

	interval time.Duration
	pageSize int
	isRead   *bool
	now      func() time.Time

	lastSeenID string
}

// Option configures a Session.
type Option func(*Session)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithReadFilter restricts the stream to read or unread notifications.
func WithReadFilter(isRead bool) Option {
	return func(s *Session) { s.isRead = &isRead }
}

// WithPageSize caps the size of the initial batch. Delta polls are bounded
// by the cursor, not by a page size.
func WithPageSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock overrides the heartbeat clock.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func NewSession(source notification.Store, push Pusher, principal auth.Principal, opts ...Option) *Session {
	s := &Session{
		source:    source,
		push:      push,
		principal: principal,
		interval:  defaultInterval,
		pageSize:  defaultPageSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives the session until the context is canceled or an error occurs.
// Context cancellation is the normal shutdown path and returns ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	obs.SessionOpened()
	defer obs.SessionClosed()

	if err := s.initial(ctx); err != nil {
		return s.fail(ctx, err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := s.pollOnce(ctx); err != nil {
			if errors.Is(err, ctx.Err()) && ctx.Err() != nil {
				return ctx.Err()
			}
			return s.fail(ctx, err)
		}
	}
}

// initial fetches and pushes the opening batch. The cursor starts at the
// newest record in the batch so the first poll only sees records created
// after the connection was established.
func (s *Session) initial(ctx context.Context) error {
	recs, err := s.source.Query(ctx, notification.QueryParams{
		UserID: s.principal.ID,
		IsRead: s.isRead,
		Limit:  s.pageSize,
	})
	if err != nil {
		return fmt.Errorf("stream: initial fetch: %w", err)
	}
	if err := s.push.Push(ctx, newInitialBatch(recs)); err != nil {
		return fmt.Errorf("stream: push initial batch: %w", err)
	}
	if len(recs) > 0 {
		s.lastSeenID = recs[0].ID
	}
	return nil
}

// pollOnce runs a single delta cycle: fetch records newer than the cursor,
// push them newest first, then push a heartbeat. The cursor only advances
// after every record in the batch was delivered, so a failed push means the
// batch would be re-sent by a reconnecting client rather than lost.
//
// The delta fetch is unbounded on purpose. A limit combined with the
// newest-first ordering would advance the cursor past records the query cut
// off, losing them permanently; the cursor itself bounds the result set.
func (s *Session) pollOnce(ctx context.Context) error {
	recs, err := s.source.Query(ctx, notification.QueryParams{
		UserID:  s.principal.ID,
		SinceID: s.lastSeenID,
		IsRead:  s.isRead,
	})
	if err != nil {
		return fmt.Errorf("stream: delta fetch: %w", err)
	}

	// Query returns newest first; deliver in that order so the client's
	// live feed matches its initial batch.
	for _, rec := range recs {
		msg := NewNotification{Type: MessageNewNotification, Data: rec}
		if err := s.push.Push(ctx, msg); err != nil {
			return fmt.Errorf("stream: push notification: %w", err)
		}
	}
	if len(recs) > 0 {
		s.lastSeenID = recs[0].ID
		obs.NotificationsPushed(len(recs))
	}

	if err := s.push.Push(ctx, newHeartbeat(s.now())); err != nil {
		return fmt.Errorf("stream: push heartbeat: %w", err)
	}
	obs.HeartbeatPushed()
	return nil
}

// fail makes one best-effort attempt to tell the client why the stream is
// closing. The push error, if any, is deliberately ignored.
func (s *Session) fail(ctx context.Context, err error) error {
	obs.LogError("notification stream terminated", map[string]any{
		"user_id": s.principal.ID,
		"error":   err.Error(),
	})
	_ = s.push.Push(ctx, ErrorMessage{Type: MessageError, Message: "notification stream error"})
	return err
}
