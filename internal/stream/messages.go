package stream

import (
	"time"

	"folionest.org/internal/notification"
)

// Wire message types pushed to notification stream clients. Every frame
// carries a discriminating "type" field so clients can dispatch without
// probing the payload shape.
const (
	MessageInitialBatch    = "initial_notifications"
	MessageNewNotification = "new_notification"
	MessageHeartbeat       = "heartbeat"
	MessageError           = "error"
)

// InitialBatch is sent exactly once, immediately after the connection is
// accepted, with the client's current notifications newest first.
type InitialBatch struct {
	Type  string                `json:"type"`
	Data  []notification.Record `json:"data"`
	Count int                   `json:"count"`
}

// NewNotification carries a single record created since the last poll.
type NewNotification struct {
	Type string              `json:"type"`
	Data notification.Record `json:"data"`
}

// Heartbeat is sent once per poll cycle regardless of whether new
// notifications were found, so clients can detect a stalled stream.
type Heartbeat struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// ErrorMessage is a best-effort final frame before the session terminates.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newInitialBatch(recs []notification.Record) InitialBatch {
	if recs == nil {
		recs = []notification.Record{}
	}
	return InitialBatch{Type: MessageInitialBatch, Data: recs, Count: len(recs)}
}

func newHeartbeat(at time.Time) Heartbeat {
	return Heartbeat{Type: MessageHeartbeat, Timestamp: at.UTC().Format(time.RFC3339)}
}
