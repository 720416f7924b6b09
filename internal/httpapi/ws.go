package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"folionest.org/internal/auth"
	"folionest.org/internal/notification"
	"folionest.org/internal/stream"
)

const wsWriteTimeout = 10 * time.Second

// handleNotificationsWS upgrades to a websocket and streams the caller's
// notifications. The connection authenticates strictly: anonymous or invalid
// tokens are refused with a policy-violation close, never downgraded to a
// silent unauthenticated stream.
func (a *API) handleNotificationsWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin is enforced by the CORS layer
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server error")

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		if t, err := extractBearerToken(r.Header.Get(authHeader)); err == nil {
			token = t
		}
	}

	principal, err := a.resolver.ResolveConnection(r.Context(), token, true)
	if err != nil || principal == nil {
		switch {
		case err == nil,
			errors.Is(err, auth.ErrInvalidToken),
			errors.Is(err, auth.ErrTokenExpired),
			errors.Is(err, auth.ErrUnauthorized),
			errors.Is(err, auth.ErrForbidden):
			conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		default:
			conn.Close(websocket.StatusInternalError, "authentication error")
		}
		return
	}

	// Each live session polls on its own pinned connection from the small
	// websocket pool, so slow sessions cannot starve the request pool.
	source := a.notifications
	if a.wsDB != nil {
		sqlConn, err := a.wsDB.Conn(r.Context())
		if err != nil {
			conn.Close(websocket.StatusInternalError, "service unavailable")
			return
		}
		defer sqlConn.Close()
		source = notification.NewPGStore(sqlConn)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Read pump: the client never sends meaningful frames, but reading is
	// what surfaces disconnects and answers control frames.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	push := stream.PushFunc(func(ctx context.Context, v any) error {
		wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		defer cancel()
		return wsjson.Write(wctx, conn, v)
	})

	opts := []stream.Option{stream.WithInterval(a.pollInterval)}
	switch r.URL.Query().Get("is_read") {
	case "true", "1":
		opts = append(opts, stream.WithReadFilter(true))
	case "false", "0":
		opts = append(opts, stream.WithReadFilter(false))
	}
	if limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 0, 1, 200); err == nil && limit > 0 {
		opts = append(opts, stream.WithPageSize(limit))
	}

	err = stream.NewSession(source, push, *principal, opts...).Run(ctx)
	if errors.Is(err, context.Canceled) {
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	conn.Close(websocket.StatusInternalError, "stream error")
}
