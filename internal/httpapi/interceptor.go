package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"folionest.org/internal/audit"
	"folionest.org/internal/auth"
	"folionest.org/internal/ids"
	"folionest.org/internal/notification"
	"folionest.org/internal/obs"
)

// maxCaptureBytes caps how much of a request body the interceptor keeps for
// the audit trail. Larger bodies are still replayed to the handler in full;
// only the captured copy is dropped.
const maxCaptureBytes = 64 << 10

// Intercept wraps the API with post-hoc auditing and notification fan-out.
// It buffers the request body, lets the handler run, and only then writes
// audit and notification records for successful mutating requests. The two
// branches are independent: a failure in either is logged and counted but
// never changes the response the client already received.
func (a *API) Intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !mutating(r.Method) || excludedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		body, err := bufferBody(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "unreadable request body")
			return
		}

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		// Only error responses are skipped; redirects still represent a
		// completed mutation.
		if sw.code >= 400 {
			return
		}
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			return
		}

		// The response is already on the wire; detach from the request
		// context so a client disconnect cannot abort the writes.
		ctx := context.WithoutCancel(r.Context())
		a.auditRequest(ctx, r, principal, body, sw.code)
		a.notifyRequest(ctx, r, principal, sw.code)
	})
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Content served for embedding elsewhere; high-churn, low-value noise in
// both the audit trail and the notification feed.
var excludedPathParts = []string{"/socials", "/skills"}

func excludedPath(path string) bool {
	for _, part := range excludedPathParts {
		if strings.Contains(path, part) {
			return true
		}
	}
	return false
}

// bufferBody reads the request body into memory and replaces it with a
// replayable reader so the handler sees the original stream.
func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// auditRequest records project mutations. Only paths that carry a project
// identifier are auditable; creation has no id in the path and surfaces
// through the notification branch instead.
func (a *API) auditRequest(ctx context.Context, r *http.Request, principal auth.Principal, body []byte, status int) {
	if a.audits == nil {
		return
	}
	projectID := projectIDFromPath(r.URL.Path)
	if projectID == "" {
		return
	}

	details := map[string]any{
		"status_code": status,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	if len(r.URL.RawQuery) > 0 {
		details["params"] = r.URL.Query()
	}
	if len(body) > 0 && len(body) <= maxCaptureBytes {
		if payload := audit.RedactPayload(body); payload != nil {
			details["payload"] = payload
		}
	}

	rec := &audit.Record{
		ProjectID: projectID,
		UserID:    principal.ID,
		Action:    r.Method + ":" + r.URL.Path,
		Details:   details,
		IPAddress: audit.ClientAddress(r),
		UserAgent: r.UserAgent(),
	}
	if err := a.audits.Insert(ctx, rec); err != nil {
		obs.InterceptorFailure("audit")
		obs.LogError("audit write failed", map[string]any{
			"action": rec.Action,
			"error":  err.Error(),
		})
	}
}

func (a *API) notifyRequest(ctx context.Context, r *http.Request, principal auth.Principal, status int) {
	if a.notifications == nil || a.routes == nil {
		return
	}
	message := a.routes.lookup(r)
	if message == "" {
		return
	}

	rec := &notification.Record{
		UserID:  principal.ID,
		Type:    notification.TypeSystem,
		Message: message,
		Meta: map[string]any{
			"action":     r.Method + ":" + r.URL.Path,
			"status":     status,
			"ip":         audit.ClientAddress(r),
			"user_agent": r.UserAgent(),
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := a.notifications.Insert(ctx, rec); err != nil {
		obs.InterceptorFailure("notification")
		obs.LogError("notification write failed", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
	}
}

func projectIDFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/v1/projects/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	if !ids.IsValid(id) {
		return ""
	}
	return id
}

// --- route-message table ---

type messageFunc func(r *http.Request) string

type prefixRule struct {
	method  string
	prefix  string
	message messageFunc
}

// routeTable maps successful mutating requests to user-facing notification
// messages. Exact matches win; prefix rules are checked in order. Routes
// absent from the table produce no notification, which keeps the
// notification endpoints themselves from feeding back into the stream.
type routeTable struct {
	exact    map[string]messageFunc
	prefixes []prefixRule
}

func staticMessage(msg string) messageFunc {
	return func(*http.Request) string { return msg }
}

func defaultRouteTable() *routeTable {
	return &routeTable{
		exact: map[string]messageFunc{
			http.MethodPost + " /v1/projects": staticMessage("Your project was created"),
			http.MethodPost + " /v1/auth/register-device": func(r *http.Request) string {
				return "New device registered: " + classifyDevice(r.UserAgent())
			},
			http.MethodPost + " /v1/auth/logout": staticMessage("You signed out"),
		},
		prefixes: []prefixRule{
			{http.MethodPut, "/v1/projects/", staticMessage("Your project was updated")},
			{http.MethodDelete, "/v1/projects/", staticMessage("Your project was deleted")},
		},
	}
}

func (t *routeTable) lookup(r *http.Request) string {
	if fn, ok := t.exact[r.Method+" "+r.URL.Path]; ok {
		return fn(r)
	}
	for _, rule := range t.prefixes {
		if r.Method == rule.method && strings.HasPrefix(r.URL.Path, rule.prefix) {
			return rule.message(r)
		}
	}
	return ""
}

func classifyDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"):
		return "Tablet"
	case strings.Contains(ua, "mobi"), strings.Contains(ua, "iphone"), strings.Contains(ua, "android"):
		return "Mobile Device"
	default:
		return "Desktop"
	}
}
