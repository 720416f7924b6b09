package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"folionest.org/internal/audit"
	"folionest.org/internal/auth"
	"folionest.org/internal/notification"
	"folionest.org/internal/obs"
	"folionest.org/internal/project"
)

// ReadyProbe checks downstream readiness (DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	resolver      *auth.Resolver
	users         auth.UserStore
	notifications notification.Store
	audits        audit.Store
	projects      project.Store

	// wsDB is a dedicated small pool for live notification sessions; each
	// session pins one connection for its lifetime. Nil disables the stream.
	wsDB         *sql.DB
	pollInterval time.Duration

	rateBurst  int
	ratePerSec int

	routes *routeTable
}

func New(rp ReadyProbe, version string, users auth.UserStore,
	notifications notification.Store, audits audit.Store, projects project.Store,
	wsDB *sql.DB) *API {

	a := &API{
		mux:           http.NewServeMux(),
		readyProbe:    rp,
		version:       version,
		resolver:      auth.NewResolver(users),
		users:         users,
		notifications: notifications,
		audits:        audits,
		projects:      projects,
		wsDB:          wsDB,
		pollInterval:  5 * time.Second,
		rateBurst:     20,
		ratePerSec:    10,
		routes:        defaultRouteTable(),
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/signup", a.handleSignup)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/register-device", a.handleRegisterDevice)

	a.mux.HandleFunc("/v1/notifications", a.handleNotificationsCollection)
	a.mux.HandleFunc("/v1/notifications/", a.handleNotificationResource)

	a.mux.HandleFunc("/v1/projects", a.handleProjectsCollection)
	a.mux.HandleFunc("/v1/projects/", a.handleProjectResource)

	a.mux.HandleFunc("/v1/ws/notifications", a.handleNotificationsWS)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// SetPollInterval overrides the notification stream poll interval.
func (a *API) SetPollInterval(d time.Duration) {
	if d > 0 {
		a.pollInterval = d
	}
}

// Handler assembles the middleware chain around the mux. The interceptor sits
// inside authentication so it sees the resolved principal.
func (a *API) Handler() http.Handler {
	h := a.Intercept(a.mux)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- health/info ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "folionest-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "folionest-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("value must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("value must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return val, nil
}
