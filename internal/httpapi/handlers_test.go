package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"folionest.org/internal/audit"
	"folionest.org/internal/auth"
	"folionest.org/internal/notification"
	"folionest.org/internal/project"
)

type testEnv struct {
	api           *API
	users         *auth.MemStore
	notifications *notification.MemStore
	audits        *audit.MemStore
	projects      *project.MemStore
}

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestEnv(t *testing.T) (*apiClient, *testEnv) {
	t.Helper()

	t.Setenv("FOLIONEST_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	env := &testEnv{
		users:         auth.NewMemStore(),
		notifications: notification.NewMemStore(),
		audits:        audit.NewMemStore(),
		projects:      project.NewMemStore(),
	}
	env.api = New(ReadyProbe{}, "test", env.users, env.notifications, env.audits, env.projects, nil)
	env.api.rateBurst = 1000
	env.api.ratePerSec = 1000
	env.api.pollInterval = 5 * time.Millisecond

	srv := httptest.NewServer(env.api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}, env
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()
	c, _ := newTestEnv(t)
	return c
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) signup(username, password string) userView {
	c.t.Helper()
	resp := c.post("/v1/auth/signup", map[string]any{
		"username": username,
		"email":    username + "@example.test",
		"password": password,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("signup status: %d", resp.StatusCode)
	}
	return decode[userView](c.t, resp)
}

func (c *apiClient) obtainToken(username, password string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/login", map[string]any{
		"username": username,
		"password": password,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login status: %d", resp.StatusCode)
	}
	payload := decode[tokenResponse](c.t, resp)
	if payload.AccessToken == "" {
		c.t.Fatal("empty token issued")
	}
	return payload.AccessToken
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestSignupLoginFlow(t *testing.T) {
	c := newTestAPI(t)

	user := c.signup("ayana", "correct-horse-1")
	if user.Username != "ayana" || !user.IsActive {
		t.Fatalf("unexpected user: %+v", user)
	}

	resp := c.post("/v1/auth/signup", map[string]any{
		"username": "Ayana",
		"email":    "other@example.test",
		"password": "correct-horse-1",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate signup status: %d", resp.StatusCode)
	}

	resp = c.post("/v1/auth/login", map[string]any{
		"username": "ayana",
		"password": "wrong",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password status: %d", resp.StatusCode)
	}

	resp = c.post("/v1/auth/login", map[string]any{
		"username": "ayana",
		"password": "correct-horse-1",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status: %d", resp.StatusCode)
	}
	tok := decode[tokenResponse](t, resp)
	if tok.TokenType != "bearer" || tok.AccessToken == "" {
		t.Fatalf("unexpected token response: %+v", tok)
	}
	if tok.ExpiresIn != int64(tokenTTL/time.Second) {
		t.Fatalf("expires_in = %d", tok.ExpiresIn)
	}
}

func TestLoginInactiveAccountNoToken(t *testing.T) {
	c, env := newTestEnv(t)

	user := c.signup("dana", "correct-horse-1")
	if err := env.users.SetActive(context.Background(), user.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	resp := c.post("/v1/auth/login", map[string]any{
		"username": "dana",
		"password": "correct-horse-1",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if _, ok := body["access_token"]; ok {
		t.Fatal("token issued for disabled account")
	}
}

func TestNotificationLifecycle(t *testing.T) {
	c := newTestAPI(t)
	c.signup("ayana", "correct-horse-1")
	token := c.obtainToken("ayana", "correct-horse-1")
	hdr := bearerHeader(token)

	resp := c.post("/v1/notifications", map[string]any{
		"message": "first",
	}, hdr)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", resp.StatusCode)
	}
	first := decode[notification.Record](t, resp)
	if first.ID == "" || first.IsRead {
		t.Fatalf("unexpected record: %+v", first)
	}

	resp = c.post("/v1/notifications", map[string]any{"message": "second"}, hdr)
	second := decode[notification.Record](t, resp)

	resp = c.get("/v1/notifications", nil, hdr)
	list := decode[listNotificationsResponse](t, resp)
	if list.Count != 2 || list.Items[0].ID != second.ID {
		t.Fatalf("unexpected list: %+v", list)
	}

	resp = c.get("/v1/notifications/unread-count", nil, hdr)
	counts := decode[map[string]int](t, resp)
	if counts["unread_count"] != 2 {
		t.Fatalf("unread_count = %d", counts["unread_count"])
	}

	resp = c.do(http.MethodPatch, "/v1/notifications/"+first.ID+"/read", nil, hdr)
	read := decode[notification.Record](t, resp)
	if !read.IsRead || read.ReadAt == nil {
		t.Fatalf("record not marked read: %+v", read)
	}

	resp = c.post("/v1/notifications/read-all", nil, hdr)
	marked := decode[map[string]int](t, resp)
	if marked["marked_read"] != 1 {
		t.Fatalf("marked_read = %d", marked["marked_read"])
	}

	resp = c.do(http.MethodDelete, "/v1/notifications/read", nil, hdr)
	deleted := decode[map[string]int](t, resp)
	if deleted["deleted"] != 2 {
		t.Fatalf("deleted = %d", deleted["deleted"])
	}

	resp = c.do(http.MethodDelete, "/v1/notifications/"+first.ID, nil, hdr)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("delete of removed record: %d", resp.StatusCode)
	}
}

func TestNotificationsScopedToUser(t *testing.T) {
	c := newTestAPI(t)
	c.signup("ayana", "correct-horse-1")
	c.signup("dana", "correct-horse-1")
	ayana := bearerHeader(c.obtainToken("ayana", "correct-horse-1"))
	dana := bearerHeader(c.obtainToken("dana", "correct-horse-1"))

	resp := c.post("/v1/notifications", map[string]any{"message": "for ayana"}, ayana)
	rec := decode[notification.Record](t, resp)

	resp = c.get("/v1/notifications", nil, dana)
	list := decode[listNotificationsResponse](t, resp)
	if list.Count != 0 {
		t.Fatalf("leaked records: %+v", list)
	}

	resp = c.do(http.MethodDelete, "/v1/notifications/"+rec.ID, nil, dana)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-user delete status: %d", resp.StatusCode)
	}
}

func TestProjectCRUDAndAudit(t *testing.T) {
	c := newTestAPI(t)
	c.signup("ayana", "correct-horse-1")
	c.signup("dana", "correct-horse-1")
	ayana := bearerHeader(c.obtainToken("ayana", "correct-horse-1"))
	dana := bearerHeader(c.obtainToken("dana", "correct-horse-1"))

	resp := c.post("/v1/projects", map[string]any{"name": "portfolio site"}, ayana)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", resp.StatusCode)
	}
	p := decode[project.Project](t, resp)

	resp = c.do(http.MethodPut, "/v1/projects/"+p.ID, map[string]any{
		"name": "portfolio site v2",
	}, ayana)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status: %d", resp.StatusCode)
	}
	updated := decode[project.Project](t, resp)
	if updated.Name != "portfolio site v2" {
		t.Fatalf("update not applied: %+v", updated)
	}

	resp = c.get("/v1/projects/"+p.ID+"/audit", nil, dana)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-user audit status: %d", resp.StatusCode)
	}

	resp = c.get("/v1/projects/"+p.ID+"/audit", nil, ayana)
	auditList := decode[listAuditResponse](t, resp)
	if auditList.Count != 1 || auditList.Items[0].Action != "PUT:/v1/projects/"+p.ID {
		t.Fatalf("unexpected audit trail: %+v", auditList)
	}

	resp = c.do(http.MethodDelete, "/v1/projects/"+p.ID, nil, ayana)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status: %d", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	c := newTestAPI(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.get(path, nil, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status: %d", path, resp.StatusCode)
		}
	}
}
