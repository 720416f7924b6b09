package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"folionest.org/internal/ids"
	"folionest.org/internal/notification"
)

type createNotificationRequest struct {
	UserID    string         `json:"user_id"`
	Type      string         `json:"notification_type"`
	Message   string         `json:"message"`
	ActionURL string         `json:"action_url"`
	Meta      map[string]any `json:"meta_data"`
}

type listNotificationsResponse struct {
	Items []notification.Record `json:"items"`
	Count int                   `json:"count"`
	AsOf  time.Time             `json:"as_of"`
}

func (a *API) handleNotificationsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listNotifications(w, r)
	case http.MethodPost:
		a.createNotification(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleNotificationResource(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/notifications/")
	switch path {
	case "":
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	case "unread-count":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		n, err := a.notifications.CountUnread(r.Context(), principal.ID)
		if err != nil {
			handleNotificationError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"unread_count": n})
		return
	case "read-all":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		n, err := a.notifications.MarkAllRead(r.Context(), principal.ID)
		if err != nil {
			handleNotificationError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"marked_read": n})
		return
	case "read":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		n, err := a.notifications.DeleteRead(r.Context(), principal.ID)
		if err != nil {
			handleNotificationError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
		return
	}

	if id, ok := strings.CutSuffix(path, "/read"); ok {
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		if !ids.IsValid(id) {
			writeError(w, r, http.StatusNotFound, "notification not found")
			return
		}
		rec, err := a.notifications.MarkRead(r.Context(), principal.ID, id)
		if err != nil {
			handleNotificationError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodDelete:
		if !ids.IsValid(path) {
			writeError(w, r, http.StatusNotFound, "notification not found")
			return
		}
		if err := a.notifications.Delete(r.Context(), principal.ID, path); err != nil {
			handleNotificationError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodDelete)
	}
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}

	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 50, 1, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit "+err.Error())
		return
	}
	offset, err := parsePositiveInt(r.URL.Query().Get("offset"), 0, 0, 1<<20)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "offset "+err.Error())
		return
	}

	params := notification.QueryParams{
		UserID:  principal.ID,
		SinceID: strings.TrimSpace(r.URL.Query().Get("since_id")),
		Limit:   limit,
		Offset:  offset,
	}
	switch r.URL.Query().Get("is_read") {
	case "true", "1":
		read := true
		params.IsRead = &read
	case "false", "0":
		read := false
		params.IsRead = &read
	}

	items, err := a.notifications.Query(r.Context(), params)
	if err != nil {
		handleNotificationError(w, r, err)
		return
	}
	if items == nil {
		items = []notification.Record{}
	}
	writeJSON(w, http.StatusOK, listNotificationsResponse{
		Items: items,
		Count: len(items),
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) createNotification(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}

	var req createNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, r, http.StatusBadRequest, "message is required")
		return
	}
	if len(req.Message) > 2000 {
		writeError(w, r, http.StatusBadRequest, "message too long")
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = principal.ID
	}
	recType := strings.TrimSpace(req.Type)
	if recType == "" {
		recType = notification.TypeDirect
	}

	rec := notification.Record{
		UserID:    userID,
		Type:      recType,
		Message:   req.Message,
		ActionURL: strings.TrimSpace(req.ActionURL),
		Meta:      req.Meta,
	}
	if err := a.notifications.Insert(r.Context(), &rec); err != nil {
		handleNotificationError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/notifications/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func handleNotificationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, notification.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, notification.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "notification not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
