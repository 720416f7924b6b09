package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"folionest.org/internal/audit"
	"folionest.org/internal/project"
)

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	IsPublished bool   `json:"is_published"`
}

type listAuditResponse struct {
	Items []audit.Record `json:"items"`
	Count int            `json:"count"`
	AsOf  time.Time      `json:"as_of"`
}

func (a *API) handleProjectsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listProjects(w, r)
	case http.MethodPost:
		a.createProject(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleProjectResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/projects/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if id, ok := strings.CutSuffix(path, "/audit"); ok && !strings.Contains(id, "/") {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listProjectAudit(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getProject(w, r, path)
	case http.MethodPut:
		a.updateProject(w, r, path)
	case http.MethodDelete:
		a.deleteProject(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	items, err := a.projects.ListByOwner(r.Context(), principal.ID)
	if err != nil {
		handleProjectError(w, r, err)
		return
	}
	if items == nil {
		items = []project.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Name) > 200 {
		writeError(w, r, http.StatusBadRequest, "name too long")
		return
	}

	p := &project.Project{
		OwnerID:     principal.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		URL:         strings.TrimSpace(req.URL),
		IsPublished: req.IsPublished,
	}
	if err := a.projects.Create(r.Context(), p); err != nil {
		handleProjectError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/projects/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) getProject(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := mustPrincipal(w, r); !ok {
		return
	}
	p, err := a.projects.Find(r.Context(), id)
	if err != nil {
		handleProjectError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) updateProject(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	p := &project.Project{
		ID:          id,
		OwnerID:     principal.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		URL:         strings.TrimSpace(req.URL),
		IsPublished: req.IsPublished,
	}
	if err := a.projects.Update(r.Context(), p); err != nil {
		handleProjectError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deleteProject(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	if err := a.projects.Delete(r.Context(), principal.ID, id); err != nil {
		handleProjectError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listProjectAudit(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	// Audit history is owner-only.
	p, err := a.projects.Find(r.Context(), id)
	if err != nil {
		handleProjectError(w, r, err)
		return
	}
	if p.OwnerID != principal.ID {
		writeError(w, r, http.StatusForbidden, "not your project")
		return
	}

	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit "+err.Error())
		return
	}
	offset, err := parsePositiveInt(r.URL.Query().Get("offset"), 0, 0, 1<<20)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "offset "+err.Error())
		return
	}

	items, err := a.audits.ListByProject(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, listAuditResponse{
		Items: items,
		Count: len(items),
		AsOf:  time.Now().UTC(),
	})
}

func handleProjectError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, project.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, project.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "project not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
