package httpapi

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"folionest.org/internal/auth"
)

const tokenTTL = 30 * time.Minute

type signupRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type userView struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func viewOf(u *auth.User) userView {
	return userView{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
	}
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 3 || len(username) > 64 {
		writeError(w, r, http.StatusBadRequest, "username must be 3-64 characters")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	user := &auth.User{
		Username:     username,
		Email:        strings.TrimSpace(req.Email),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := a.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, auth.ErrAlreadyExists) {
			writeError(w, r, http.StatusConflict, "username already taken")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, viewOf(user))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.users.FindByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	// Disabled accounts are rejected before any token is minted.
	if !user.IsActive {
		writeError(w, r, http.StatusForbidden, "account disabled")
		return
	}

	token, expiresAt, err := auth.GenerateToken(user.Username, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(tokenTTL / time.Second),
		ExpiresAt:   expiresAt,
	})
}

// handleLogout exists for client symmetry. Tokens are stateless, so the
// server only acknowledges; the interceptor records the event.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := mustPrincipal(w, r); !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type registerDeviceRequest struct {
	DeviceName string `json:"device_name"`
}

func (a *API) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}

	var req registerDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil && !strings.Contains(err.Error(), "request body is required") {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user_id":      principal.ID,
		"device_name":  strings.TrimSpace(req.DeviceName),
		"device_class": classifyDevice(r.UserAgent()),
	})
}
