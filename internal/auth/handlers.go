package auth

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reelhaven/mediaserver/internal/apierror"
	"github.com/reelhaven/mediaserver/internal/httputil"
	"github.com/reelhaven/mediaserver/internal/store"
)

// Handler exposes the minimum surface the streaming/library endpoints need
// to authenticate requests: register, login, logout. No PIN login,
// password reset, or cache-server federation.
type Handler struct {
	users *store.UserRepository
}

func NewHandler(users *store.UserRepository) *Handler {
	return &Handler{users: users}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	return r
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteAPIError(w, apierror.BadRequest("invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteAPIError(w, apierror.BadRequest("email and password are required"))
		return
	}

	email := NormalizeEmail(req.Email)
	if err := ValidatePassword(req.Password, 8); err != nil {
		httputil.WriteAPIError(w, apierror.BadRequest(err.Error()))
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to hash password"))
		return
	}

	// First registered account becomes the admin; every account after it
	// is a regular user granted access per-library.
	count, err := h.users.Count()
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to check account count"))
		return
	}
	isAdmin := count == 0

	user, err := h.users.Create(email, hash, isAdmin)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Conflict("email already registered"))
		return
	}

	token, err := h.issueSession(w, user.ID, user.IsAdmin)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to create session"))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id":  user.ID,
		"is_admin": user.IsAdmin,
		"token":    token,
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteAPIError(w, apierror.BadRequest("invalid request body"))
		return
	}

	email := NormalizeEmail(req.Email)
	user, err := h.users.GetByEmail(email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.WriteAPIError(w, apierror.Unauthorized("invalid credentials"))
			return
		}
		httputil.WriteAPIError(w, apierror.Internal("failed to look up account"))
		return
	}

	if !CheckPassword(user.PasswordHash, req.Password) {
		httputil.WriteAPIError(w, apierror.Unauthorized("invalid credentials"))
		return
	}

	token, err := h.issueSession(w, user.ID, user.IsAdmin)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to create session"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  user.ID,
		"is_admin": user.IsAdmin,
		"token":    token,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token := extractToken(r)
	if token != "" {
		_ = h.users.DeleteSession(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) issueSession(w http.ResponseWriter, userID string, isAdmin bool) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	expiresAt := time.Now().Add(SessionTTL).Unix()
	if err := h.users.CreateSession(token, userID, isAdmin, expiresAt); err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionTTL.Seconds()),
	})
	return token, nil
}
