package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/reelhaven/mediaserver/internal/apierror"
	"github.com/reelhaven/mediaserver/internal/httputil"
	"github.com/reelhaven/mediaserver/internal/store"
)

type contextKey string

const ContextUser contextKey = "user"

type ContextUserData struct {
	UserID  string
	IsAdmin bool
}

type Middleware struct {
	users *store.UserRepository
}

func NewMiddleware(users *store.UserRepository) *Middleware {
	return &Middleware{users: users}
}

func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteAPIError(w, apierror.Unauthorized("authentication required"))
			return
		}

		userID, isAdmin, exp, err := m.users.GetSession(token)
		if err != nil {
			httputil.WriteAPIError(w, apierror.Unauthorized("invalid session"))
			return
		}

		if IsTokenExpired(exp) {
			_ = m.users.DeleteSession(token)
			httputil.WriteAPIError(w, apierror.Unauthorized("session expired"))
			return
		}

		ctx := context.WithValue(r.Context(), ContextUser, ContextUserData{UserID: userID, IsAdmin: isAdmin})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil || !user.IsAdmin {
			httputil.WriteAPIError(w, apierror.Forbidden("admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func UserFromContext(ctx context.Context) *ContextUserData {
	if v, ok := ctx.Value(ContextUser).(ContextUserData); ok {
		return &v
	}
	return nil
}

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("session"); err == nil {
		return c.Value
	}
	return ""
}
