package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/JustinTDCT/mediaserver/internal/httputil"
	"github.com/JustinTDCT/mediaserver/internal/store"
)

type ctxKey string

const userCtxKey ctxKey = "auth_user"

// ContextUserData is the resolved identity placed in the request context by
// RequireAuth, mirroring the teacher's ContextUserData shape.
type ContextUserData struct {
	UserID   int64
	Username string
	IsAdmin  bool
}

// Middleware gates requests and re-resolves is_admin from the Store on
// every call — spec.md §4.8 forbids trusting the claim.
type Middleware struct {
	issuer *Issuer
	store  *store.Store
}

func NewMiddleware(issuer *Issuer, st *store.Store) *Middleware {
	return &Middleware{issuer: issuer, store: st}
}

// RequireAuth extracts the bearer credential from the Authorization header
// or a "token" query parameter (stream endpoints cannot set headers, per
// spec.md §4.6 and §9's "credential-in-query" design note).
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "Unauthorized", "missing bearer credential")
			return
		}

		claims, err := m.issuer.Verify(token)
		if err != nil {
			httputil.WriteError(w, http.StatusForbidden, "Forbidden", "invalid bearer credential")
			return
		}

		isAdmin, err := m.store.IsAdmin(claims.UserID)
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "Unauthorized", "user no longer exists")
			return
		}

		user := ContextUserData{UserID: claims.UserID, Username: claims.Username, IsAdmin: isAdmin}
		ctx := context.WithValue(r.Context(), userCtxKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must be chained after RequireAuth.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.IsAdmin {
			httputil.WriteError(w, http.StatusForbidden, "Forbidden", "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func UserFromContext(ctx context.Context) (ContextUserData, bool) {
	u, ok := ctx.Value(userCtxKey).(ContextUserData)
	return u, ok
}

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return ""
}
