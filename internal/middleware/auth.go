package middleware

import (
	"context"
	"net/http"

	"github.com/axvier/blog/internal/auth"
	"github.com/axvier/blog/internal/httpx"
	"github.com/axvier/blog/internal/models"
)

type ctxKey struct{}

// TokenResolver turns an Authorization header into a user.
type TokenResolver interface {
	ResolveToken(ctx context.Context, header string) (*models.User, error)
}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the authenticated user stored by RequireAuth, or nil.
func UserFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(ctxKey{}).(*models.User)
	return u
}

// RequireAuth is middleware that resolves the bearer token and injects the
// user into the request context. Any failure ends the request with 401.
func RequireAuth(sessions TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := sessions.ResolveToken(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				status, msg := auth.StatusAndMessage(err)
				httpx.Error(w, status, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin rejects requests whose user is not an ADMIN. It must run
// after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if user == nil {
			httpx.Error(w, http.StatusUnauthorized, auth.MsgUnauthorized)
			return
		}
		if !user.IsAdmin() {
			httpx.Error(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
