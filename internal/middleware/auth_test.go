package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axvier/blog/internal/auth"
	"github.com/axvier/blog/internal/models"
)

type resolverFunc func(ctx context.Context, header string) (*models.User, error)

func (f resolverFunc) ResolveToken(ctx context.Context, header string) (*models.User, error) {
	return f(ctx, header)
}

func staticResolver(users map[string]*models.User) TokenResolver {
	return resolverFunc(func(ctx context.Context, header string) (*models.User, error) {
		if u, ok := users[header]; ok {
			return u, nil
		}
		return nil, &auth.Error{Status: http.StatusUnauthorized, Message: auth.MsgUnauthorized, Kind: auth.ErrUnauthorized}
	})
}

func TestRequireAuth(t *testing.T) {
	admin := &models.User{ID: "a", Role: models.RoleAdmin}
	resolver := staticResolver(map[string]*models.User{"Bearer good": admin})

	var seen *models.User
	h := RequireAuth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Same(t, admin, seen)

	seen = nil
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())
	require.Nil(t, seen)
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireAdmin(ok)

	cases := []struct {
		name string
		user *models.User
		want int
	}{
		{"no user", nil, http.StatusUnauthorized},
		{"regular user", &models.User{ID: "u", Role: models.RoleUser}, http.StatusForbidden},
		{"admin", &models.User{ID: "a", Role: models.RoleAdmin}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.user != nil {
				req = req.WithContext(WithUser(req.Context(), tc.user))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}
