package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axvier/blog/internal/models"
)

func TestAPI(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/login":
			var req models.LoginRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Identifier != "admin" || req.Password != "admin123" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"message":"Email/Username atau password salah"}`))
				return
			}
			w.Write([]byte(`{"user":{"id":"U1","username":"admin","role":"ADMIN"},"token":"dummy-token-U1-1"}`))
		case "/api/auth/me":
			gotAuth = r.Header.Get("Authorization")
			w.Write([]byte(`{"user":{"id":"U1","username":"admin","role":"ADMIN"}}`))
		case "/api/auth/logout":
			gotAuth = r.Header.Get("Authorization")
			w.Write([]byte(`{"success":true,"message":"Logged out successfully"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	api := NewAPI(srv.URL+"/", srv.Client())
	ctx := context.Background()

	resp, err := api.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	require.Equal(t, "U1", resp.User.ID)
	require.Equal(t, "dummy-token-U1-1", resp.Token)

	_, err = api.Login(ctx, "admin", "wrong")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "Email/Username atau password salah", apiErr.Message)

	user, err := api.Me(ctx, "Bearer dummy-token-U1-1")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, user.Role)
	require.Equal(t, "Bearer dummy-token-U1-1", gotAuth)

	require.NoError(t, api.Logout(ctx, "Bearer dummy-token-U1-1"))
	require.Equal(t, "Bearer dummy-token-U1-1", gotAuth)

	require.NoError(t, api.Logout(ctx, ""))
	require.Empty(t, gotAuth)
}
