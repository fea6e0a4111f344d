// Package client holds the blog API client, the client-side session cache
// and the route guard used by blogctl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/axvier/blog/internal/models"
)

// APIError is a non-2xx response from the blog API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

// checkResp returns an *APIError when the status is not 2xx. The message is
// taken from a {"message": ...} body when present.
func checkResp(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var e struct {
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		msg = e.Message
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// API calls the /api/auth endpoints of the blog server.
type API struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPI builds an API client. A nil httpClient uses http.DefaultClient.
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (a *API) do(ctx context.Context, method, path, authorization string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := checkResp(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", path, err)
	}
	return nil
}

// Login calls POST /api/auth/login.
func (a *API) Login(ctx context.Context, identifier, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	err := a.do(ctx, http.MethodPost, "/api/auth/login", "",
		models.LoginRequest{Identifier: identifier, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout calls POST /api/auth/logout. authorization may be empty.
func (a *API) Logout(ctx context.Context, authorization string) error {
	return a.do(ctx, http.MethodPost, "/api/auth/logout", authorization, nil, nil)
}

// Me calls GET /api/auth/me with the given Authorization header value.
func (a *API) Me(ctx context.Context, authorization string) (*models.User, error) {
	var resp models.MeResponse
	if err := a.do(ctx, http.MethodGet, "/api/auth/me", authorization, nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}
