package auth

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/axvier/blog/internal/httpx"
	"github.com/axvier/blog/internal/models"
)

// AuditRecorder stores authentication events. Failures are logged and never
// fail the request.
type AuditRecorder interface {
	Record(ctx context.Context, ev models.AuthEvent) error
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	sessions *Service
	audit    AuditRecorder
	log      zerolog.Logger
}

func NewHandler(sessions *Service, audit AuditRecorder, log zerolog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		audit:    audit,
		log:      log.With().Str("component", "auth_handler").Logger(),
	}
}

func (h *Handler) record(r *http.Request, ev models.AuthEvent) {
	if h.audit == nil {
		return
	}
	ev.RemoteAddr = r.RemoteAddr
	if err := h.audit.Record(r.Context(), ev); err != nil {
		h.log.Warn().Err(err).Str("kind", ev.Kind).Msg("audit record failed")
	}
}

// Login authenticates a user and returns the user with a fresh token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	identifier := req.LoginIdentifier()

	resp, err := h.sessions.Authenticate(r.Context(), identifier, req.Password)
	if err != nil {
		status, msg := StatusAndMessage(err)
		if status == http.StatusUnauthorized {
			h.record(r, models.AuthEvent{Kind: models.EventLoginFailed, Identifier: identifier})
		}
		httpx.Error(w, status, msg)
		return
	}

	h.record(r, models.AuthEvent{Kind: models.EventLogin, UserID: resp.User.ID, Identifier: identifier})
	httpx.JSON(w, http.StatusOK, resp)
}

// Logout acknowledges the logout. The token is not revoked.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())

	ev := models.AuthEvent{Kind: models.EventLogout}
	if header := r.Header.Get("Authorization"); header != "" {
		if u, err := h.sessions.ResolveToken(r.Context(), header); err == nil {
			ev.UserID = u.ID
		}
	}
	h.record(r, ev)

	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

// Me returns the user named by the bearer token.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessions.ResolveToken(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		status, msg := StatusAndMessage(err)
		httpx.Error(w, status, msg)
		return
	}
	httpx.JSON(w, http.StatusOK, models.MeResponse{User: user})
}
