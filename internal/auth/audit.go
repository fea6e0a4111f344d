package auth

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/axvier/blog/internal/httpx"
	"github.com/axvier/blog/internal/models"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditReader lists recent authentication events.
type AuditReader interface {
	Recent(ctx context.Context, limit int64) ([]models.AuthEvent, error)
}

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	events AuditReader
	log    zerolog.Logger
}

func NewAuditHandler(events AuditReader, log zerolog.Logger) *AuditHandler {
	return &AuditHandler{events: events, log: log.With().Str("component", "audit_handler").Logger()}
}

// List returns up to ?limit events, newest first.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	if err != nil || limit < 1 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	events, err := h.events.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("list audit events failed")
		httpx.Error(w, http.StatusInternalServerError, MsgInternal)
		return
	}
	if events == nil {
		events = []models.AuthEvent{}
	}
	httpx.JSON(w, http.StatusOK, events)
}
