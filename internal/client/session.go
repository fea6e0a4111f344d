package client

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/axvier/blog/internal/models"
)

const (
	bearerPrefix = "Bearer "

	// MsgLoginFailed is shown for every failed login.
	MsgLoginFailed = "Email/Username atau password salah"

	DefaultLoginPath = "/login"
)

// LoginError is returned by Session.Login. Err is the underlying API or
// transport error.
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string { return e.Message }

func (e *LoginError) Unwrap() error { return e.Err }

// AuthAPI is the server surface the session talks to.
type AuthAPI interface {
	Login(ctx context.Context, identifier, password string) (*models.AuthResponse, error)
	Logout(ctx context.Context, authorization string) error
	Me(ctx context.Context, authorization string) (*models.User, error)
}

// State is a snapshot of the session cache.
type State struct {
	User            *models.User
	Token           string
	IsAuthenticated bool
}

// IsAdmin reports whether the cached user is an ADMIN.
func (s State) IsAdmin() bool {
	return s.User.IsAdmin()
}

// record is what gets persisted; IsAuthenticated is always recomputed.
type record struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

var errBadRecord = errors.New("malformed session record")

func decodeRecord(raw []byte) (record, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, errors.Join(errBadRecord, err)
	}
	if !strings.HasPrefix(rec.Token, bearerPrefix) || strings.TrimSpace(rec.Token[len(bearerPrefix):]) == "" {
		return record{}, errBadRecord
	}
	if rec.User != nil && rec.User.ID == "" {
		return record{}, errBadRecord
	}
	return rec, nil
}

// normalizeToken makes tok carry the bearer prefix exactly once.
func normalizeToken(tok string) string {
	if strings.HasPrefix(tok, bearerPrefix) {
		return tok
	}
	return bearerPrefix + tok
}

// Session is the client-side cache of the current user and token. It starts
// Unauthenticated. Network calls happen outside the lock; only the final
// state write is serialized, so concurrent operations race and the last
// write wins.
type Session struct {
	api       AuthAPI
	store     StateStore
	loginPath string
	location  func() string
	log       zerolog.Logger

	mu    sync.RWMutex
	state State
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLocation sets the function reporting the current view.
func WithLocation(loc func() string) SessionOption {
	return func(s *Session) { s.location = loc }
}

// WithLoginPath overrides the login view path.
func WithLoginPath(p string) SessionOption {
	return func(s *Session) { s.loginPath = p }
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// NewSession builds an Unauthenticated session. store may be nil, in which
// case nothing is persisted.
func NewSession(api AuthAPI, store StateStore, opts ...SessionOption) *Session {
	s := &Session{
		api:       api,
		store:     store,
		loginPath: DefaultLoginPath,
		location:  func() string { return "" },
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "session_cache").Logger()
	return s
}

func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) User() *models.User { return s.Snapshot().User }
func (s *Session) Token() string { return s.Snapshot().Token }
func (s *Session) IsAuthenticated() bool { return s.Snapshot().IsAuthenticated }
func (s *Session) IsAdmin() bool { return s.Snapshot().IsAdmin() }

func (s *Session) set(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Login authenticates against the server. On failure the cache and the
// persisted record are cleared and a *LoginError is returned.
func (s *Session) Login(ctx context.Context, identifier, password string) error {
	resp, err := s.api.Login(ctx, identifier, password)
	if err == nil && (resp == nil || resp.User == nil || resp.Token == "") {
		err = errors.New("login response without user or token")
	}
	if err != nil {
		s.log.Debug().Err(err).Msg("login failed")
		s.clear(ctx)
		return &LoginError{Message: MsgLoginFailed, Err: err}
	}

	st := State{User: resp.User, Token: normalizeToken(resp.Token), IsAuthenticated: true}
	s.set(st)
	s.persist(ctx, st)
	return nil
}

// Logout notifies the server best-effort, sending the cached token when
// there is one, and always clears the cache.
func (s *Session) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx, s.Token()); err != nil {
		s.log.Warn().Err(err).Msg("logout request failed")
	}
	s.clear(ctx)
}

// CheckAuth verifies the cached token with the server. It does nothing on
// the login view and without a token.
func (s *Session) CheckAuth(ctx context.Context) bool {
	if s.location() == s.loginPath {
		return false
	}
	tok := s.Token()
	if tok == "" {
		return false
	}

	user, err := s.api.Me(ctx, tok)
	if err == nil && user == nil {
		err = errors.New("me response without user")
	}
	if err != nil {
		s.log.Info().Err(err).Msg("session check failed")
		s.clear(ctx)
		return false
	}

	st := State{User: user, Token: tok, IsAuthenticated: true}
	s.set(st)
	s.persist(ctx, st)
	return true
}

// Restore loads the persisted record and confirms it with CheckAuth. A
// malformed record is deleted and treated as absent.
func (s *Session) Restore(ctx context.Context) bool {
	if s.store == nil {
		return false
	}
	raw, err := s.store.Load(ctx)
	if errors.Is(err, ErrNoState) {
		return false
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("load persisted session failed")
		return false
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("discarding persisted session")
		if err := s.store.Clear(ctx); err != nil {
			s.log.Warn().Err(err).Msg("clear persisted session failed")
		}
		return false
	}

	s.set(State{User: rec.User, Token: rec.Token})
	return s.CheckAuth(ctx)
}

func (s *Session) clear(ctx context.Context) {
	s.set(State{})
	if s.store == nil {
		return
	}
	if err := s.store.Clear(ctx); err != nil {
		s.log.Warn().Err(err).Msg("clear persisted session failed")
	}
}

func (s *Session) persist(ctx context.Context, st State) {
	if s.store == nil {
		return
	}
	raw, err := json.Marshal(record{User: st.User, Token: st.Token})
	if err != nil {
		s.log.Warn().Err(err).Msg("encode session failed")
		return
	}
	if err := s.store.Save(ctx, raw); err != nil {
		s.log.Warn().Err(err).Msg("persist session failed")
	}
}
