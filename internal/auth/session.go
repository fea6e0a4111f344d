package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/axvier/blog/internal/metrics"
	"github.com/axvier/blog/internal/models"
	"github.com/axvier/blog/internal/store"
	"github.com/axvier/blog/internal/token"
)

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// UserStore is the credential lookup the session service needs.
type UserStore interface {
	GetUserByLogin(ctx context.Context, identifier string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Service verifies credentials, issues tokens and resolves them back to
// users. It keeps no record of issued tokens, so logging out never
// invalidates one.
type Service struct {
	users   UserStore
	codec   token.Codec
	now     func() time.Time
	metrics *metrics.Metrics
	log     zerolog.Logger

	// compared against when the identifier is unknown, so a miss costs the
	// same as a wrong password
	dummyHash []byte
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the token issuance clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics attaches Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(users UserStore, codec token.Codec, opts ...Option) *Service {
	s := &Service{
		users: users,
		codec: codec,
		now:   time.Now,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "session").Logger()
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), store.BcryptCost)
	return s
}

// Authenticate checks identifier (email or username, exact match) and
// password and mints a token for the matching user.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*models.AuthResponse, error) {
	user, err := s.users.GetUserByLogin(ctx, identifier)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.metrics.ObserveLogin(metrics.OutcomeError)
			s.log.Error().Err(err).Msg("credential lookup failed")
			return nil, internal(err)
		}
		bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.metrics.ObserveLogin(metrics.OutcomeFailure)
		return nil, invalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.metrics.ObserveLogin(metrics.OutcomeFailure)
		return nil, invalidCredentials()
	}

	s.metrics.ObserveLogin(metrics.OutcomeSuccess)
	s.log.Debug().Str("user_id", user.ID).Msg("login succeeded")
	return &models.AuthResponse{
		User:  user.Public(),
		Token: s.codec.Encode(user.ID, s.now()),
	}, nil
}

// ResolveToken turns an Authorization header value into the user it names.
func (s *Service) ResolveToken(ctx context.Context, header string) (*models.User, error) {
	user, err := s.resolve(ctx, header)
	switch {
	case err == nil:
		s.metrics.ObserveResolve(metrics.OutcomeSuccess)
	case errors.Is(err, ErrUnauthorized):
		s.metrics.ObserveResolve(metrics.OutcomeFailure)
	default:
		s.metrics.ObserveResolve(metrics.OutcomeError)
	}
	return user, err
}

func (s *Service) resolve(ctx context.Context, header string) (*models.User, error) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return nil, unauthorized(MsgUnauthorized, nil)
	}
	// The token is the second space-separated field, so "Bearer  x" has none.
	tok, _, _ := strings.Cut(strings.TrimPrefix(header, BearerPrefix), " ")
	if tok == "" {
		return nil, unauthorized(MsgInvalidToken, nil)
	}

	userID, err := s.codec.Decode(tok)
	if err != nil {
		return nil, unauthorized(MsgInvalidTokenFormat, err)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, unauthorized(MsgUserNotFound, err)
		}
		s.log.Error().Err(err).Str("user_id", userID).Msg("token user lookup failed")
		return nil, internal(err)
	}
	return user.Public(), nil
}

// Logout acknowledges a logout. Issued tokens stay valid.
func (s *Service) Logout(ctx context.Context) error {
	return nil
}
