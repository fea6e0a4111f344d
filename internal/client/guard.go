package client

import (
	"context"
	"net/url"
	"strings"
)

const (
	DefaultProtectedPrefix = "/admin"
	DefaultLandingPath     = "/admin"

	// MaxRedirects bounds how many guard redirects one navigation follows.
	MaxRedirects = 5
)

// Authenticator is the part of Session the guard relies on.
type Authenticator interface {
	IsAuthenticated() bool
	Token() string
	CheckAuth(ctx context.Context) bool
}

// Guard decides whether a navigation may proceed.
type Guard struct {
	auth            Authenticator
	ProtectedPrefix string
	LoginPath       string
	LandingPath     string
}

func NewGuard(auth Authenticator) *Guard {
	return &Guard{
		auth:            auth,
		ProtectedPrefix: DefaultProtectedPrefix,
		LoginPath:       DefaultLoginPath,
		LandingPath:     DefaultLandingPath,
	}
}

func (g *Guard) protected(p string) bool {
	return p == g.ProtectedPrefix || strings.HasPrefix(p, g.ProtectedPrefix+"/")
}

// Check returns the path to redirect to, or "" to allow navigating to to.
// A cached token is verified even for public destinations.
func (g *Guard) Check(ctx context.Context, to string) string {
	p := pathOf(to)

	if !g.auth.IsAuthenticated() && g.auth.Token() != "" {
		if ok := g.auth.CheckAuth(ctx); !ok && g.protected(p) {
			return g.LoginPath
		}
	}
	if g.protected(p) && !g.auth.IsAuthenticated() {
		return g.LoginPath
	}
	if p == g.LoginPath && g.auth.IsAuthenticated() {
		return g.LandingPath
	}
	return ""
}

func pathOf(to string) string {
	if u, err := url.Parse(to); err == nil && u.Path != "" {
		return u.Path
	}
	return to
}
