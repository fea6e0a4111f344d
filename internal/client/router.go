package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrTooManyRedirects is returned when guard redirects do not settle.
var ErrTooManyRedirects = errors.New("too many redirects")

// Router tracks the current location and runs the guard before every
// navigation.
type Router struct {
	guard *Guard

	mu      sync.RWMutex
	current string
}

// NewRouter starts at start. Pass Current as the session location so the
// session knows which view it is on.
func NewRouter(guard *Guard, start string) *Router {
	return &Router{guard: guard, current: start}
}

func (r *Router) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Navigate moves to to, following guard redirects, and returns the final
// location.
func (r *Router) Navigate(ctx context.Context, to string) (string, error) {
	for hop := 0; hop <= MaxRedirects; hop++ {
		redirect := r.guard.Check(ctx, to)
		if redirect == "" {
			r.mu.Lock()
			r.current = to
			r.mu.Unlock()
			return to, nil
		}
		to = redirect
	}
	return "", fmt.Errorf("navigate: %w", ErrTooManyRedirects)
}
