package oauth2flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// DefaultExpiryLeeway is how long before expiry a RefreshingTokenSource refreshes.
const DefaultExpiryLeeway = time.Minute

// RefreshingTokenSource is an oauth2.TokenSource that refreshes an Authenticator
// through its Flow when the access token is about to expire.
// It is safe for concurrent use and uses double-checked locking.
type RefreshingTokenSource struct {
	flow      *Flow
	ctx       context.Context // used by Token, which has no context parameter
	leeway    time.Duration
	onRefresh func(*Authenticator) error

	mu      sync.RWMutex
	current *Authenticator
}

// TokenSourceOption configures a RefreshingTokenSource.
type TokenSourceOption func(*RefreshingTokenSource)

// WithExpiryLeeway sets how long before expiry the token is refreshed.
func WithExpiryLeeway(leeway time.Duration) TokenSourceOption {
	return func(s *RefreshingTokenSource) {
		s.leeway = leeway
	}
}

// WithRefreshCallback is called with every refreshed Authenticator, typically to persist it.
// An error from the callback is returned to the caller of Token but the refreshed
// authenticator is still used.
func WithRefreshCallback(fn func(*Authenticator) error) TokenSourceOption {
	return func(s *RefreshingTokenSource) {
		s.onRefresh = fn
	}
}

// TokenSource returns a refreshing token source seeded with a.
//
// Token requests issued by Token keep ctx's values but not its cancellation.
func (f *Flow) TokenSource(ctx context.Context, a *Authenticator, opts ...TokenSourceOption) *RefreshingTokenSource {
	if ctx == nil {
		ctx = context.Background()
	} else {
		ctx = context.WithoutCancel(ctx)
	}

	s := &RefreshingTokenSource{
		flow:    f,
		ctx:     ctx,
		leeway:  DefaultExpiryLeeway,
		current: a,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token implements oauth2.TokenSource.
func (s *RefreshingTokenSource) Token() (*oauth2.Token, error) {
	return s.TokenWithContext(s.ctx)
}

// TokenWithContext returns a valid token, refreshing it first if needed.
func (s *RefreshingTokenSource) TokenWithContext(ctx context.Context) (*oauth2.Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	// Fast path: check if we have a valid token without write lock
	s.mu.RLock()
	if s.valid() {
		token := s.current.OAuth2Token()
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine might have refreshed)
	if s.valid() {
		return s.current.OAuth2Token(), nil
	}

	if !s.current.IsRefreshable() {
		return nil, fmt.Errorf("oauth2flow: access token expired: %w", ErrNotRefreshable)
	}

	refreshed, err := s.flow.Refresh(ctx, s.current)
	if err != nil {
		return nil, err
	}
	s.current = refreshed

	if s.onRefresh != nil {
		if err := s.onRefresh(refreshed); err != nil {
			return nil, fmt.Errorf("oauth2flow: refresh callback: %w", err)
		}
	}

	return refreshed.OAuth2Token(), nil
}

// Authenticator returns the current authenticator.
func (s *RefreshingTokenSource) Authenticator() *Authenticator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// valid reports whether the current token is usable with the leeway window.
func (s *RefreshingTokenSource) valid() bool {
	if s.current == nil || s.current.AccessToken == "" {
		return false
	}
	return !s.current.ExpiredAt(s.flow.now().Add(s.leeway))
}
