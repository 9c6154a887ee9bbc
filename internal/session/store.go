// Package session owns the authentication state of a storefront process:
// access and refresh tokens, their expiry and the cached user profile.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apiclient"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidCredentials = errors.New("login requires an access token")
	ErrNoRefreshToken     = errors.New("no refresh token held")
	ErrSessionExpired     = errors.New("session expired")
	ErrUnauthenticated    = errors.New("not authenticated")
)

const (
	DefaultRefreshPath    = "/api/token/refresh/"
	DefaultProfilePath    = "/api/users/profile/"
	DefaultRefreshTimeout = 10 * time.Second
	// DefaultTokenLifetime is assumed when the access token carries no exp claim.
	DefaultTokenLifetime = 55 * time.Minute
	// DefaultExpiryLead is subtracted from the exp claim so refresh happens early.
	DefaultExpiryLead = 5 * time.Minute
)

// Backend is the part of the API client the session needs.
type Backend interface {
	Get(ctx context.Context, path string, opts ...apiclient.RequestOption) apiclient.Result
	Post(ctx context.Context, path string, body any, opts ...apiclient.RequestOption) apiclient.Result
}

type Store struct {
	mu    sync.RWMutex
	state domain.SessionState

	kv     kv.Store
	client Backend
	logger zerolog.Logger
	sfg    singleflight.Group

	refreshPath    string
	profilePath    string
	refreshTimeout time.Duration
	tokenLifetime  time.Duration
	expiryLead     time.Duration
	now            func() time.Time
}

type Option func(*Store)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l.With().Str("component", "session").Logger() }
}

func WithRefreshPath(path string) Option {
	return func(s *Store) { s.refreshPath = path }
}

// WithRefreshTimeout bounds the refresh call; hitting it counts as a failed refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Store) { s.refreshTimeout = d }
}

func WithTokenLifetime(d time.Duration) Option {
	return func(s *Store) { s.tokenLifetime = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore hydrates the session from kv; without a stored access token the
// session starts unauthenticated.
func NewStore(ctx context.Context, store kv.Store, client Backend, opts ...Option) *Store {
	s := &Store{
		kv:             store,
		client:         client,
		logger:         zerolog.Nop(),
		refreshPath:    DefaultRefreshPath,
		profilePath:    DefaultProfilePath,
		refreshTimeout: DefaultRefreshTimeout,
		tokenLifetime:  DefaultTokenLifetime,
		expiryLead:     DefaultExpiryLead,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reload(ctx)
	return s
}

// Login stores the credentials and the profile together. Leftovers of a
// previous session are removed before the new token becomes visible.
func (s *Store) Login(ctx context.Context, creds domain.Credentials, user *domain.User) error {
	if creds.Access == "" {
		return ErrInvalidCredentials
	}

	next := domain.SessionState{AccessToken: creds.Access, User: user}
	entries := map[string]string{domain.KeyAuthToken: creds.Access}
	var stale []string

	if user != nil {
		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		entries[domain.KeyUser] = string(data)
	} else {
		stale = append(stale, domain.KeyUser)
	}

	if creds.Refresh != "" {
		expiry := s.expiryFor(creds.Access)
		next.RefreshToken = creds.Refresh
		next.TokenExpiry = &expiry
		entries[domain.KeyRefreshToken] = creds.Refresh
		entries[domain.KeyTokenExpiry] = expiry.Format(time.RFC3339)
	} else {
		stale = append(stale, domain.KeyRefreshToken, domain.KeyTokenExpiry)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(stale) > 0 {
		if err := s.kv.Delete(ctx, stale...); err != nil {
			s.logger.Error().Err(err).Msg("failed to clear previous session keys")
		}
	}
	if err := s.kv.SetMany(ctx, entries); err != nil {
		s.logger.Error().Err(err).Msg("session write failed, login kept in memory only")
	}
	s.state = next
	return nil
}

// Verify checks a stored session against the backend profile endpoint, as
// done once at startup. A rejected token ends the session; a network failure
// leaves it alone.
func (s *Store) Verify(ctx context.Context) error {
	if !s.IsAuthenticated() {
		return ErrUnauthenticated
	}

	res := s.client.Get(ctx, s.profilePath)
	switch {
	case res.OK():
	case res.Status == 0 || res.Status >= 500:
		return res.Err()
	default:
		s.logger.Info().Int("status", res.Status).Msg("stored session rejected by backend, logging out")
		s.Logout(ctx)
		return ErrSessionExpired
	}

	var u domain.User
	if err := res.Decode(&u); err != nil {
		s.logger.Warn().Err(err).Msg("profile response unreadable, keeping cached user")
		return nil
	}
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsAuthenticated() {
		return ErrUnauthenticated
	}
	if err := s.kv.Set(ctx, domain.KeyUser, string(data)); err != nil {
		s.logger.Error().Err(err).Msg("profile write failed")
	}
	s.state.User = &u
	return nil
}

// Logout clears every session key. Calling it while logged out is harmless.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) {
	if err := s.kv.Delete(ctx, domain.SessionKeys...); err != nil {
		s.logger.Error().Err(err).Msg("failed to delete session keys")
	}
	s.state = domain.SessionState{}
}

// IsAuthenticated reports whether an access token is held. It does not look at
// the expiry; GetValidToken does.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated()
}

func (s *Store) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return nil
	}
	u := *s.state.User
	return &u
}

// State returns a copy of the current session.
func (s *Store) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	if st.TokenExpiry != nil {
		e := *st.TokenExpiry
		st.TokenExpiry = &e
	}
	return st
}

// AccessToken implements apiclient.TokenSource.
func (s *Store) AccessToken(context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AccessToken, s.state.AccessToken != ""
}

// Reload re-reads the session from kv. When the token cannot be read the
// current state is kept.
func (s *Store) Reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("session reload failed")
		return
	}
	s.state = st
}

func (s *Store) load(ctx context.Context) (domain.SessionState, error) {
	var st domain.SessionState

	token, err := s.read(ctx, domain.KeyAuthToken)
	if err != nil {
		return st, err
	}
	if token == "" {
		return st, nil
	}
	st.AccessToken = token

	// the remaining keys are best effort
	if refresh, err := s.read(ctx, domain.KeyRefreshToken); err == nil {
		st.RefreshToken = refresh
	}

	if raw, err := s.read(ctx, domain.KeyUser); err == nil && raw != "" {
		var u domain.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			s.logger.Warn().Err(err).Msg("stored user is corrupt, ignoring")
		} else {
			st.User = &u
		}
	}

	if raw, err := s.read(ctx, domain.KeyTokenExpiry); err == nil && raw != "" {
		expiry, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			// unreadable expiry forces a refresh
			s.logger.Warn().Err(err).Msg("stored token expiry is corrupt, treating token as expired")
			expiry = time.Time{}
		}
		st.TokenExpiry = &expiry
	}

	return st, nil
}

func (s *Store) read(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	return v, err
}
