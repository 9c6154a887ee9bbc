package session

import (
	"context"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apiclient"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// RefreshAccessToken trades the refresh token for a new access token. Any
// failure, including a timeout, ends the session: there is no retry.
// Concurrent callers share one request. The request is bounded by the refresh
// timeout only; a caller whose ctx ends stops waiting and gets ctx.Err()
// while the refresh carries on for the others.
func (s *Store) RefreshAccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	refresh := s.state.RefreshToken
	s.mu.RUnlock()

	if refresh == "" {
		return "", ErrNoRefreshToken
	}

	ch := s.sfg.DoChan(refresh, func() (interface{}, error) {
		return s.refresh(context.WithoutCancel(ctx), refresh)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// refresh runs on a context that is never cancelled by the caller.
func (s *Store) refresh(ctx context.Context, refresh string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	defer cancel()

	res := s.client.Post(callCtx, s.refreshPath, refreshRequest{Refresh: refresh}, apiclient.WithoutAuth())

	var body refreshResponse
	if res.OK() {
		if err := res.Decode(&body); err != nil {
			s.logger.Warn().Err(err).Msg("refresh response unreadable")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// logged out or logged in again (here or in another process) while the
	// call was in flight: the outcome belongs to a session that is gone
	if s.state.RefreshToken != refresh {
		s.logger.Debug().Msg("session changed during refresh, discarding result")
		return "", ErrUnauthenticated
	}

	writeCtx, writeCancel := detached(ctx)
	defer writeCancel()

	if !res.OK() || body.Access == "" {
		s.logger.Warn().Str("error", res.Error).Int("status", res.Status).Msg("token refresh failed, logging out")
		s.clearLocked(writeCtx)
		return "", ErrSessionExpired
	}

	expiry := s.expiryFor(body.Access)
	entries := map[string]string{
		domain.KeyAuthToken:   body.Access,
		domain.KeyTokenExpiry: expiry.Format(time.RFC3339),
	}
	if body.Refresh != "" {
		entries[domain.KeyRefreshToken] = body.Refresh
	}
	if err := s.kv.SetMany(writeCtx, entries); err != nil {
		s.logger.Error().Err(err).Msg("refreshed token write failed, kept in memory only")
	}

	s.state.AccessToken = body.Access
	s.state.TokenExpiry = &expiry
	if body.Refresh != "" {
		s.state.RefreshToken = body.Refresh
	}
	return body.Access, nil
}

// GetValidToken returns the access token, refreshing it first when its expiry
// has passed.
func (s *Store) GetValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()

	if st.AccessToken == "" || st.RefreshToken == "" {
		return "", ErrUnauthenticated
	}
	if st.TokenExpiry != nil && !s.now().Before(*st.TokenExpiry) {
		return s.RefreshAccessToken(ctx)
	}
	return st.AccessToken, nil
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}

// expiryFor reads the exp claim of a JWT access token without verifying it
// (the backend does that) and moves it earlier by the lead time. Opaque tokens
// get the default lifetime.
func (s *Store) expiryFor(access string) time.Time {
	now := s.now()
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			early := exp.Add(-s.expiryLead)
			if early.Before(now) {
				return now
			}
			return early.UTC()
		}
	}
	return now.Add(s.tokenLifetime).UTC()
}
