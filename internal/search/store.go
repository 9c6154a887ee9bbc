// Package search keeps the short list of terms the user searched for last.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
	"github.com/rs/zerolog"
)

// MaxRecent is how many terms are kept, newest first.
const MaxRecent = 5

type Store struct {
	mu    sync.RWMutex
	terms []string

	kv     kv.Store
	logger zerolog.Logger
}

func NewStore(ctx context.Context, store kv.Store, logger zerolog.Logger) *Store {
	s := &Store{
		kv:     store,
		logger: logger.With().Str("component", "search").Logger(),
	}
	s.terms = s.load(ctx)
	return s
}

// Record moves term to the front of the list. Blank terms are ignored and a
// repeated term is not stored twice.
func (s *Store) Record(ctx context.Context, term string) {
	term = strings.TrimSpace(term)
	if term == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]string, 0, MaxRecent)
	next = append(next, term)
	for _, t := range s.terms {
		if len(next) == MaxRecent {
			break
		}
		if t != term {
			next = append(next, t)
		}
	}
	s.terms = next

	data, err := json.Marshal(s.terms)
	if err != nil {
		s.logger.Error().Err(err).Msg("recent searches marshal failed")
		return
	}
	if err := s.kv.Set(ctx, domain.KeyRecentSearches, string(data)); err != nil {
		s.logger.Error().Err(err).Msg("recent searches write failed")
	}
}

func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.terms...)
}

func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.terms = []string{}
	if err := s.kv.Delete(ctx, domain.KeyRecentSearches); err != nil {
		s.logger.Error().Err(err).Msg("recent searches delete failed")
	}
}

func (s *Store) load(ctx context.Context) []string {
	raw, err := s.kv.Get(ctx, domain.KeyRecentSearches)
	if errors.Is(err, kv.ErrNotFound) {
		return []string{}
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("recent searches read failed")
		return []string{}
	}

	var terms []string
	if err := json.Unmarshal([]byte(raw), &terms); err != nil {
		s.logger.Warn().Err(err).Msg("stored recent searches are corrupt, ignoring")
		return []string{}
	}
	if len(terms) > MaxRecent {
		terms = terms[:MaxRecent]
	}
	return terms
}
