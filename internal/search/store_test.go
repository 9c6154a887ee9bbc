package search

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_NewestFirstWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	sut := NewStore(ctx, kv.NewMemoryStore(), zerolog.Nop())

	sut.Record(ctx, "shoes")
	sut.Record(ctx, "  hats ")
	sut.Record(ctx, "shoes")
	sut.Record(ctx, "   ")

	assert.Equal(t, []string{"shoes", "hats"}, sut.List())
}

func TestRecord_KeepsFive(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	sut := NewStore(ctx, store, zerolog.Nop())

	for _, term := range []string{"a", "b", "c", "d", "e", "f"} {
		sut.Record(ctx, term)
	}

	assert.Equal(t, []string{"f", "e", "d", "c", "b"}, sut.List())

	reloaded := NewStore(ctx, store, zerolog.Nop())
	assert.Equal(t, sut.List(), reloaded.List())
}

func TestClear_DeletesKey(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	sut := NewStore(ctx, store, zerolog.Nop())
	sut.Record(ctx, "shoes")

	sut.Clear(ctx)

	assert.Empty(t, sut.List())
	_, err := store.Get(ctx, domain.KeyRecentSearches)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestNewStore_CorruptOrOversized(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	require.NoError(t, store.Set(ctx, domain.KeyRecentSearches, `{"no":"list"}`))
	assert.Empty(t, NewStore(ctx, store, zerolog.Nop()).List())

	require.NoError(t, store.Set(ctx, domain.KeyRecentSearches, `["1","2","3","4","5","6","7"]`))
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, NewStore(ctx, store, zerolog.Nop()).List())
}
