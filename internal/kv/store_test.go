package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStoreBehaviour exercises the contract every backend has to honour.
func testStoreBehaviour(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "cart", `[{"id":1}]`))
		value, err := store.Get(ctx, "cart")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":1}]`, value)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "cart", `[]`))
		value, err := store.Get(ctx, "cart")
		require.NoError(t, err)
		assert.Equal(t, `[]`, value)
	})

	t.Run("set many", func(t *testing.T) {
		require.NoError(t, store.SetMany(ctx, map[string]string{
			"authToken": "token-1",
			"user":      `{"id":7}`,
		}))
		token, err := store.Get(ctx, "authToken")
		require.NoError(t, err)
		user, err := store.Get(ctx, "user")
		require.NoError(t, err)
		assert.Equal(t, "token-1", token)
		assert.Equal(t, `{"id":7}`, user)
	})

	t.Run("delete several keys including a missing one", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "authToken", "user", "nonexistent"))
		_, err := store.Get(ctx, "authToken")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.Get(ctx, "user")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete nothing", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx))
	})
}
