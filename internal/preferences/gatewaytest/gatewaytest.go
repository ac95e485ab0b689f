// Package gatewaytest holds the behaviour every preferences.Gateway adapter
// must share. Adapter tests call Run with a constructor for a fresh store.
package gatewaytest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salvadanaio/internal/preferences"
)

// Run exercises gw against the gateway contract.
func Run(t *testing.T, newGateway func(t *testing.T) preferences.Gateway) {
	t.Helper()
	ctx := context.Background()
	kind := preferences.KindCategoryMascots

	t.Run("read absent", func(t *testing.T) {
		gw := newGateway(t)
		_, err := gw.Read(ctx, "u1", kind)
		require.ErrorIs(t, err, preferences.ErrNotFound)
	})

	t.Run("write then read round trip", func(t *testing.T) {
		gw := newGateway(t)
		v := json.RawMessage(`{"selectedIdentifiers":["a","b","c"]}`)

		written, err := gw.Write(ctx, "u1", kind, v)
		require.NoError(t, err)
		assert.Equal(t, "u1", written.UserID)
		assert.Equal(t, kind, written.Kind)
		assert.False(t, written.UpdatedAt.IsZero())

		got, err := gw.Read(ctx, "u1", kind)
		require.NoError(t, err)
		assert.JSONEq(t, string(v), string(got.Value))
		assert.WithinDuration(t, written.UpdatedAt, got.UpdatedAt, time.Second)
	})

	t.Run("write upserts wholesale", func(t *testing.T) {
		gw := newGateway(t)
		_, err := gw.Write(ctx, "u1", kind, json.RawMessage(`{"selectedIdentifiers":["a"],"extra":true}`))
		require.NoError(t, err)
		_, err = gw.Write(ctx, "u1", kind, json.RawMessage(`{"selectedIdentifiers":["z"]}`))
		require.NoError(t, err)

		got, err := gw.Read(ctx, "u1", kind)
		require.NoError(t, err)
		assert.JSONEq(t, `{"selectedIdentifiers":["z"]}`, string(got.Value))
	})

	t.Run("keys are partitioned", func(t *testing.T) {
		gw := newGateway(t)
		_, err := gw.Write(ctx, "u1", kind, json.RawMessage(`{"selectedIdentifiers":["a"]}`))
		require.NoError(t, err)
		_, err = gw.Write(ctx, "u1", "theme", json.RawMessage(`{"dark":true}`))
		require.NoError(t, err)

		_, err = gw.Read(ctx, "u2", kind)
		require.ErrorIs(t, err, preferences.ErrNotFound)

		got, err := gw.Read(ctx, "u1", "theme")
		require.NoError(t, err)
		assert.JSONEq(t, `{"dark":true}`, string(got.Value))
	})

	t.Run("value shape is not validated", func(t *testing.T) {
		gw := newGateway(t)
		_, err := gw.Write(ctx, "u1", kind, json.RawMessage(`{"selectedIdentifiers":[]}`))
		require.NoError(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		gw := newGateway(t)
		_, err := gw.Write(ctx, "u1", kind, json.RawMessage(`{"selectedIdentifiers":["a"]}`))
		require.NoError(t, err)

		require.NoError(t, gw.Delete(ctx, "u1", kind))
		_, err = gw.Read(ctx, "u1", kind)
		require.ErrorIs(t, err, preferences.ErrNotFound)

		require.NoError(t, gw.Delete(ctx, "u1", kind), "deleting an absent record is not an error")
	})

	t.Run("missing identity", func(t *testing.T) {
		gw := newGateway(t)
		_, err := gw.Read(ctx, "", kind)
		require.ErrorIs(t, err, preferences.ErrUnauthorized)
		_, err = gw.Write(ctx, "", kind, json.RawMessage(`{}`))
		require.ErrorIs(t, err, preferences.ErrUnauthorized)
		require.ErrorIs(t, gw.Delete(ctx, "", kind), preferences.ErrUnauthorized)
	})
}
