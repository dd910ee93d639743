package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func TestBackend_RoundTripSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state")

	b, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "storefront:cart", `[{"id":"p-1","quantity":2}]`))

	reopened, err := New(dir)
	require.NoError(t, err)
	v, err := reopened.Get(ctx, "storefront:cart")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"p-1","quantity":2}]`, v)
}

func TestBackend_OverwriteLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, b.Set(ctx, "k", "one"))
	require.NoError(t, b.Set(ctx, "k", "two"))

	v, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "two", v)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k.json", entries[0].Name())
}

func TestBackend_KeysAreEscaped(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, b.Set(ctx, "../escape", "x"))

	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape.json"))
	assert.True(t, os.IsNotExist(err))

	v, err := b.Get(ctx, "../escape")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestBackend_MissingAndDelete(t *testing.T) {
	ctx := context.Background()
	b, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = b.Get(ctx, "absent")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, b.Delete(ctx, "absent"))
	require.NoError(t, b.Set(ctx, "k", "v"))
	require.NoError(t, b.Delete(ctx, "k"))

	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBackend_PingFailsWhenDirRemoved(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gone")
	b, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, b.Ping(context.Background()))

	require.NoError(t, os.RemoveAll(dir))
	assert.Error(t, b.Ping(context.Background()))
	assert.Error(t, b.Set(context.Background(), "k", "v"))
}
