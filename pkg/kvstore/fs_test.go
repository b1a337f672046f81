package kvstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFS(filepath.Join(t.TempDir(), "kv"))
	require.NoError(t, err)
	return map[string]Store{
		"fs":     fsStore,
		"memory": NewMemory(),
	}
}

func TestStore_SetGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "allowedToEnroll", true))

			var got bool
			require.NoError(t, s.Get(ctx, "allowedToEnroll", &got))
			assert.True(t, got)

			require.NoError(t, s.Set(ctx, "allowedToEnroll", false))
			require.NoError(t, s.Get(ctx, "allowedToEnroll", &got))
			assert.False(t, got)
		})
	}
}

func TestStore_NoSuchKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var got bool
			err := s.Get(ctx, "missing", &got)
			assert.True(t, errors.Is(err, ErrNoSuchKey), "got %v", err)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "k", "v"))
			require.NoError(t, s.Delete(ctx, "k"))
			require.NoError(t, s.Delete(ctx, "k"))

			var got string
			assert.ErrorIs(t, s.Get(ctx, "k", &got), ErrNoSuchKey)
		})
	}
}

func TestStore_InvalidKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "a/b", `a\b`, ".."} {
				assert.ErrorIs(t, s.Set(ctx, key, 1), ErrInvalidKey, "key %q", key)
			}
		})
	}
}

func TestFS_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewFS(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "clientId", "abc"))

	second, err := NewFS(dir)
	require.NoError(t, err)
	var got string
	require.NoError(t, second.Get(ctx, "clientId", &got))
	assert.Equal(t, "abc", got)

	_, err = os.Stat(filepath.Join(dir, "clientId.json"))
	assert.NoError(t, err)
}

func TestFS_CorruptValue(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFS(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o600))

	var got bool
	err = s.Get(ctx, "bad", &got)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoSuchKey))
}

func TestFS_MkdirFailure(t *testing.T) {
	expect := errors.New("mocked error")
	s, err := newFS(t.TempDir(), func(string, fs.FileMode) error { return expect })
	assert.ErrorIs(t, err, expect)
	assert.Nil(t, s)
}

func TestFS_CanceledContext(t *testing.T) {
	s, err := NewFS(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Set(ctx, "k", 1), context.Canceled)
}
