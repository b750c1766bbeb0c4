package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "noor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SetIsUpsert(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, s.Set(ctx, "bookmarks", "[]"))
	require.NoError(t, s.Set(ctx, "bookmarks", `[{"id":"hadith-1"}]`))

	v, ok, err := s.Get(ctx, "bookmarks")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"hadith-1"}]`, v)

	var count int64
	require.NoError(t, s.db.Model(&Entry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestStore_GetMissing(t *testing.T) {
	s := setupTestStore(t)

	v, ok, err := s.Get(context.Background(), "nothing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestStore_DeleteAndKeys(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, s.Set(ctx, "surah:2", "{}"))
	require.NoError(t, s.Set(ctx, "surah:10", "{}"))
	require.NoError(t, s.Set(ctx, "surahX", "{}"))
	require.NoError(t, s.Set(ctx, "bookmarks", "[]"))

	keys, err := s.Keys(ctx, "surah:")
	require.NoError(t, err)
	assert.Equal(t, []string{"surah:10", "surah:2"}, keys)

	// '_' must not act as a wildcard
	keys, err = s.Keys(ctx, "surah_")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, s.Delete(ctx, "surah:2"))
	require.NoError(t, s.Delete(ctx, "surah:2"))

	keys, err = s.Keys(ctx, "surah:")
	require.NoError(t, err)
	assert.Equal(t, []string{"surah:10"}, keys)

	require.NoError(t, s.Ping(ctx))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "noor.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "bookmarks", `["x"]`))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	v, ok, err := s.Get(ctx, "bookmarks")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `["x"]`, v)
}
