package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ButyrinIA/bookblog/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err, "failed to open sqlite")
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSetAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "blog_users", []byte(`[{"id":"u1"}]`)))

	value, err := store.Get(ctx, "blog_users")
	assert.NoError(t, err)
	assert.Equal(t, `[{"id":"u1"}]`, string(value))
}

func TestSet_Upsert(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte(`1`)))
	require.NoError(t, store.Set(ctx, "k", []byte(`2`)))

	value, err := store.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Equal(t, `2`, string(value))

	var count int64
	store.db.Model(&Entry{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestGet_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRemove(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte(`{}`)))
	require.NoError(t, store.Remove(ctx, "k"))
	assert.NoError(t, store.Remove(ctx, "k"))

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookblog.db")
	ctx := context.Background()

	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "bookstore_books", []byte(`[{"id":1}]`)))
	require.NoError(t, store.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get(ctx, "bookstore_books")
	assert.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, string(value))
}
