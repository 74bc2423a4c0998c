package memory

import (
	"context"
	"testing"

	"github.com/ButyrinIA/bookblog/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func TestMemoryStorage(t *testing.T) {
	t.Run("Set and Get", func(t *testing.T) {
		store := New()
		ctx := context.Background()

		err := store.Set(ctx, "blog_posts", []byte(`[{"id":"1"}]`))
		assert.NoError(t, err, "Ошибка при записи")

		value, err := store.Get(ctx, "blog_posts")
		assert.NoError(t, err, "Ошибка при чтении")
		assert.JSONEq(t, `[{"id":"1"}]`, string(value))
	})

	t.Run("Get Not Found", func(t *testing.T) {
		store := New()

		_, err := store.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound, "Ожидалась ошибка для несуществующего ключа")
	})

	t.Run("Returned value is a copy", func(t *testing.T) {
		store := New()
		ctx := context.Background()
		require.NoError(t, store.Set(ctx, "k", []byte("abc")))

		value, err := store.Get(ctx, "k")
		require.NoError(t, err)
		value[0] = 'x'

		again, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(again))
	})

	t.Run("Remove", func(t *testing.T) {
		store := New()
		ctx := context.Background()
		require.NoError(t, store.Set(ctx, "k", []byte("v")))

		assert.NoError(t, store.Remove(ctx, "k"))
		assert.NoError(t, store.Remove(ctx, "k"), "Повторное удаление не должно падать")

		_, err := store.Get(ctx, "k")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Quota", func(t *testing.T) {
		store := NewWithQuota(10)
		ctx := context.Background()

		assert.NoError(t, store.Set(ctx, "k", []byte("12345")))
		assert.ErrorIs(t, store.Set(ctx, "k2", []byte("123456")), storage.ErrQuotaExceeded)

		// перезапись того же ключа учитывает освобождённое место
		assert.NoError(t, store.Set(ctx, "k", []byte("123456789")))

		value, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "123456789", string(value))

		require.NoError(t, store.Remove(ctx, "k"))
		assert.NoError(t, store.Set(ctx, "k2", []byte("123456")))
	})

	t.Run("Load and Save helpers", func(t *testing.T) {
		store := New()
		ctx := context.Background()

		var notes []note
		found, err := storage.Load(ctx, store, "notes", &notes)
		assert.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, notes)

		in := []note{{ID: "1", Title: "Первая", Tags: []string{"go"}}}
		require.NoError(t, storage.Save(ctx, store, "notes", in))

		found, err = storage.Load(ctx, store, "notes", &notes)
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, in, notes)
	})

	t.Run("Load corrupt value", func(t *testing.T) {
		store := New()
		ctx := context.Background()
		require.NoError(t, store.Set(ctx, "notes", []byte("{not json")))

		var notes []note
		_, err := storage.Load(ctx, store, "notes", &notes)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "decode notes")
	})

	t.Run("Close", func(t *testing.T) {
		store := New()
		ctx := context.Background()
		require.NoError(t, store.Set(ctx, "k", []byte("v")))

		err := store.Close()
		assert.NoError(t, err, "Ошибка при закрытии хранилища")

		_, err = store.Get(ctx, "k")
		assert.ErrorIs(t, err, storage.ErrNotFound, "Ожидалась ошибка после очистки хранилища")
	})
}
