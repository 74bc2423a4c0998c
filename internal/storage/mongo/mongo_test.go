package mongo

import (
	"context"
	"testing"

	"github.com/ButyrinIA/bookblog/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMongoStorage(t *testing.T) {
	if testing.Short() {
		t.Skip("контейнерные тесты пропущены в режиме -short")
	}

	ctx := context.Background()
	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Не удалось запустить контейнер MongoDB: %v", err)
	}
	defer mongoC.Terminate(ctx)

	host, err := mongoC.Host(ctx)
	require.NoError(t, err)
	port, err := mongoC.MappedPort(ctx, "27017")
	require.NoError(t, err)

	store, err := New(ctx, "mongodb://"+host+":"+port.Port(), "bookblog_test")
	require.NoError(t, err, "Не удалось инициализировать MongoStorage")
	defer store.Close()

	t.Run("Set and Get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "bookstore_books", []byte(`[{"id":1,"title":"Война и мир"}]`)))

		value, err := store.Get(ctx, "bookstore_books")
		assert.NoError(t, err)
		assert.Equal(t, `[{"id":1,"title":"Война и мир"}]`, string(value))
	})

	t.Run("Upsert replaces value", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k", []byte(`1`)))
		require.NoError(t, store.Set(ctx, "k", []byte(`2`)))

		value, err := store.Get(ctx, "k")
		assert.NoError(t, err)
		assert.Equal(t, `2`, string(value))
	})

	t.Run("Get Not Found", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "tmp", []byte(`{}`)))
		require.NoError(t, store.Remove(ctx, "tmp"))

		_, err := store.Get(ctx, "tmp")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
