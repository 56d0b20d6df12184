package checkpoint

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// These tests talk to real servers and are skipped unless the URL is exported.

func TestMongoStore_Integration(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("Skipping test: MONGODB_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	dbName := fmt.Sprintf("test_checkpoint_%d", time.Now().UnixNano()%100000)
	t.Cleanup(func() {
		_ = client.Database(dbName).Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	store := NewMongoStoreForDatabase(client.Database(dbName), "checkpoints")
	exerciseStore(t, ctx, store)
}

func TestMongoStore_ReconnectIntegration(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("Skipping test: MONGODB_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbName := fmt.Sprintf("test_checkpoint_rc_%d", time.Now().UnixNano()%100000)
	store := NewMongoStore(uri, dbName, "checkpoints")
	require.NoError(t, store.Reconnect(ctx))
	assert.True(t, store.Healthy(ctx))
	t.Cleanup(func() {
		_ = store.client.Database(dbName).Drop(context.Background())
		_ = store.Close(context.Background())
	})

	exerciseStore(t, ctx, store)
}

func TestRedisStore_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping test: REDIS_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := NewRedisStore(url)
	require.NoError(t, store.Reconnect(ctx))
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	exerciseStore(t, ctx, store)
}

func exerciseStore(t *testing.T, ctx context.Context, store Store) {
	t.Helper()
	key := fmt.Sprintf("it_%d", time.Now().UnixNano())

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	st, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, st)

	require.NoError(t, store.Set(ctx, key, State{UpdatedAt: t0}))
	require.NoError(t, store.Set(ctx, key, State{UpdatedAt: t1}))

	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	st, err = store.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.UpdatedAt.Equal(t1))
}
