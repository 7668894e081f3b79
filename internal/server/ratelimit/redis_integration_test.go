//go:build integration

package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_Integration(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	store, err := NewRedisStoreFromURL(url)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	key := "test:" + uuid.NewString()
	for i := 0; i < 2; i++ {
		d, err := store.Hit(ctx, key, 2, time.Second)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := store.Hit(ctx, key, 2, time.Second)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Positive(t, d.RetryAfter)
	assert.LessOrEqual(t, d.RetryAfter, time.Second)

	time.Sleep(1100 * time.Millisecond)
	d, err = store.Hit(ctx, key, 2, time.Second)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
