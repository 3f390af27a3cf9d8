package middleware_test

import (
	"context"
	"testing"
	"time"

	"student-records/internal/middleware"
	"student-records/testing/testredis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreWithContainer(t *testing.T) {
	redisContainer := testredis.SetupSharedRedis(t)
	defer redisContainer.Cleanup(t)

	ctx := context.Background()

	t.Run("CountsWithinWindow", func(t *testing.T) {
		store := middleware.NewRedisStore(redisContainer.Client(t), "test:")

		for want := int64(1); want <= 3; want++ {
			count, resetAt, err := store.Increment(ctx, "10.0.0.1", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, want, count)
			assert.WithinDuration(t, time.Now().Add(time.Minute), resetAt, 2*time.Second)
		}
	})

	t.Run("SharedBetweenStores", func(t *testing.T) {
		client := redisContainer.Client(t)
		first := middleware.NewRedisStore(client, "")
		second := middleware.NewRedisStore(client, "")

		_, _, err := first.Increment(ctx, "10.0.0.2", time.Minute)
		require.NoError(t, err)
		count, _, err := second.Increment(ctx, "10.0.0.2", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("WindowExpires", func(t *testing.T) {
		store := middleware.NewRedisStore(redisContainer.Client(t), "test:")

		_, _, err := store.Increment(ctx, "10.0.0.3", 100*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(250 * time.Millisecond)

		count, _, err := store.Increment(ctx, "10.0.0.3", 100*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
