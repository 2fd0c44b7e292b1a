package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radio-api/internal/client"
	"radio-api/internal/config"
	"radio-api/internal/repository/redis"
)

func newTestSessionWindow(t *testing.T, limits map[string]Limit) (*SessionWindow, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Environment: "development",
		Redis: config.RedisConfig{
			URL:      "redis://" + mr.Addr(),
			PoolSize: 10,
		},
	}

	redisClient, err := client.NewRedisClient(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { redisClient.Close() })

	cache := redis.NewSessionCache(redisClient, nil)
	return NewSessionWindow(cache, limits), mr
}

func TestSessionWindow_AllowsUnderLimit(t *testing.T) {
	sw, _ := newTestSessionWindow(t, map[string]Limit{
		ActionCommentPost: {Max: 5, Window: 10 * time.Minute},
	})

	for i := 1; i <= 5; i++ {
		decision, err := sw.Allow(context.Background(), ActionCommentPost, "client-a")
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "request %d should be admitted", i)
		assert.Equal(t, int64(i), decision.Count)
	}
}

func TestSessionWindow_RejectsOverLimit(t *testing.T) {
	sw, _ := newTestSessionWindow(t, map[string]Limit{
		ActionCommentPost: {Max: 5, Window: 10 * time.Minute},
	})

	for i := 0; i < 5; i++ {
		_, err := sw.Allow(context.Background(), ActionCommentPost, "client-a")
		require.NoError(t, err)
	}

	decision, err := sw.Allow(context.Background(), ActionCommentPost, "client-a")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, int64(6), decision.Count)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))
}

func TestSessionWindow_IsolatesClients(t *testing.T) {
	sw, _ := newTestSessionWindow(t, map[string]Limit{
		ActionTokenIssue: {Max: 1, Window: time.Minute},
	})

	_, err := sw.Allow(context.Background(), ActionTokenIssue, "client-a")
	require.NoError(t, err)

	decision, err := sw.Allow(context.Background(), ActionTokenIssue, "client-b")
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "other clients keep their own window")
}

func TestSessionWindow_WindowExpiryResetsCount(t *testing.T) {
	sw, mr := newTestSessionWindow(t, map[string]Limit{
		ActionTokenIssue: {Max: 2, Window: time.Minute},
	})

	for i := 0; i < 3; i++ {
		_, err := sw.Allow(context.Background(), ActionTokenIssue, "client-a")
		require.NoError(t, err)
	}

	mr.FastForward(61 * time.Second)

	decision, err := sw.Allow(context.Background(), ActionTokenIssue, "client-a")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, int64(1), decision.Count)
}

func TestSessionWindow_WindowDeadlineDoesNotSlide(t *testing.T) {
	sw, mr := newTestSessionWindow(t, map[string]Limit{
		ActionTokenIssue: {Max: 100, Window: time.Minute},
	})

	_, err := sw.Allow(context.Background(), ActionTokenIssue, "client-a")
	require.NoError(t, err)

	mr.FastForward(40 * time.Second)

	// A second request must not refresh the deadline.
	_, err = sw.Allow(context.Background(), ActionTokenIssue, "client-a")
	require.NoError(t, err)

	mr.FastForward(25 * time.Second)

	decision, err := sw.Allow(context.Background(), ActionTokenIssue, "client-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), decision.Count, "window opened 65s ago must have expired")
}

func TestSessionWindow_FailsClosedOnStoreOutage(t *testing.T) {
	sw, mr := newTestSessionWindow(t, map[string]Limit{
		ActionCommentPost: {Max: 5, Window: 10 * time.Minute},
	})

	mr.Close()

	_, err := sw.Allow(context.Background(), ActionCommentPost, "client-a")
	assert.Error(t, err, "store outage must reject, not admit")
}

func TestSessionWindow_ResetClearsTheWindow(t *testing.T) {
	sw, _ := newTestSessionWindow(t, map[string]Limit{
		ActionCommentPost: {Max: 5, Window: 10 * time.Minute},
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := sw.Allow(ctx, ActionCommentPost, "client-a")
		require.NoError(t, err)
	}
	decision, err := sw.Allow(ctx, ActionCommentPost, "client-a")
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	require.NoError(t, sw.Reset(ctx, ActionCommentPost, "client-a"))

	decision, err = sw.Allow(ctx, ActionCommentPost, "client-a")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, int64(1), decision.Count)
}

func TestSessionWindow_UnknownActionIsAnError(t *testing.T) {
	sw, _ := newTestSessionWindow(t, map[string]Limit{})

	_, err := sw.Allow(context.Background(), "unconfigured", "client-a")
	assert.Error(t, err)
}
