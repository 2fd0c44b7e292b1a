package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radio-api/internal/model"
)

// fakeRateLimitRepo counts events in memory, mirroring the table semantics.
type fakeRateLimitRepo struct {
	events []model.RateLimitEvent
	err    error
}

func (f *fakeRateLimitRepo) CountAndRecord(_ context.Context, event *model.RateLimitEvent, windowStart time.Time, max int) (bool, int, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	count := 0
	for _, e := range f.events {
		if e.Action == event.Action && e.ClientID == event.ClientID && !e.CreatedAt.Before(windowStart) {
			count++
		}
	}
	if count >= max {
		return false, count, nil
	}
	f.events = append(f.events, *event)
	return true, count + 1, nil
}

func (f *fakeRateLimitRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	var kept []model.RateLimitEvent
	var deleted int64
	for _, e := range f.events {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	f.events = kept
	return deleted, nil
}

func TestEventLog_AdmitsUntilLimit(t *testing.T) {
	repo := &fakeRateLimitRepo{}
	el := NewEventLog(repo, map[string]Limit{
		ActionAPICommentsPost: {Max: 3, Window: time.Minute},
	})

	for i := 1; i <= 3; i++ {
		decision, err := el.Allow(context.Background(), ActionAPICommentsPost, "client-a")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, int64(i), decision.Count)
	}

	decision, err := el.Allow(context.Background(), ActionAPICommentsPost, "client-a")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, time.Minute, decision.RetryAfter)
}

func TestEventLog_RejectedRequestsLeaveNoEvent(t *testing.T) {
	repo := &fakeRateLimitRepo{}
	el := NewEventLog(repo, map[string]Limit{
		ActionAPICommentsPost: {Max: 1, Window: time.Minute},
	})

	_, err := el.Allow(context.Background(), ActionAPICommentsPost, "client-a")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := el.Allow(context.Background(), ActionAPICommentsPost, "client-a")
		require.NoError(t, err)
	}

	assert.Len(t, repo.events, 1, "rejections must not consume window capacity")
}

func TestEventLog_SlidingWindowForgetsOldEvents(t *testing.T) {
	repo := &fakeRateLimitRepo{}
	el := NewEventLog(repo, map[string]Limit{
		ActionAPICommentsGet: {Max: 2, Window: time.Minute},
	})

	current := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	el.nowFn = func() time.Time { return current }

	for i := 0; i < 2; i++ {
		decision, err := el.Allow(context.Background(), ActionAPICommentsGet, "client-a")
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}

	decision, err := el.Allow(context.Background(), ActionAPICommentsGet, "client-a")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// 61 seconds later both events fall outside the window.
	current = current.Add(61 * time.Second)
	decision, err = el.Allow(context.Background(), ActionAPICommentsGet, "client-a")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, int64(1), decision.Count)
}

func TestEventLog_FailsClosedOnStoreError(t *testing.T) {
	repo := &fakeRateLimitRepo{err: errors.New("connection refused")}
	el := NewEventLog(repo, map[string]Limit{
		ActionAPICommentsPost: {Max: 10, Window: time.Minute},
	})

	_, err := el.Allow(context.Background(), ActionAPICommentsPost, "client-a")
	assert.Error(t, err)
}

func TestEventLog_SweepUsesDoubleLongestWindow(t *testing.T) {
	repo := &fakeRateLimitRepo{}
	el := NewEventLog(repo, map[string]Limit{
		ActionAPICommentsGet:  {Max: 100, Window: time.Minute},
		ActionAPICommentsPost: {Max: 10, Window: 10 * time.Minute},
	})

	current := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	el.nowFn = func() time.Time { return current }

	repo.events = []model.RateLimitEvent{
		{Action: "comments_get", ClientID: "a", CreatedAt: current.Add(-25 * time.Minute)},
		{Action: "comments_get", ClientID: "a", CreatedAt: current.Add(-5 * time.Minute)},
	}

	deleted, err := el.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted, "only events older than twice the 10m window go")
	assert.Len(t, repo.events, 1)
}
