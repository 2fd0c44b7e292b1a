package limiter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"radio-api/internal/repository/redis"
	"radio-api/internal/util"
)

// SessionWindow is the fixed-window strategy backed by Redis. The counter is
// incremented first and compared after, so the window deadline is set by the
// first request and rejected requests still advance the count. This matches
// the legacy endpoint family.
type SessionWindow struct {
	cache  *redis.SessionCache
	limits map[string]Limit
}

func NewSessionWindow(cache *redis.SessionCache, limits map[string]Limit) *SessionWindow {
	return &SessionWindow{cache: cache, limits: limits}
}

func (s *SessionWindow) Name() string { return "session_window" }

// Reset clears the current window for (action, clientKey). Exposed on the
// admin surface to lift an accidental lockout.
func (s *SessionWindow) Reset(ctx context.Context, action, clientKey string) error {
	return s.cache.ResetWindow(ctx, action, clientKey)
}

func (s *SessionWindow) Allow(ctx context.Context, action, clientID string) (Decision, error) {
	limit, ok := s.limits[action]
	if !ok {
		return Decision{}, fmt.Errorf("no session window limit configured for action %q", action)
	}

	count, err := s.cache.IncrementWindow(ctx, action, clientID, limit.Window)
	if err != nil {
		// Fail closed. The caller rejects on error.
		util.Error("Session window check failed",
			zap.String("action", action),
			zap.Error(err))
		return Decision{}, fmt.Errorf("session window check failed: %w", err)
	}

	decision := Decision{
		Allowed: count <= int64(limit.Max),
		Count:   count,
		Limit:   limit.Max,
		Window:  limit.Window,
	}
	if !decision.Allowed {
		_, ttl, stateErr := s.cache.WindowState(ctx, action, clientID)
		if stateErr == nil && ttl > 0 {
			decision.RetryAfter = ttl
		} else {
			decision.RetryAfter = limit.Window
		}
	}
	return decision, nil
}
