package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"radio-api/internal/client"
	"radio-api/internal/util"
)

const (
	windowKeyPrefix = "rl:window:"
	csrfKeyPrefix   = "csrf:session:"
)

// SessionCache holds the Redis-side state of the comment gate: fixed-window
// request counters keyed by (action, client) and a per-client diagnostic copy
// of the most recent CSRF token. The diagnostic copy never authorizes a
// request; MySQL is the only validation authority. A mismatch between the two
// is surfaced to the audit pipeline as a drift signal.
type SessionCache struct {
	client *client.RedisClient
}

func NewSessionCache(c *client.RedisClient, logger *zap.Logger) *SessionCache {
	return &SessionCache{client: c}
}

// IncrementWindow bumps the fixed-window counter for (action, clientID) and
// returns the count after the increment. The window TTL is set only when the
// key is created, so the window deadline never slides.
func (s *SessionCache) IncrementWindow(ctx context.Context, action, clientID string, window time.Duration) (int64, error) {
	key := fmt.Sprintf("%s%s:%s", windowKeyPrefix, action, clientID)
	count, err := s.client.IncrWithExpire(ctx, key, window)
	if err != nil {
		util.Error("Failed to increment rate window",
			zap.String("action", action),
			zap.Error(err))
		return 0, fmt.Errorf("failed to increment rate window: %w", err)
	}
	return count, nil
}

// WindowState reports the current count and remaining TTL without mutating
// the window. A missing key means an empty window.
func (s *SessionCache) WindowState(ctx context.Context, action, clientID string) (int64, time.Duration, error) {
	key := fmt.Sprintf("%s%s:%s", windowKeyPrefix, action, clientID)

	raw, err := s.client.Get(ctx, key)
	if errors.Is(err, client.ErrKeyNotFound) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read rate window: %w", err)
	}

	var count int64
	if _, err := fmt.Sscanf(raw, "%d", &count); err != nil {
		return 0, 0, fmt.Errorf("corrupt rate window value: %w", err)
	}

	ttl, err := s.client.TTL(ctx, key)
	if err != nil {
		return count, 0, fmt.Errorf("failed to read rate window ttl: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return count, ttl, nil
}

// ResetWindow clears a window, used by the admin surface.
func (s *SessionCache) ResetWindow(ctx context.Context, action, clientID string) error {
	key := fmt.Sprintf("%s%s:%s", windowKeyPrefix, action, clientID)
	return s.client.Del(ctx, key)
}

// StoreTokenCopy writes the diagnostic CSRF copy for a client, replacing any
// previous one. TTL matches the token lifetime.
func (s *SessionCache) StoreTokenCopy(ctx context.Context, clientID, token string, ttl time.Duration) error {
	key := csrfKeyPrefix + clientID
	if err := s.client.Set(ctx, key, token, ttl); err != nil {
		util.Warn("Failed to store CSRF diagnostic copy",
			zap.String("client_id", clientID),
			zap.Error(err))
		return fmt.Errorf("failed to store CSRF diagnostic copy: %w", err)
	}
	return nil
}

// TokenCopy returns the diagnostic copy for a client, or "" when none exists.
func (s *SessionCache) TokenCopy(ctx context.Context, clientID string) (string, error) {
	raw, err := s.client.Get(ctx, csrfKeyPrefix+clientID)
	if errors.Is(err, client.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read CSRF diagnostic copy: %w", err)
	}
	return raw, nil
}

// DropTokenCopy removes the diagnostic copy after the token is consumed.
func (s *SessionCache) DropTokenCopy(ctx context.Context, clientID string) error {
	return s.client.Del(ctx, csrfKeyPrefix+clientID)
}

func (s *SessionCache) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}
