package mysql

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"radio-api/internal/client"
	"radio-api/internal/model"
	"radio-api/internal/util"
)

type rateLimitRepository struct {
	client *client.MySQLClient
}

func NewRateLimitRepository(c *client.MySQLClient, logger *zap.Logger) RateLimitRepository {
	return &rateLimitRepository{client: c}
}

// CountAndRecord runs the sliding-window admission check. The SELECT locks
// the matching index range inside the transaction, so two concurrent checks
// for the same client serialize instead of both admitting at the boundary.
func (r *rateLimitRepository) CountAndRecord(ctx context.Context, event *model.RateLimitEvent, windowStart time.Time, max int) (bool, int, error) {
	ctx, cancel := r.client.WithContext(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.client.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin rate limit tx: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rate_limits
		 WHERE action = ? AND client_id = ? AND created_at >= ?
		 FOR UPDATE`,
		event.Action, event.ClientID, windowStart).Scan(&count)
	if err != nil {
		util.Error("Failed to count rate limit events",
			zap.String("action", event.Action),
			zap.Error(err))
		return false, 0, fmt.Errorf("failed to count rate limit events: %w", err)
	}

	if count >= max {
		return false, count, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rate_limits (action, client_id, ip_address, user_agent_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		event.Action, event.ClientID, event.IPAddress, event.UserAgentHash, event.CreatedAt)
	if err != nil {
		util.Error("Failed to record rate limit event",
			zap.String("action", event.Action),
			zap.Error(err))
		return false, count, fmt.Errorf("failed to record rate limit event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, count, fmt.Errorf("failed to commit rate limit tx: %w", err)
	}
	return true, count + 1, nil
}

func (r *rateLimitRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := r.client.WithContext(ctx, 10*time.Second)
	defer cancel()

	res, err := r.client.DB.ExecContext(ctx,
		`DELETE FROM rate_limits WHERE created_at < ?`, cutoff)
	if err != nil {
		util.Error("Failed to purge stale rate limit events", zap.Error(err))
		return 0, fmt.Errorf("failed to purge stale rate limit events: %w", err)
	}

	deleted, _ := res.RowsAffected()
	return deleted, nil
}
