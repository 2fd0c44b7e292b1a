package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"radio-api/internal/client"
	"radio-api/internal/model"
	"radio-api/internal/util"
)

type tokenRepository struct {
	client *client.MySQLClient
}

func NewTokenRepository(c *client.MySQLClient, logger *zap.Logger) TokenRepository {
	return &tokenRepository{client: c}
}

func (r *tokenRepository) Create(ctx context.Context, token *model.CSRFToken) error {
	ctx, cancel := r.client.WithContext(ctx, 5*time.Second)
	defer cancel()

	_, err := r.client.DB.ExecContext(ctx,
		`INSERT INTO csrf_tokens (token, expires_at, ip_address, created_at) VALUES (?, ?, ?, ?)`,
		token.Token, token.ExpiresAt, token.IPAddress, token.CreatedAt)
	if err != nil {
		util.Error("Failed to store CSRF token",
			zap.String("ip_address", token.IPAddress),
			zap.Error(err))
		return fmt.Errorf("failed to store CSRF token: %w", err)
	}

	util.Debug("CSRF token stored",
		zap.Time("expires_at", token.ExpiresAt),
		zap.String("ip_address", token.IPAddress))
	return nil
}

func (r *tokenRepository) IsValid(ctx context.Context, token string, now time.Time) (bool, error) {
	ctx, cancel := r.client.WithContext(ctx, 5*time.Second)
	defer cancel()

	var one int
	err := r.client.DB.QueryRowContext(ctx,
		`SELECT 1 FROM csrf_tokens WHERE token = ? AND used_at IS NULL AND expires_at > ?`,
		token, now).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		util.Error("Failed to validate CSRF token", zap.Error(err))
		return false, fmt.Errorf("failed to validate CSRF token: %w", err)
	}
	return true, nil
}

// Consume performs validate-and-mark-used as one conditional UPDATE so two
// concurrent submissions with the same token cannot both be authorized.
func (r *tokenRepository) Consume(ctx context.Context, token string, now time.Time) (bool, error) {
	ctx, cancel := r.client.WithContext(ctx, 5*time.Second)
	defer cancel()

	res, err := r.client.DB.ExecContext(ctx,
		`UPDATE csrf_tokens SET used_at = ? WHERE token = ? AND used_at IS NULL AND expires_at > ?`,
		now, token, now)
	if err != nil {
		util.Error("Failed to consume CSRF token", zap.Error(err))
		return false, fmt.Errorf("failed to consume CSRF token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read consume result: %w", err)
	}
	return affected == 1, nil
}

func (r *tokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.client.WithContext(ctx, 10*time.Second)
	defer cancel()

	res, err := r.client.DB.ExecContext(ctx,
		`DELETE FROM csrf_tokens WHERE expires_at < ?`, now)
	if err != nil {
		util.Error("Failed to cleanup expired CSRF tokens", zap.Error(err))
		return 0, fmt.Errorf("failed to cleanup expired CSRF tokens: %w", err)
	}

	deleted, _ := res.RowsAffected()
	if deleted > 0 {
		util.Debug("Expired CSRF tokens removed", zap.Int64("count", deleted))
	}
	return deleted, nil
}

func (r *tokenRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}
