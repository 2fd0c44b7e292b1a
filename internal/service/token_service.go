package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand"
	"time"

	"go.uber.org/zap"

	"radio-api/internal/audit"
	"radio-api/internal/config"
	"radio-api/internal/model"
	"radio-api/internal/repository/mysql"
	"radio-api/internal/repository/redis"
	"radio-api/internal/util"
)

// TokenService owns the CSRF token lifecycle: issue, validate, consume,
// expire. MySQL is the single validation authority; the Redis session copy
// exists for drift diagnostics only and never authorizes a request.
type TokenService struct {
	repo    mysql.TokenRepository
	cache   *redis.SessionCache
	auditor *audit.Publisher
	ttl     time.Duration
	nowFn   func() time.Time
}

func NewTokenService(cfg *config.Config, repo mysql.TokenRepository, cache *redis.SessionCache, auditor *audit.Publisher) *TokenService {
	return &TokenService{
		repo:    repo,
		cache:   cache,
		auditor: auditor,
		ttl:     cfg.CSRF.TokenTTL,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// Issue mints a single-use token bound to the issuing address and stores it.
// The diagnostic copy in Redis is best-effort.
func (s *TokenService) Issue(ctx context.Context, clientID, ipAddress string) (*model.CSRFToken, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.nowFn()
	token := &model.CSRFToken{
		Token:     hex.EncodeToString(raw),
		ExpiresAt: now.Add(s.ttl),
		IPAddress: ipAddress,
		CreatedAt: now,
	}

	if err := s.repo.Create(ctx, token); err != nil {
		return nil, err
	}

	if err := s.cache.StoreTokenCopy(ctx, clientID, token.Token, s.ttl); err != nil {
		// Diagnostic copy only; issuance already succeeded.
		util.Warn("Token issued without diagnostic copy", zap.Error(err))
	}

	// Opportunistic cleanup on roughly one issue in ten. The ticker sweeper
	// is the real guarantee; this just keeps the table small under load.
	if mrand.Intn(10) == 0 {
		go func() {
			sweepCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := s.repo.DeleteExpired(sweepCtx, s.nowFn()); err != nil {
				util.Warn("Opportunistic token cleanup failed", zap.Error(err))
			}
		}()
	}

	return token, nil
}

// Validate reports whether the token would currently be accepted, without
// consuming it. Used by the read-only validation endpoint.
func (s *TokenService) Validate(ctx context.Context, token string) (bool, error) {
	if !wellFormedToken(token) {
		return false, nil
	}
	return s.repo.IsValid(ctx, token, s.nowFn())
}

// Consume atomically validates and spends the token. Exactly one concurrent
// caller wins; the rest see valid=false. A drift between the MySQL decision
// and the Redis diagnostic copy is audited but never changes the outcome.
func (s *TokenService) Consume(ctx context.Context, token, clientID, ipAddress string) (bool, error) {
	if !wellFormedToken(token) {
		s.auditor.Publish(ctx, "csrf_invalid", "token_consume", clientID, ipAddress, "malformed token")
		return false, nil
	}

	ok, err := s.repo.Consume(ctx, token, s.nowFn())
	if err != nil {
		return false, err
	}

	copyVal, copyErr := s.cache.TokenCopy(ctx, clientID)
	if copyErr == nil {
		if ok && copyVal != "" && copyVal != token {
			s.auditor.Publish(ctx, "csrf_invalid", "token_consume", clientID, ipAddress, "session copy drift")
		}
		if ok {
			_ = s.cache.DropTokenCopy(ctx, clientID)
		}
	}

	if !ok {
		s.auditor.Publish(ctx, "csrf_invalid", "token_consume", clientID, ipAddress, "expired, used or unknown token")
	}
	return ok, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// RunSweeper deletes expired tokens on a fixed interval until ctx ends.
func (s *TokenService) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	util.Info("CSRF token sweeper started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			util.Info("CSRF token sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			deleted, err := s.repo.DeleteExpired(ctx, s.nowFn())
			if err != nil {
				util.Error("Token sweep failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				util.Info("Token sweep completed", zap.Int64("deleted", deleted))
			}
		}
	}
}

// wellFormedToken checks the shape without touching storage: 64 hex chars.
func wellFormedToken(token string) bool {
	if len(token) != 64 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
