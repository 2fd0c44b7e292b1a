package service

import (
	"context"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radio-api/internal/audit"
	"radio-api/internal/client"
	"radio-api/internal/config"
	"radio-api/internal/fingerprint"
	"radio-api/internal/model"
	"radio-api/internal/repository/redis"
)

// fakeTokenRepo is an in-memory TokenRepository with real single-use
// semantics, including the atomic consume.
type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*model.CSRFToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*model.CSRFToken)}
}

func (f *fakeTokenRepo) Create(_ context.Context, token *model.CSRFToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *token
	f.tokens[token.Token] = &copied
	return nil
}

func (f *fakeTokenRepo) IsValid(_ context.Context, token string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[token]
	return ok && t.UsedAt == nil && t.ExpiresAt.After(now), nil
}

func (f *fakeTokenRepo) Consume(_ context.Context, token string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[token]
	if !ok || t.UsedAt != nil || !t.ExpiresAt.After(now) {
		return false, nil
	}
	t.UsedAt = &now
	return true, nil
}

func (f *fakeTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for k, t := range f.tokens {
		if t.ExpiresAt.Before(now) {
			delete(f.tokens, k)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeTokenRepo) HealthCheck(context.Context) error { return nil }

func newTestTokenService(t *testing.T) (*TokenService, *fakeTokenRepo) {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient, err := client.NewRedisClient(&config.Config{
		Redis: config.RedisConfig{URL: "redis://" + mr.Addr(), PoolSize: 10},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { redisClient.Close() })

	cfg := &config.Config{
		CSRF: config.CSRFConfig{TokenTTL: 30 * time.Minute},
	}
	repo := newFakeTokenRepo()
	auditor := audit.NewPublisher(cfg, nil, fingerprint.NewManager(64))
	svc := NewTokenService(cfg, repo, redis.NewSessionCache(redisClient, nil), auditor)
	return svc, repo
}

func TestTokenService_IssueProducesHexToken(t *testing.T) {
	svc, _ := newTestTokenService(t)

	token, err := svc.Issue(context.Background(), "client-a", "192.0.2.1")
	require.NoError(t, err)

	assert.Len(t, token.Token, 64)
	_, err = hex.DecodeString(token.Token)
	assert.NoError(t, err)
	assert.WithinDuration(t, token.CreatedAt.Add(30*time.Minute), token.ExpiresAt, time.Second)
}

func TestTokenService_IssuedTokenValidates(t *testing.T) {
	svc, _ := newTestTokenService(t)

	token, err := svc.Issue(context.Background(), "client-a", "192.0.2.1")
	require.NoError(t, err)

	valid, err := svc.Validate(context.Background(), token.Token)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestTokenService_ConsumeIsSingleUse(t *testing.T) {
	svc, _ := newTestTokenService(t)
	ctx := context.Background()

	token, err := svc.Issue(ctx, "client-a", "192.0.2.1")
	require.NoError(t, err)

	ok, err := svc.Consume(ctx, token.Token, "client-a", "192.0.2.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Consume(ctx, token.Token, "client-a", "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, ok, "a token authorizes exactly one request")

	valid, err := svc.Validate(ctx, token.Token)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTokenService_ExpiredTokenRejected(t *testing.T) {
	svc, _ := newTestTokenService(t)
	ctx := context.Background()

	token, err := svc.Issue(ctx, "client-a", "192.0.2.1")
	require.NoError(t, err)

	// Shift the service clock past the TTL.
	svc.nowFn = func() time.Time { return time.Now().UTC().Add(31 * time.Minute) }

	valid, err := svc.Validate(ctx, token.Token)
	require.NoError(t, err)
	assert.False(t, valid)

	ok, err := svc.Consume(ctx, token.Token, "client-a", "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenService_MalformedTokensNeverTouchStorage(t *testing.T) {
	svc, _ := newTestTokenService(t)
	ctx := context.Background()

	for _, tok := range []string{"", "short", "zz" + string(make([]byte, 62))} {
		valid, err := svc.Validate(ctx, tok)
		require.NoError(t, err)
		assert.False(t, valid)

		ok, err := svc.Consume(ctx, tok, "client-a", "192.0.2.1")
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestTokenService_UnknownTokenRejected(t *testing.T) {
	svc, _ := newTestTokenService(t)

	unknown := make([]byte, 64)
	for i := range unknown {
		unknown[i] = 'a'
	}

	ok, err := svc.Consume(context.Background(), string(unknown), "client-a", "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenService_SweepRemovesOnlyExpired(t *testing.T) {
	svc, repo := newTestTokenService(t)
	ctx := context.Background()

	fresh, err := svc.Issue(ctx, "client-a", "192.0.2.1")
	require.NoError(t, err)

	repo.tokens["stale"] = &model.CSRFToken{
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}

	deleted, err := repo.DeleteExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	valid, err := svc.Validate(ctx, fresh.Token)
	require.NoError(t, err)
	assert.True(t, valid)
}
