package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radio-api/internal/audit"
	"radio-api/internal/config"
	"radio-api/internal/fingerprint"
	"radio-api/internal/hashing"
	"radio-api/internal/limiter"
)

type fakeStrategy struct {
	decision limiter.Decision
	err      error
	lastKey  string
}

func (f *fakeStrategy) Allow(_ context.Context, _ string, key string) (limiter.Decision, error) {
	f.lastKey = key
	return f.decision, f.err
}

func (f *fakeStrategy) Name() string { return "fake" }

func testAuditor() *audit.Publisher {
	return audit.NewPublisher(&config.Config{}, nil, fingerprint.NewManager(64))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func wrap(t *testing.T, mw func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	fp := fingerprint.NewManager(64)
	return ClientInfoMiddleware(fp)(mw(okHandler()))
}

func TestRateLimitMiddleware_AdmitsAndSetsHeaders(t *testing.T) {
	strategy := &fakeStrategy{decision: limiter.Decision{Allowed: true, Count: 3, Limit: 10}}
	h := wrap(t, RateLimitMiddleware(strategy, "comment_get", ByIP, testAuditor()))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/comments", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "7", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitMiddleware_RejectsWithRetryAfter(t *testing.T) {
	strategy := &fakeStrategy{decision: limiter.Decision{
		Allowed: false, Count: 6, Limit: 5, RetryAfter: 90 * time.Second,
	}}
	h := wrap(t, RateLimitMiddleware(strategy, "comment_post", ByIP, testAuditor()))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/comments", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestRateLimitMiddleware_FailsClosedOnStrategyError(t *testing.T) {
	strategy := &fakeStrategy{err: errors.New("store down")}
	h := wrap(t, RateLimitMiddleware(strategy, "comment_post", ByIP, testAuditor()))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/comments", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimitMiddleware_KeySelection(t *testing.T) {
	fp := fingerprint.NewManager(64)

	byIP := &fakeStrategy{decision: limiter.Decision{Allowed: true}}
	byClient := &fakeStrategy{decision: limiter.Decision{Allowed: true}}

	chain := ClientInfoMiddleware(fp)(
		RateLimitMiddleware(byIP, "a", ByIP, testAuditor())(
			RateLimitMiddleware(byClient, "b", ByClient, testAuditor())(okHandler())))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("User-Agent", "Mozilla/5.0")
	chain.ServeHTTP(rec, req)

	assert.Equal(t, fp.IPKey("192.0.2.1"), byIP.lastKey)
	assert.Equal(t, fp.ClientID("192.0.2.1", "Mozilla/5.0"), byClient.lastKey)
	assert.NotEqual(t, byIP.lastKey, byClient.lastKey)
}

type fakeMetaStrategy struct {
	fakeStrategy
	lastIP     string
	lastUAHash string
}

func (f *fakeMetaStrategy) AllowWithMeta(_ context.Context, _ string, key, ip, uaHash string) (limiter.Decision, error) {
	f.lastKey = key
	f.lastIP = ip
	f.lastUAHash = uaHash
	return f.decision, f.err
}

func TestRateLimitMiddleware_PassesAuditColumnsToMetaStrategies(t *testing.T) {
	fp := fingerprint.NewManager(64)
	strategy := &fakeMetaStrategy{fakeStrategy: fakeStrategy{decision: limiter.Decision{Allowed: true}}}

	chain := ClientInfoMiddleware(fp)(
		RateLimitMiddleware(strategy, "comments_post", ByClient, testAuditor())(okHandler()))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/comments", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("User-Agent", "Mozilla/5.0")
	chain.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "192.0.2.1", strategy.lastIP)
	assert.Equal(t, fp.UserAgentHash("Mozilla/5.0"), strategy.lastUAHash)
}

func TestAdminAuthMiddleware(t *testing.T) {
	hasher := hashing.NewHasher()
	digest := hasher.Encode("ops-secret", []byte("0123456789abcdef"))

	tests := []struct {
		name       string
		digest     string
		authHeader string
		wantStatus int
	}{
		{"valid token", digest, "Bearer ops-secret", http.StatusOK},
		{"wrong token", digest, "Bearer not-the-secret", http.StatusUnauthorized},
		{"missing header", digest, "", http.StatusUnauthorized},
		{"not bearer scheme", digest, "Basic abc", http.StatusUnauthorized},
		{"unconfigured digest", "", "Bearer ops-secret", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := wrap(t, AdminAuthMiddleware(hasher, tt.digest))

			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/api/v1/admin/comments", nil)
			req.RemoteAddr = "192.0.2.9:1234"
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestClientInfoMiddleware_SentinelSharedBucket(t *testing.T) {
	fp := fingerprint.NewManager(64)
	var seen *ClientInfo
	h := ClientInfoMiddleware(fp)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = clientInfo(r)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "unparsable"
	h.ServeHTTP(rec, req)

	require.NotNil(t, seen)
	assert.Equal(t, "0.0.0.0", seen.IPAddress)
	assert.Equal(t, fp.IPKey("0.0.0.0"), seen.IPKey)
}
