package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"radio-api/internal/audit"
	"radio-api/internal/fingerprint"
	"radio-api/internal/hashing"
	"radio-api/internal/limiter"
	"radio-api/internal/util"
)

type contextKey string

const clientInfoKey contextKey = "client_info"

// ClientInfo is derived once per request and carried in the context.
type ClientInfo struct {
	IPAddress string
	UserAgent string
	ClientID  string // sha256(ip + user agent)
	IPKey     string // sha256(ip), legacy window key
	UAHash    string // sha256(user agent), audit column
}

// ClientInfoMiddleware resolves the caller's address and fingerprints it.
// Unresolvable addresses collapse onto the sentinel, deliberately sharing
// one rate bucket.
func ClientInfoMiddleware(fp *fingerprint.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := util.ClientIP(r)
			ua := r.UserAgent()
			info := &ClientInfo{
				IPAddress: ip,
				UserAgent: ua,
				ClientID:  fp.ClientID(ip, ua),
				IPKey:     fp.IPKey(ip),
				UAHash:    fp.UserAgentHash(ua),
			}
			ctx := context.WithValue(r.Context(), clientInfoKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientInfo returns the request's ClientInfo; the middleware guarantees it.
func clientInfo(r *http.Request) *ClientInfo {
	if info, ok := r.Context().Value(clientInfoKey).(*ClientInfo); ok {
		return info
	}
	// Requests outside the middleware chain (tests) fall back to sentinel.
	return &ClientInfo{IPAddress: util.SentinelIP}
}

// keyFunc selects which fingerprint keys the limiter for a route.
type keyFunc func(*ClientInfo) string

// ByIP keys on the hashed address, the legacy family's behavior.
func ByIP(info *ClientInfo) string { return info.IPKey }

// ByClient keys on the full ip+user-agent fingerprint.
func ByClient(info *ClientInfo) string { return info.ClientID }

// metaStrategy is implemented by strategies that record audit columns
// alongside the admission decision.
type metaStrategy interface {
	AllowWithMeta(ctx context.Context, action, clientKey, ipAddress, userAgentHash string) (limiter.Decision, error)
}

// RateLimitMiddleware gates a route with the given strategy and action. A
// store failure rejects the request: the gate fails closed.
func RateLimitMiddleware(strategy limiter.Strategy, action string, key keyFunc, auditor *audit.Publisher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := clientInfo(r)

			var decision limiter.Decision
			var err error
			if ms, ok := strategy.(metaStrategy); ok {
				decision, err = ms.AllowWithMeta(r.Context(), action, key(info), info.IPAddress, info.UAHash)
			} else {
				decision, err = strategy.Allow(r.Context(), action, key(info))
			}
			if err != nil {
				respondWithError(w, http.StatusServiceUnavailable,
					errors.New("rate limiter unavailable"), "Please retry later")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			remaining := int64(decision.Limit) - decision.Count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !decision.Allowed {
				retrySeconds := int(decision.RetryAfter.Seconds())
				if retrySeconds < 1 {
					retrySeconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds))

				auditor.Publish(r.Context(), "rate_limited", action, info.ClientID, info.IPAddress,
					strategy.Name())
				util.Info("Request rate limited",
					zap.String("action", action),
					zap.String("strategy", strategy.Name()),
					zap.Int64("count", decision.Count))

				respondWithError(w, http.StatusTooManyRequests,
					errors.New("rate limit exceeded"), "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminAuthMiddleware checks the bearer token against the configured argon2id
// digest. There are no admin accounts, just one shared operations token.
func AdminAuthMiddleware(hasher *hashing.Hasher, tokenDigest string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenDigest == "" {
				respondWithError(w, http.StatusServiceUnavailable,
					errors.New("admin access not configured"), "Admin surface disabled")
				return
			}

			auth := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || token == "" {
				respondWithError(w, http.StatusUnauthorized,
					errors.New("missing bearer token"), "Authorization required")
				return
			}

			valid, err := hasher.Verify(token, tokenDigest)
			if err != nil || !valid {
				info := clientInfo(r)
				util.Warn("Rejected admin request",
					zap.String("ip_address", info.IPAddress),
					zap.String("path", r.URL.Path))
				respondWithError(w, http.StatusUnauthorized,
					errors.New("invalid bearer token"), "Authorization required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
