package limiter

import (
	"context"
	"time"
)

// Decision is the outcome of an admission check. RetryAfter is only
// meaningful when Allowed is false.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

// Strategy admits or rejects a request for an action on behalf of a client.
// Implementations fail closed: when the backing store is unreachable the
// check returns an error and the caller must reject the request.
type Strategy interface {
	// Allow checks and records one request for (action, clientID).
	Allow(ctx context.Context, action, clientID string) (Decision, error)
	// Name identifies the strategy in logs and audit events.
	Name() string
}

// Limit pairs a maximum with its window.
type Limit struct {
	Max    int
	Window time.Duration
}
