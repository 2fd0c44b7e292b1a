package limiter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"radio-api/internal/model"
	"radio-api/internal/repository/mysql"
	"radio-api/internal/util"
)

// EventLog is the sliding-window strategy backed by the rate_limits table.
// Each admitted request leaves a row; admission counts rows newer than
// (now - window) inside a locking transaction. Rejected requests leave no
// row. Used by the versioned endpoint family.
type EventLog struct {
	repo   mysql.RateLimitRepository
	limits map[string]Limit

	nowFn func() time.Time
}

func NewEventLog(repo mysql.RateLimitRepository, limits map[string]Limit) *EventLog {
	return &EventLog{
		repo:   repo,
		limits: limits,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (e *EventLog) Name() string { return "event_log" }

func (e *EventLog) Allow(ctx context.Context, action, clientID string) (Decision, error) {
	return e.AllowWithMeta(ctx, action, clientID, "", "")
}

// AllowWithMeta is Allow with the audit columns populated. ipAddress and
// userAgentHash land in the recorded row when the request is admitted.
func (e *EventLog) AllowWithMeta(ctx context.Context, action, clientID, ipAddress, userAgentHash string) (Decision, error) {
	limit, ok := e.limits[action]
	if !ok {
		return Decision{}, fmt.Errorf("no event log limit configured for action %q", action)
	}

	now := e.nowFn()
	event := &model.RateLimitEvent{
		Action:        action,
		ClientID:      clientID,
		IPAddress:     ipAddress,
		UserAgentHash: userAgentHash,
		CreatedAt:     now,
	}

	allowed, count, err := e.repo.CountAndRecord(ctx, event, now.Add(-limit.Window), limit.Max)
	if err != nil {
		// Fail closed.
		util.Error("Event log check failed",
			zap.String("action", action),
			zap.Error(err))
		return Decision{}, fmt.Errorf("event log check failed: %w", err)
	}

	decision := Decision{
		Allowed: allowed,
		Count:   int64(count),
		Limit:   limit.Max,
		Window:  limit.Window,
	}
	if !allowed {
		decision.RetryAfter = limit.Window
	}
	return decision, nil
}

// Sweep purges events older than twice the longest configured window. Run on
// a ticker instead of probabilistically per request, so load does not dictate
// cleanup cadence.
func (e *EventLog) Sweep(ctx context.Context) (int64, error) {
	var longest time.Duration
	for _, l := range e.limits {
		if l.Window > longest {
			longest = l.Window
		}
	}
	return e.repo.DeleteOlderThan(ctx, e.nowFn().Add(-2*longest))
}
