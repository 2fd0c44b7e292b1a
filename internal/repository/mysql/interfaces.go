package mysql

import (
	"context"
	"time"

	"radio-api/internal/model"
)

// TokenRepository is the persistence contract for CSRF tokens. The table is
// the sole validation authority; the Redis session copy never authorizes.
type TokenRepository interface {
	Create(ctx context.Context, token *model.CSRFToken) error
	IsValid(ctx context.Context, token string, now time.Time) (bool, error)
	// Consume marks the token used iff it is currently valid, returning
	// whether this call performed the transition. Consuming a used or
	// unknown token reports false with no error.
	Consume(ctx context.Context, token string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	HealthCheck(ctx context.Context) error
}

// RateLimitRepository implements the event-log (sliding window) strategy.
type RateLimitRepository interface {
	// CountAndRecord counts admitted events for (action, clientID) since
	// windowStart and records a new event only when count < max. Both steps
	// run in one transaction so concurrent checks cannot double-admit.
	CountAndRecord(ctx context.Context, event *model.RateLimitEvent, windowStart time.Time, max int) (allowed bool, count int, err error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CommentRepository covers the comment store plus reactions and reports.
type CommentRepository interface {
	Insert(ctx context.Context, comment *model.Comment) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Comment, error)
	ListApproved(ctx context.Context, section string, page, perPage int, order string) ([]model.Comment, int64, error)
	ListByStatus(ctx context.Context, status string, page, perPage int) ([]model.Comment, int64, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	SetFlagged(ctx context.Context, id int64, flagged bool) error
	Stats(ctx context.Context, now time.Time) (*model.CommentStats, error)

	UpsertReaction(ctx context.Context, reaction *model.CommentReaction) error
	ReactionCounts(ctx context.Context, commentID int64) (*model.ReactionCounts, error)
	HasOpenReport(ctx context.Context, commentID int64, clientID string) (bool, error)
	InsertReport(ctx context.Context, report *model.CommentReport) (int64, error)
}

// StreamRepository serves playlist metadata for the stream endpoints.
type StreamRepository interface {
	ListTracks(ctx context.Context) ([]model.Track, error)
	AddTrack(ctx context.Context, track *model.Track) (int64, error)
}
