package model

import "time"

// Comment moderation states.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// AllowedSections is the comment section allow-list; unknown values fall
// back to "general". "all" is accepted only as a listing filter.
var AllowedSections = []string{"player", "laboratory", "resistance", "games", "museum", "achievements", "general"}

// -------------------- COMMENT MODEL --------------------
type Comment struct {
	ID            int64     `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Email         string    `json:"email,omitempty" db:"-"`          // plaintext, request-scoped only
	EmailEnc      string    `json:"-" db:"email_enc"`                // AES-GCM envelope at rest
	EmailHash     string    `json:"-" db:"email_hash"`               // sha256, for dedup without decrypting
	Body          string    `json:"comment" db:"comment"`
	Section       string    `json:"section" db:"section"`
	Status        string    `json:"status,omitempty" db:"status"`
	Flagged       bool      `json:"flagged,omitempty" db:"flagged"`
	IPAddress     string    `json:"-" db:"ip_address"`
	UserAgent     string    `json:"-" db:"user_agent"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at,omitempty" db:"updated_at"`

	// Listing decorations, never persisted.
	BodyHTML      string `json:"comment_html,omitempty" db:"-"`
	FormattedDate string `json:"formatted_date,omitempty" db:"-"`
	TimeAgo       string `json:"time_ago,omitempty" db:"-"`
	LikeCount     int    `json:"like_count" db:"-"`
	DislikeCount  int    `json:"dislike_count" db:"-"`
	HeartCount    int    `json:"heart_count" db:"-"`
	ReportCount   int    `json:"report_count,omitempty" db:"-"`
}

// -------------------- CSRF TOKEN MODEL --------------------
// A token authorizes exactly one state-changing request. Valid iff
// used_at IS NULL and expires_at > now.
type CSRFToken struct {
	Token     string     `json:"token" db:"token"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty" db:"used_at"`
	IPAddress string     `json:"-" db:"ip_address"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// -------------------- RATE LIMIT EVENT MODEL --------------------
// One row per admitted request in the event-log strategy; counted over a
// sliding window and purged once older than twice the window.
type RateLimitEvent struct {
	ID            int64     `db:"id"`
	Action        string    `db:"action"`
	ClientID      string    `db:"client_id"`
	IPAddress     string    `db:"ip_address"`
	UserAgentHash string    `db:"user_agent_hash"`
	CreatedAt     time.Time `db:"created_at"`
}

// -------------------- REACTION / REPORT MODELS --------------------
var AllowedReactions = []string{"like", "dislike", "heart"}

type CommentReaction struct {
	ID           int64     `json:"id" db:"id"`
	CommentID    int64     `json:"comment_id" db:"comment_id"`
	ClientID     string    `json:"-" db:"client_id"`
	ReactionType string    `json:"reaction_type" db:"reaction_type"`
	IPAddress    string    `json:"-" db:"ip_address"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type ReactionCounts struct {
	LikeCount    int `json:"like_count"`
	DislikeCount int `json:"dislike_count"`
	HeartCount   int `json:"heart_count"`
}

type CommentReport struct {
	ID        int64     `json:"id" db:"id"`
	CommentID int64     `json:"comment_id" db:"comment_id"`
	ClientID  string    `json:"-" db:"client_id"`
	Reason    string    `json:"reason" db:"reason"`
	IPAddress string    `json:"-" db:"ip_address"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// -------------------- STREAM MODELS --------------------
type Track struct {
	ID              int64  `json:"id" db:"id"`
	Title           string `json:"title" db:"title"`
	Artist          string `json:"artist" db:"artist"`
	DurationSeconds int    `json:"duration_seconds" db:"duration_seconds"`
	Position        int    `json:"position" db:"position"`
}

type StreamStatus struct {
	Status        string    `json:"status"`
	StreamName    string    `json:"stream_name"`
	ServerStatus  string    `json:"server_status"`
	Bitrate       int       `json:"bitrate"`
	Format        string    `json:"format"`
	Listeners     int       `json:"listeners"`
	PeakListeners int       `json:"peak_listeners"`
	CurrentTime   time.Time `json:"current_time"`
}

type NowPlaying struct {
	Track      *Track    `json:"track"`
	StartedAt  time.Time `json:"started_at"`
	ElapsedSec int       `json:"elapsed_seconds"`
	Index      int       `json:"index"`
	Total      int       `json:"total"`
}

// -------------------- SECURITY EVENT MODEL --------------------
// Audit record published to Kafka and archived in ClickHouse.
type SecurityEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"` // rate_limited | csrf_invalid | spam_suppressed | moderation
	Action    string    `json:"action"`
	ClientID  string    `json:"client_id"`
	IPAddress string    `json:"ip_address"`
	Bucket    int       `json:"bucket"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// -------------------- PAGINATION --------------------
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalCount  int64 `json:"total_count"`
	TotalPages  int   `json:"total_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
}

// SectionStat aggregates approved comments per section.
type SectionStat struct {
	Section     string    `json:"section"`
	Count       int64     `json:"count"`
	LastComment time.Time `json:"last_comment"`
}

// CommentStats is the stats_only=true payload.
type CommentStats struct {
	TotalComments  int64         `json:"total_comments"`
	RecentComments int64         `json:"recent_comments"`
	BySection      []SectionStat `json:"by_section"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

// IsAllowedSection reports whether s is a persistable section name.
func IsAllowedSection(s string) bool {
	for _, allowed := range AllowedSections {
		if s == allowed {
			return true
		}
	}
	return false
}

// IsAllowedReaction reports whether s is a known reaction type.
func IsAllowedReaction(s string) bool {
	for _, allowed := range AllowedReactions {
		if s == allowed {
			return true
		}
	}
	return false
}
