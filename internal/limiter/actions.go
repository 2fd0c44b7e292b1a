package limiter

// Session-window actions (legacy endpoint family, Redis fixed window).
const (
	ActionTokenIssue  = "csrf_token"
	ActionCommentGet  = "comment_get"
	ActionCommentPost = "comment_post"
)

// Event-log actions (versioned endpoint family, MySQL sliding window).
const (
	ActionAPICommentsGet  = "comments_get"
	ActionAPICommentsPost = "comments_post"
	ActionAPICommentsPut  = "comments_put"
	ActionAPIStreamGet    = "stream_get"
	ActionAPIStreamPost   = "stream_post"
)
