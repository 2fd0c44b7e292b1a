package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"radio-api/internal/audit"
	"radio-api/internal/client"
	"radio-api/internal/config"
	"radio-api/internal/encryption"
	"radio-api/internal/model"
	"radio-api/internal/repository/mysql"
	"radio-api/internal/spam"
	"radio-api/internal/util"
)

var (
	ErrInvalidToken    = errors.New("invalid or expired security token")
	ErrValidation      = errors.New("validation failed")
	ErrCommentNotFound = errors.New("comment not found")
	ErrInvalidReaction = errors.New("unknown reaction type")
	ErrAlreadyReported = errors.New("comment already reported by this client")
)

// SpamSuppressedID is the id reported to a suppressed submitter. The response
// claims success so the author cannot tell the filter tripped.
const SpamSuppressedID int64 = -1

// SubmitRequest is the validated input to the submission gate. The CSRF
// token has NOT been consumed yet when the service receives it.
type SubmitRequest struct {
	Name      string
	Email     string
	Body      string
	Section   string
	CSRFToken string
	ClientID  string
	IPAddress string
	UserAgent string
}

// CommentService implements the comment gate and the read/moderation surface.
type CommentService struct {
	repo       mysql.CommentRepository
	tokens     *TokenService
	detector   *spam.Detector
	encryptor  *encryption.Manager
	es         *client.ESClient
	auditor    *audit.Publisher
	esIndex    string
	esEnabled  bool
	nowFn      func() time.Time
}

func NewCommentService(
	cfg *config.Config,
	repo mysql.CommentRepository,
	tokens *TokenService,
	detector *spam.Detector,
	encryptor *encryption.Manager,
	es *client.ESClient,
	auditor *audit.Publisher,
) *CommentService {
	return &CommentService{
		repo:      repo,
		tokens:    tokens,
		detector:  detector,
		encryptor: encryptor,
		es:        es,
		auditor:   auditor,
		esIndex:   cfg.Elasticsearch.CommentIndex,
		esEnabled: cfg.Elasticsearch.Enabled && es != nil,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// Submit runs the gate in order: consume the token, validate fields, screen
// for spam, persist. Rate limiting happens upstream in middleware. The
// ordering matters: a rejected submission must still have spent its token.
func (s *CommentService) Submit(ctx context.Context, req *SubmitRequest) (int64, error) {
	ok, err := s.tokens.Consume(ctx, req.CSRFToken, req.ClientID, req.IPAddress)
	if err != nil {
		return 0, fmt.Errorf("token check failed: %w", err)
	}
	if !ok {
		return 0, ErrInvalidToken
	}

	if err := validateSubmission(req); err != nil {
		return 0, err
	}

	section := strings.ToLower(strings.TrimSpace(req.Section))
	if !model.IsAllowedSection(section) {
		section = "general"
	}

	// Screen the same surface the moderators see: spam markers hide in the
	// name and email fields as often as in the body.
	screened := req.Name + " " + req.Email + " " + req.Body
	if s.detector.IsSpam(screened) {
		detail := strings.Join(s.detector.Matches(screened), "; ")
		s.auditor.Publish(ctx, "spam_suppressed", "comment_post", req.ClientID, req.IPAddress, detail)
		util.Info("Spam submission suppressed",
			zap.String("section", section),
			zap.String("client_id", req.ClientID))
		return SpamSuppressedID, nil
	}

	comment := &model.Comment{
		Name:      util.SanitizeInput(req.Name),
		Body:      util.SanitizeInput(req.Body),
		Section:   section,
		Status:    model.StatusPending,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	}

	email := strings.TrimSpace(req.Email)
	enc, err := s.encryptor.EncryptToString(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("failed to protect email: %w", err)
	}
	comment.EmailEnc = enc
	sum := sha256.Sum256([]byte(strings.ToLower(email)))
	comment.EmailHash = hex.EncodeToString(sum[:])

	id, err := s.repo.Insert(ctx, comment)
	if err != nil {
		return 0, err
	}

	s.indexComment(ctx, comment)
	return id, nil
}

// List returns approved comments for a section ("all" disables the filter),
// decorated for display.
func (s *CommentService) List(ctx context.Context, section string, page, perPage int, order string) ([]model.Comment, *model.Pagination, error) {
	section = strings.ToLower(strings.TrimSpace(section))
	if section != "all" && !model.IsAllowedSection(section) {
		section = "general"
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	comments, total, err := s.repo.ListApproved(ctx, section, page, perPage, order)
	if err != nil {
		return nil, nil, err
	}

	now := s.nowFn()
	for i := range comments {
		s.decorate(&comments[i], now)
		if counts, err := s.repo.ReactionCounts(ctx, comments[i].ID); err == nil {
			comments[i].LikeCount = counts.LikeCount
			comments[i].DislikeCount = counts.DislikeCount
			comments[i].HeartCount = counts.HeartCount
		}
	}

	return comments, buildPagination(page, perPage, total), nil
}

// ListModerationQueue returns comments awaiting review, oldest first.
func (s *CommentService) ListModerationQueue(ctx context.Context, status string, page, perPage int) ([]model.Comment, *model.Pagination, error) {
	if status != model.StatusPending && status != model.StatusRejected {
		status = model.StatusPending
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	comments, total, err := s.repo.ListByStatus(ctx, status, page, perPage)
	if err != nil {
		return nil, nil, err
	}

	now := s.nowFn()
	for i := range comments {
		s.decorate(&comments[i], now)
	}
	return comments, buildPagination(page, perPage, total), nil
}

// Stats returns the aggregate counters for stats_only listings.
func (s *CommentService) Stats(ctx context.Context) (*model.CommentStats, error) {
	return s.repo.Stats(ctx, s.nowFn())
}

// Moderate transitions a comment to approved or rejected.
func (s *CommentService) Moderate(ctx context.Context, id int64, approve bool, clientID, ipAddress string) error {
	status := model.StatusRejected
	if approve {
		status = model.StatusApproved
	}

	err := s.repo.UpdateStatus(ctx, id, status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCommentNotFound
	}
	if err != nil {
		return err
	}

	s.auditor.Publish(ctx, "moderation", "comment_moderate", clientID, ipAddress,
		fmt.Sprintf("comment %d -> %s", id, status))

	if comment, gerr := s.repo.GetByID(ctx, id); gerr == nil && comment != nil {
		if status == model.StatusApproved {
			s.indexComment(ctx, comment)
		} else {
			s.removeFromIndex(ctx, id)
		}
	}
	return nil
}

// React records or switches a client's reaction on an approved comment.
func (s *CommentService) React(ctx context.Context, commentID int64, clientID, ipAddress, reactionType string) (*model.ReactionCounts, error) {
	if !model.IsAllowedReaction(reactionType) {
		return nil, ErrInvalidReaction
	}

	comment, err := s.repo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment == nil || comment.Status != model.StatusApproved {
		return nil, ErrCommentNotFound
	}

	reaction := &model.CommentReaction{
		CommentID:    commentID,
		ClientID:     clientID,
		ReactionType: reactionType,
		IPAddress:    ipAddress,
	}
	if err := s.repo.UpsertReaction(ctx, reaction); err != nil {
		return nil, err
	}
	return s.repo.ReactionCounts(ctx, commentID)
}

// Report files a report against an approved comment. One report per client
// per comment; the comment is flagged for review on the first report.
func (s *CommentService) Report(ctx context.Context, commentID int64, clientID, ipAddress, reason string) error {
	comment, err := s.repo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment == nil || comment.Status != model.StatusApproved {
		return ErrCommentNotFound
	}

	already, err := s.repo.HasOpenReport(ctx, commentID, clientID)
	if err != nil {
		return err
	}
	if already {
		return ErrAlreadyReported
	}

	report := &model.CommentReport{
		CommentID: commentID,
		ClientID:  clientID,
		Reason:    util.SanitizeInput(reason),
		IPAddress: ipAddress,
	}
	if _, err := s.repo.InsertReport(ctx, report); err != nil {
		return err
	}

	if !comment.Flagged {
		if err := s.repo.SetFlagged(ctx, commentID, true); err != nil {
			util.Warn("Failed to flag reported comment", zap.Int64("id", commentID), zap.Error(err))
		}
	}

	s.auditor.Publish(ctx, "moderation", "comment_report", clientID, ipAddress,
		fmt.Sprintf("comment %d reported", commentID))
	return nil
}

// Search runs the admin full-text query against the comment index.
func (s *CommentService) Search(ctx context.Context, query string, size int) ([]model.Comment, error) {
	if !s.esEnabled {
		return nil, errors.New("search backend is disabled")
	}
	if size < 1 || size > 100 {
		size = 20
	}

	esQuery := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"name", "comment"},
			},
		},
		"sort": []map[string]interface{}{
			{"created_at": map[string]interface{}{"order": "desc"}},
		},
	}

	res, err := s.es.Search(ctx, s.esIndex, esQuery)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source model.Comment `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := s.es.ParseResponse(res, &parsed); err != nil {
		return nil, fmt.Errorf("search response invalid: %w", err)
	}

	comments := make([]model.Comment, 0, len(parsed.Hits.Hits))
	now := s.nowFn()
	for _, hit := range parsed.Hits.Hits {
		c := hit.Source
		s.decorate(&c, now)
		comments = append(comments, c)
	}
	return comments, nil
}

func (s *CommentService) decorate(c *model.Comment, now time.Time) {
	c.BodyHTML = util.FormatCommentHTML(c.Body)
	c.FormattedDate = c.CreatedAt.Format("02.01.2006 15:04")
	c.TimeAgo = util.TimeAgo(c.CreatedAt, now)
}

func (s *CommentService) indexComment(ctx context.Context, c *model.Comment) {
	if !s.esEnabled {
		return
	}
	doc := map[string]interface{}{
		"id":         c.ID,
		"name":       c.Name,
		"comment":    c.Body,
		"section":    c.Section,
		"status":     c.Status,
		"created_at": c.CreatedAt,
	}
	res, err := s.es.IndexDocument(ctx, s.esIndex, strconv.FormatInt(c.ID, 10), doc)
	if err != nil {
		util.Warn("Failed to index comment", zap.Int64("id", c.ID), zap.Error(err))
		return
	}
	res.Body.Close()
}

func (s *CommentService) removeFromIndex(ctx context.Context, id int64) {
	if !s.esEnabled {
		return
	}
	res, err := s.es.DeleteDocument(ctx, s.esIndex, strconv.FormatInt(id, 10))
	if err != nil {
		util.Warn("Failed to remove comment from index", zap.Int64("id", id), zap.Error(err))
		return
	}
	res.Body.Close()
}

// validateSubmission enforces the field constraints: name 2-100 runes, body
// 10-2000 runes, email required, RFC-shaped and at most 255 bytes.
func validateSubmission(req *SubmitRequest) error {
	name := strings.TrimSpace(req.Name)
	if n := len([]rune(name)); n < 2 || n > 100 {
		return fmt.Errorf("%w: name must be 2-100 characters", ErrValidation)
	}
	if util.ContainsSuspicious(name) {
		return fmt.Errorf("%w: name contains disallowed characters", ErrValidation)
	}

	body := strings.TrimSpace(req.Body)
	if n := len([]rune(body)); n < 10 || n > 2000 {
		return fmt.Errorf("%w: comment must be 10-2000 characters", ErrValidation)
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if len(email) > 255 || !looksLikeEmail(email) {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return nil
}

func looksLikeEmail(email string) bool {
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t\r\n")
}

func buildPagination(page, perPage int, total int64) *model.Pagination {
	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	return &model.Pagination{
		CurrentPage: page,
		PerPage:     perPage,
		TotalCount:  total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}
