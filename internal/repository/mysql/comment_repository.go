package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"radio-api/internal/client"
	"radio-api/internal/model"
	"radio-api/internal/util"
)

type commentRepository struct {
	client *client.MySQLClient
}

func NewCommentRepository(c *client.MySQLClient, logger *zap.Logger) CommentRepository {
	return &commentRepository{client: c}
}

func (r *commentRepository) Insert(ctx context.Context, comment *model.Comment) (int64, error) {
	ctx, cancel := r.client.WithContext(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	if comment.Status == "" {
		comment.Status = model.StatusPending
	}

	res, err := r.client.DB.ExecContext(ctx,
		`INSERT INTO comments (name, email_enc, email_hash, comment, section, status, flagged, ip_address, user_agent, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		comment.Name, comment.EmailEnc, comment.EmailHash, comment.Body, comment.Section,
		comment.Status, comment.Flagged, comment.IPAddress, comment.UserAgent,
		comment.CreatedAt, comment.UpdatedAt)
	if err != nil {
		util.Error("Failed to insert comment",
			zap.String("section", comment.Section),
			zap.Error(err))
		return 0, fmt.Errorf("failed to insert comment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read comment id: %w", err)
	}
	comment.ID = id

	util.Info("Comment stored",
		zap.Int64("id", id),
		zap.String("section", comment.Section),
		zap.String("status", comment.Status))
	return id, nil
}

func (r *commentRepository) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	ctx, cancel := r.client.WithContext(ctx, 5*time.Second)
	defer cancel()

	comment := &model.Comment{}
	err := r.client.DB.QueryRowContext(ctx,
		`SELECT id, name, email_enc, email_hash, comment, section, status, flagged, ip_address, user_agent, created_at, updated_at
		 FROM comments WHERE id = ?`, id).Scan(
		&comment.ID, &comment.Name, &comment.EmailEnc, &comment.EmailHash, &comment.Body,
		&comment.Section, &comment.Status, &comment.Flagged, &comment.IPAddress,
		&comment.UserAgent, &comment.CreatedAt, &comment.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		util.Error("Failed to get comment", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return comment, nil
}

func (r *commentRepository) ListApproved(ctx context.Context, section string, page, perPage int, order string) ([]model.Comment, int64, error) {
	ctx, cancel := r.client.WithContext(ctx, 10*time.Second)
	defer cancel()

	direction := "DESC"
	if strings.EqualFold(order, "asc") {
		direction = "ASC"
	}
	offset := (page - 1) * perPage

	var total int64
	err := r.client.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE status = ? AND (section = ? OR ? = 'all')`,
		model.StatusApproved, section, section).Scan(&total)
	if err != nil {
		util.Error("Failed to count comments", zap.String("section", section), zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}

	// direction is a validated constant, not user input.
	query := fmt.Sprintf(
		`SELECT id, name, comment, section, created_at
		 FROM comments
		 WHERE status = ? AND (section = ? OR ? = 'all')
		 ORDER BY created_at %s
		 LIMIT ? OFFSET ?`, direction)

	rows, err := r.client.DB.QueryContext(ctx, query,
		model.StatusApproved, section, section, perPage, offset)
	if err != nil {
		util.Error("Failed to list comments", zap.String("section", section), zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.Name, &c.Body, &c.Section, &c.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("comment listing failed: %w", err)
	}
	return comments, total, nil
}

func (r *commentRepository) ListByStatus(ctx context.Context, status string, page, perPage int) ([]model.Comment, int64, error) {
	ctx, cancel := r.client.WithContext(ctx, 10*time.Second)
	defer cancel()

	offset := (page - 1) * perPage

	var total int64
	if err := r.client.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE status = ?`, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count comments by status: %w", err)
	}

	rows, err := r.client.DB.QueryContext(ctx,
		`SELECT id, name, comment, section, status, flagged, ip_address, created_at
		 FROM comments WHERE status = ?
		 ORDER BY created_at ASC
		 LIMIT ? OFFSET ?`, status, perPage, offset)
	if err != nil {
		util.Error("Failed to list comments by status", zap.String("status", status), zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list comments by status: %w", err)
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.Name, &c.Body, &c.Section, &c.Status, &c.Flagged, &c.IPAddress, &c.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan moderation row: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, total, rows.Err()
}

func (r *commentRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	ctx, cancel := r.client.WithContext(ctx, 5*time.Second)
	defer cancel()

	res, err := r.client.DB.ExecContext(ctx,
		`UPDATE comments SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		util.Error("Failed to update comment status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update comment status: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}

	util.Info("Comment status updated", zap.Int64("id", id), zap.String("status", status))
	return nil
}

func (r *commentRepository) SetFlagged(ctx context.Context, id int64, flagged bool) error {
	ctx, cancel := r.client.WithContext(ctx, 5*time.Second)
	defer cancel()

	res, err := r.client.DB.ExecContext(ctx,
		`UPDATE comments SET flagged = ?, updated_at = ? WHERE id = ?`,
		flagged, time.Now().UTC(), id)
	if err != nil {
		util.Error("Failed to flag comment", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to flag comment: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *commentRepository) Stats(ctx context.Context, now time.Time) (*model.CommentStats, error) {
	ctx, cancel := r.client.WithContext(ctx, 10*time.Second)
	defer cancel()

	stats := &model.CommentStats{GeneratedAt: now}

	if err := r.client.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE status = ?`, model.StatusApproved).Scan(&stats.TotalComments); err != nil {
		return nil, fmt.Errorf("failed to count approved comments: %w", err)
	}

	if err := r.client.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE status = ? AND created_at >= ?`,
		model.StatusApproved, now.Add(-24*time.Hour)).Scan(&stats.RecentComments); err != nil {
		return nil, fmt.Errorf("failed to count recent comments: %w", err)
	}

	rows, err := r.client.DB.QueryContext(ctx,
		`SELECT section, COUNT(*) AS count, MAX(created_at) AS last_comment
		 FROM comments WHERE status = ?
		 GROUP BY section ORDER BY count DESC`, model.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate section stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s model.SectionStat
		if err := rows.Scan(&s.Section, &s.Count, &s.LastComment); err != nil {
			return nil, fmt.Errorf("failed to scan section stat: %w", err)
		}
		stats.BySection = append(stats.BySection, s)
	}
	return stats, rows.Err()
}

func (r *commentRepository) UpsertReaction(ctx context.Context, reaction *model.CommentReaction) error {
	ctx, cancel := r.client.WithContext(ctx, 5*time.Second)
	defer cancel()

	reaction.CreatedAt = time.Now().UTC()

	// One reaction per (comment, client); repeat reactions switch type.
	_, err := r.client.DB.ExecContext(ctx,
		`INSERT INTO comment_reactions (comment_id, client_id, reaction_type, ip_address, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE reaction_type = VALUES(reaction_type), created_at = VALUES(created_at)`,
		reaction.CommentID, reaction.ClientID, reaction.ReactionType, reaction.IPAddress, reaction.CreatedAt)
	if err != nil {
		util.Error("Failed to upsert reaction",
			zap.Int64("comment_id", reaction.CommentID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert reaction: %w", err)
	}
	return nil
}

func (r *commentRepository) ReactionCounts(ctx context.Context, commentID int64) (*model.ReactionCounts, error) {
	ctx, cancel := r.client.WithContext(ctx, 5*time.Second)
	defer cancel()

	counts := &model.ReactionCounts{}
	err := r.client.DB.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(reaction_type = 'like'), 0),
			COALESCE(SUM(reaction_type = 'dislike'), 0),
			COALESCE(SUM(reaction_type = 'heart'), 0)
		 FROM comment_reactions WHERE comment_id = ?`, commentID).Scan(
		&counts.LikeCount, &counts.DislikeCount, &counts.HeartCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count reactions: %w", err)
	}
	return counts, nil
}

func (r *commentRepository) HasOpenReport(ctx context.Context, commentID int64, clientID string) (bool, error) {
	ctx, cancel := r.client.WithContext(ctx, 5*time.Second)
	defer cancel()

	var one int
	err := r.client.DB.QueryRowContext(ctx,
		`SELECT 1 FROM comment_reports WHERE comment_id = ? AND client_id = ? LIMIT 1`,
		commentID, clientID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check report: %w", err)
	}
	return true, nil
}

func (r *commentRepository) InsertReport(ctx context.Context, report *model.CommentReport) (int64, error) {
	ctx, cancel := r.client.WithContext(ctx, 5*time.Second)
	defer cancel()

	report.CreatedAt = time.Now().UTC()
	if report.Status == "" {
		report.Status = "open"
	}

	res, err := r.client.DB.ExecContext(ctx,
		`INSERT INTO comment_reports (comment_id, client_id, reason, ip_address, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		report.CommentID, report.ClientID, report.Reason, report.IPAddress, report.Status, report.CreatedAt)
	if err != nil {
		util.Error("Failed to insert report",
			zap.Int64("comment_id", report.CommentID),
			zap.Error(err))
		return 0, fmt.Errorf("failed to insert report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read report id: %w", err)
	}
	return id, nil
}
