package mysql

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radio-api/internal/client"
	"radio-api/internal/model"
)

func newCommentRepo(t *testing.T) (CommentRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewCommentRepository(&client.MySQLClient{DB: db}, nil)
	return repo, mock
}

func TestCommentRepository_InsertReturnsID(t *testing.T) {
	repo, mock := newCommentRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO comments")).
		WillReturnResult(sqlmock.NewResult(17, 1))

	comment := &model.Comment{
		Name:    "Anna",
		Body:    "Świetna audycja, pozdrawiam!",
		Section: "player",
	}
	id, err := repo.Insert(context.Background(), comment)
	require.NoError(t, err)
	assert.Equal(t, int64(17), id)
	assert.Equal(t, int64(17), comment.ID)
	assert.Equal(t, model.StatusPending, comment.Status)
}

func TestCommentRepository_GetByID_MissingIsNil(t *testing.T) {
	repo, mock := newCommentRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email_enc")).
		WithArgs(int64(999)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	comment, err := repo.GetByID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, comment)
}

func TestCommentRepository_ListApproved(t *testing.T) {
	repo, mock := newCommentRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM comments")).
		WithArgs(model.StatusApproved, "player", "player").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, comment, section, created_at")).
		WithArgs(model.StatusApproved, "player", "player", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "comment", "section", "created_at"}).
			AddRow(2, "Anna", "drugi komentarz", "player", now).
			AddRow(1, "Piotr", "pierwszy komentarz", "player", now.Add(-time.Hour)))

	comments, total, err := repo.ListApproved(context.Background(), "player", 1, 20, "desc")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, comments, 2)
	assert.Equal(t, "Anna", comments[0].Name)
}

func TestCommentRepository_UpdateStatus_UnknownID(t *testing.T) {
	repo, mock := newCommentRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE comments SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), 999, model.StatusApproved)
	assert.Error(t, err)
}

func TestCommentRepository_ReactionCounts(t *testing.T) {
	repo, mock := newCommentRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM comment_reactions WHERE comment_id")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"likes", "dislikes", "hearts"}).AddRow(3, 1, 2))

	counts, err := repo.ReactionCounts(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.LikeCount)
	assert.Equal(t, 1, counts.DislikeCount)
	assert.Equal(t, 2, counts.HeartCount)
}
