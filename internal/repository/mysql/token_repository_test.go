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

func newTokenRepo(t *testing.T) (TokenRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewTokenRepository(&client.MySQLClient{DB: db}, nil)
	return repo, mock
}

func TestTokenRepository_Create(t *testing.T) {
	repo, mock := newTokenRepo(t)

	now := time.Now().UTC()
	token := &model.CSRFToken{
		Token:     "aabbcc",
		ExpiresAt: now.Add(30 * time.Minute),
		IPAddress: "192.0.2.1",
		CreatedAt: now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO csrf_tokens")).
		WithArgs(token.Token, token.ExpiresAt, token.IPAddress, token.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), token))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_IsValid(t *testing.T) {
	repo, mock := newTokenRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM csrf_tokens")).
		WithArgs("known", now).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	valid, err := repo.IsValid(context.Background(), "known", now)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestTokenRepository_IsValid_UnknownTokenIsNotAnError(t *testing.T) {
	repo, mock := newTokenRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM csrf_tokens")).
		WithArgs("unknown", now).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	valid, err := repo.IsValid(context.Background(), "unknown", now)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTokenRepository_Consume_WinsWhenRowUpdated(t *testing.T) {
	repo, mock := newTokenRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE csrf_tokens SET used_at")).
		WithArgs(now, "tok", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Consume(context.Background(), "tok", now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTokenRepository_Consume_LosesWhenAlreadyUsed(t *testing.T) {
	repo, mock := newTokenRepo(t)
	now := time.Now().UTC()

	// The conditional UPDATE matches nothing for a spent or expired token.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE csrf_tokens SET used_at")).
		WithArgs(now, "tok", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Consume(context.Background(), "tok", now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenRepository_DeleteExpired(t *testing.T) {
	repo, mock := newTokenRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM csrf_tokens WHERE expires_at <")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
}
