// AngelaMos | 2026
// repository_test.go

package enquiry

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfphealth/nfp-backend/internal/core"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository(sqlx.NewDb(db, "pgx")), mock
}

func TestRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	record := validPayload().Record(SourceCloud, created)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO enquiries")).
		WithArgs(record.ID, "Jo Smith", "jo@x.com", "Yoga",
			"Looking forward to the class sessions!!", true).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	require.NoError(t, repo.Create(context.Background(), record))
	assert.Equal(t, created, record.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CreateStorageError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO enquiries")).
		WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), validPayload().Record(SourceCloud, time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorage)
}

func TestRepository_ListClampsLimit(t *testing.T) {
	tests := []struct {
		requested int
		applied   int
	}{
		{0, DefaultListLimit},
		{-5, DefaultListLimit},
		{50, 50},
		{5000, MaxListLimit},
	}

	for _, tt := range tests {
		repo, mock := newMockRepo(t)

		rows := sqlmock.NewRows([]string{
			"id", "name", "email", "program", "message", "consent", "created_at",
		}).AddRow("e1", "Jo", "jo@x.com", "Yoga", "hello there friends!", true, time.Now())

		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
			WithArgs(tt.applied).
			WillReturnRows(rows)

		items, err := repo.List(context.Background(), tt.requested)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Yoga", items[0].Topic)
		assert.Equal(t, SourceCloud, items[0].Source)
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestRepository_ExistsRecent(t *testing.T) {
	repo, mock := newMockRepo(t)
	since := time.Now().Add(-2 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(")).
		WithArgs("jo@x.com", "Yoga", since).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	found, err := repo.ExistsRecent(context.Background(), "jo@x.com", "Yoga", since)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRepository_CountSince(t *testing.T) {
	repo, mock := newMockRepo(t)
	since := time.Now().Add(-7 * 24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enquiries")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	n, err := repo.CountSince(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}
