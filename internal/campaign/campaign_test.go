// AngelaMos | 2026
// campaign_test.go

package campaign

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/mailer"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

type memLogs struct {
	logs []Log
	err  error
}

func (m *memLogs) Create(_ context.Context, l *Log) error {
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, *l)
	return nil
}

func (m *memLogs) List(_ context.Context, limit, offset int) ([]Log, error) {
	if offset >= len(m.logs) {
		return nil, nil
	}
	return m.logs[offset:min(offset+limit, len(m.logs))], nil
}

func (m *memLogs) Count(context.Context) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return len(m.logs), nil
}

type countingObserver struct {
	kinds []string
	errs  int
}

func (o *countingObserver) ObserveMail(kind string, err error) {
	o.kinds = append(o.kinds, kind)
	if err != nil {
		o.errs++
	}
}

func TestSend_Validation(t *testing.T) {
	svc := NewService(&recordingSender{}, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		to   []string
		msg  string
		want error
	}{
		{"no recipients", nil, "hi", ErrNoRecipients},
		{"blank message", []string{"a@x.com"}, "   ", ErrNoMessage},
		{"bad address", []string{"a@x.com", "nope"}, "hi", ErrBadRecipient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Send(ctx, tt.to, tt.msg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSend_NoMailerAfterValidation(t *testing.T) {
	svc := NewService(nil, nil)

	_, err := svc.Send(context.Background(), nil, "hi")
	assert.ErrorIs(t, err, ErrNoRecipients)

	_, err = svc.Send(context.Background(), []string{"a@x.com"}, "hi")
	assert.ErrorIs(t, err, ErrNoMailer)
}

func TestSend_BccAndLog(t *testing.T) {
	sender := &recordingSender{}
	logs := &memLogs{}
	obs := &countingObserver{}
	svc := NewService(sender, logs, WithObserver(obs))

	long := strings.Repeat("é", 600)
	n, err := svc.Send(context.Background(), []string{"a@x.com", "b@y.org"}, long)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Empty(t, msg.To)
	assert.Equal(t, []string{"a@x.com", "b@y.org"}, msg.Bcc)
	assert.Equal(t, "Notification", msg.Subject)

	require.Len(t, logs.logs, 1)
	assert.Equal(t, []string{"a@x.com", "b@y.org"}, logs.logs[0].To())
	assert.Equal(t, 500, len([]rune(logs.logs[0].Preview)))
	assert.Equal(t, []string{"bulk"}, obs.kinds)
}

func TestSend_AcceptsShortTLDRecipients(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, nil)

	n, err := svc.Send(context.Background(), []string{"a@b.c"}, "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"a@b.c"}, sender.sent[0].Bcc)
}

func TestSend_LogFailureIgnored(t *testing.T) {
	svc := NewService(&recordingSender{}, &memLogs{err: errors.New("db down")})

	n, err := svc.Send(context.Background(), []string{"a@x.com"}, "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSend_MailerError(t *testing.T) {
	obs := &countingObserver{}
	logs := &memLogs{}
	svc := NewService(&recordingSender{err: errors.New("smtp 550")}, logs, WithObserver(obs))

	_, err := svc.Send(context.Background(), []string{"a@x.com"}, "hello")
	require.Error(t, err)
	assert.Equal(t, 1, obs.errs)
	assert.Empty(t, logs.logs)
}

func TestRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	repo := NewRepository(sqlx.NewDb(db, "pgx"))
	created := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO email_logs")).
		WithArgs("l1", "a@x.com,b@y.org", "hi").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	l := &Log{ID: "l1", Recipients: "a@x.com,b@y.org", Preview: "hi"}
	require.NoError(t, repo.Create(context.Background(), l))
	assert.Equal(t, created, l.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CreateError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO email_logs")).
		WillReturnError(errors.New("conn reset"))

	err = NewRepository(sqlx.NewDb(db, "pgx")).Create(context.Background(), &Log{ID: "l1"})
	assert.ErrorIs(t, err, core.ErrStorage)
}

func passthrough(next http.Handler) http.Handler { return next }

func serveBulk(t *testing.T, svc *Service, body string) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, passthrough, passthrough)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bulkEmail", bytes.NewBufferString(body))
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_BulkEmail(t *testing.T) {
	svc := NewService(&recordingSender{}, nil)

	rec := serveBulk(t, svc, `{"to":["a@x.com","b@x.com"],"message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res BulkEmailResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.True(t, res.OK)
	assert.Equal(t, 2, res.Count)
}

func TestHandler_BulkEmailErrors(t *testing.T) {
	tests := []struct {
		name   string
		svc    *Service
		body   string
		status int
		msg    string
	}{
		{"recipients", NewService(&recordingSender{}, nil), `{"to":[],"message":"x"}`, 400, "Recipients required"},
		{"message", NewService(&recordingSender{}, nil), `{"to":["a@x.com"],"message":""}`, 400, "Message required"},
		{"invalid", NewService(&recordingSender{}, nil), `{"to":["bad"],"message":"x"}`, 400, "Invalid email in list"},
		{"no mailer", NewService(nil, nil), `{"to":["a@x.com"],"message":"x"}`, 501, "Mailer not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveBulk(t, tt.svc, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var res core.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
			assert.Equal(t, tt.msg, res.Error)
			if tt.status == http.StatusNotImplemented {
				assert.Equal(t, "NOT_IMPLEMENTED", res.Code)
			}
		})
	}
}

func TestHandler_BulkEmailRunsLimits(t *testing.T) {
	r := chi.NewRouter()
	limited := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	sender := &recordingSender{}
	NewHandler(NewService(sender, nil)).RegisterRoutes(r, passthrough, passthrough, limited)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bulkEmail",
		bytes.NewBufferString(`{"to":["a@x.com"],"message":"hello"}`)))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Empty(t, sender.sent)
}

func TestHandler_ListLogs(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	logs := &memLogs{}
	for i, to := range []string{"a@x.com,b@y.org", "c@x.com", "d@x.com"} {
		logs.logs = append(logs.logs, Log{
			ID:         string(rune('1' + i)),
			Recipients: to,
			Preview:    "hi",
			CreatedAt:  base.Add(-time.Duration(i) * time.Hour),
		})
	}

	r := chi.NewRouter()
	NewHandler(NewService(&recordingSender{}, logs)).RegisterAdminRoutes(r, passthrough, passthrough)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/email-logs?page=1&page_size=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Items    []LogResponse `json:"items"`
		Page     int           `json:"page"`
		PageSize int           `json:"page_size"`
		Total    int           `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 2, res.PageSize)
	require.Len(t, res.Items, 2)
	assert.Equal(t, []string{"a@x.com", "b@y.org"}, res.Items[0].To)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/email-logs?page=2&page_size=2", nil))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	require.Len(t, res.Items, 1)
	assert.Equal(t, "3", res.Items[0].ID)
}

func TestService_LogsPaging(t *testing.T) {
	logs := &memLogs{logs: make([]Log, 150)}
	svc := NewService(nil, logs)

	page, total, err := svc.Logs(context.Background(), 0, 500)
	require.NoError(t, err)
	assert.Equal(t, 150, total)
	assert.Len(t, page, MaxLogPageSize)

	page, _, err = svc.Logs(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, DefaultLogPageSize)

	empty, total, err := NewService(nil, nil).Logs(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, empty)
}

func TestRepository_ListAndCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	repo := NewRepository(sqlx.NewDb(db, "pgx"))
	created := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM email_logs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("FROM email_logs")).
		WithArgs(20, 40).
		WillReturnRows(sqlmock.NewRows([]string{"id", "recipients", "preview", "created_at"}).
			AddRow("l1", "a@x.com", "hi", created))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	logs, err := repo.List(context.Background(), 20, 40)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, []string{"a@x.com"}, logs[0].To())
	assert.NoError(t, mock.ExpectationsWereMet())
}
