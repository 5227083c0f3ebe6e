// AngelaMos | 2026
// rating_test.go

package rating

import (
	"context"
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
	"github.com/nfphealth/nfp-backend/internal/localstore"
	"github.com/nfphealth/nfp-backend/internal/middleware"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		p      Payload
		fields map[string]string
	}{
		{
			name: "valid",
			p:    Payload{ProgramID: "yoga", UserID: "u1", Stars: 4},
		},
		{
			name: "missing ids share the global key",
			p:    Payload{Stars: 3},
			fields: map[string]string{
				core.GlobalField: "Program id required. User id required.",
			},
		},
		{
			name:   "stars out of range",
			p:      Payload{ProgramID: "yoga", UserID: "u1", Stars: 6},
			fields: map[string]string{"stars": "Rating must be from 1 to 5."},
		},
		{
			name:   "fractional stars",
			p:      Payload{ProgramID: "yoga", UserID: "u1", Stars: 3.5},
			fields: map[string]string{"stars": "Rating must be from 1 to 5."},
		},
		{
			name:   "markup in comment",
			p:      Payload{ProgramID: "yoga", UserID: "u1", Stars: 5, Comment: "<script>x</script>"},
			fields: map[string]string{"comment": "HTML not allowed in comment."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.p)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			verr, ok := core.AsValidation(err)
			require.True(t, ok)
			assert.Equal(t, tt.fields, verr.Fields)
		})
	}
}

func TestLocalBook_UpsertAndAverage(t *testing.T) {
	ctx := context.Background()
	backend, err := localstore.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	book := NewLocalBook(backend)

	_, err = book.Submit(ctx, Payload{ProgramID: "yoga", UserID: "u1", Stars: 1})
	require.NoError(t, err)
	_, err = book.Submit(ctx, Payload{ProgramID: "yoga", UserID: "u1", Stars: 5})
	require.NoError(t, err)
	_, err = book.Submit(ctx, Payload{ProgramID: "yoga", UserID: "u2", Stars: 3})
	require.NoError(t, err)
	_, err = book.Submit(ctx, Payload{ProgramID: "pilates", UserID: "u2", Stars: 1})
	require.NoError(t, err)

	sum, err := book.Submit(ctx, Payload{ProgramID: "yoga", UserID: "u3", Stars: 4})
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Count)
	assert.InDelta(t, 4.0, sum.Avg, 1e-9)
	assert.Equal(t, 4, sum.My)

	mine, err := book.Summary(ctx, "yoga", "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, mine.My)
}

func TestLocalBook_RejectsInvalid(t *testing.T) {
	backend, err := localstore.NewFileBackend(t.TempDir())
	require.NoError(t, err)

	_, err = NewLocalBook(backend).Submit(context.Background(), Payload{ProgramID: "yoga", Stars: 2})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestRepository_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(sqlx.NewDb(db, "pgx"))
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (program_id, user_id) DO UPDATE")).
		WithArgs("yoga", "u1", 4, "great").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	rt := &Rating{ProgramID: "yoga", UserID: "u1", Stars: 4, Comment: "great"}
	require.NoError(t, repo.Upsert(context.Background(), rt))
	assert.Equal(t, now, rt.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_StarsForMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(sqlx.NewDb(db, "pgx"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT stars FROM ratings")).
		WillReturnRows(sqlmock.NewRows([]string{"stars"}))

	stars, err := repo.StarsFor(context.Background(), "yoga", "nobody")
	require.NoError(t, err)
	assert.Zero(t, stars)
}

// memRepo mirrors the upsert and aggregate semantics of the SQL repository.
type memRepo struct {
	mu       sync.Mutex
	rows     map[[2]string]int
	summarys int
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[[2]string]int)}
}

func (m *memRepo) Upsert(_ context.Context, r *Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[[2]string{r.ProgramID, r.UserID}] = r.Stars
	return nil
}

func (m *memRepo) Summary(_ context.Context, programID string) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summarys++
	s := Summary{ProgramID: programID}
	total := 0
	for k, v := range m.rows {
		if k[0] == programID {
			s.Count++
			total += v
		}
	}
	if s.Count > 0 {
		s.Avg = float64(total) / float64(s.Count)
	}
	return s, nil
}

func (m *memRepo) StarsFor(_ context.Context, programID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[[2]string{programID, userID}], nil
}

func (m *memRepo) Average(context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) == 0 {
		return 0, nil
	}
	total := 0
	for _, v := range m.rows {
		total += v
	}
	return float64(total) / float64(len(m.rows)), nil
}

func TestService_SubmitInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo, time.Minute)

	_, err := svc.Submit(ctx, Payload{ProgramID: "yoga", UserID: "u1", Stars: 5})
	require.NoError(t, err)

	_, err = svc.Summary(ctx, "yoga")
	require.NoError(t, err)
	calls := repo.summarys

	sum, err := svc.Summary(ctx, "yoga")
	require.NoError(t, err)
	assert.Equal(t, calls, repo.summarys, "second read should hit the cache")
	assert.Equal(t, 1, sum.Count)

	sum, err = svc.Submit(ctx, Payload{ProgramID: "yoga", UserID: "u1", Stars: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Count)
	assert.InDelta(t, 3.0, sum.Avg, 1e-9)
	assert.Equal(t, 3, sum.My)
}

func TestHandler(t *testing.T) {
	svc := NewService(newMemRepo(), 0)
	withUser := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithClaims(r.Context(),
				&middleware.AccessTokenClaims{UserID: "u1", Role: "member"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	anon := func(next http.Handler) http.Handler { return next }

	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, withUser, anon)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ratings", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ratings",
		strings.NewReader(`{"programId":"yoga","userId":"spoofed","stars":4}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"programId":"yoga","count":1,"avg":4,"my":4}`, rec.Body.String())

	mine, err := svc.Mine(context.Background(), "yoga", "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, mine.My)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ratings?programId=yoga", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"programId":"yoga","count":1,"avg":4}`, rec.Body.String())
}
