// AngelaMos | 2026
// admin_test.go

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfphealth/nfp-backend/internal/middleware"
	"github.com/nfphealth/nfp-backend/internal/role"
	"github.com/nfphealth/nfp-backend/internal/user"
)

type stubUsers struct {
	counts user.RoleCounts
	calls  atomic.Int32
}

func (s *stubUsers) CountByRole(context.Context) (user.RoleCounts, error) {
	s.calls.Add(1)
	return s.counts, nil
}

type stubEnquiries struct {
	since time.Time
	n     int
	err   error
}

func (s *stubEnquiries) CountSince(_ context.Context, since time.Time) (int, error) {
	s.since = since
	return s.n, s.err
}

type stubRatings float64

func (s stubRatings) Average(context.Context) (float64, error) { return float64(s), nil }

func TestMetrics_Aggregates(t *testing.T) {
	users := &stubUsers{counts: user.RoleCounts{Total: 10, Admins: 3}}
	enq := &stubEnquiries{n: 4}
	svc := NewMetricsService(users, enq, stubRatings(4.25), 0)

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	m, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Metrics{
		UsersTotal: 10, Admins: 3, Members: 7, Enquiries7d: 4, AvgRating: 4.25,
	}, m)
	assert.Equal(t, now.Add(-604800*time.Second), enq.since)
}

func TestMetrics_MembersNeverNegative(t *testing.T) {
	users := &stubUsers{counts: user.RoleCounts{Total: 1, Admins: 2}}
	m, err := NewMetricsService(users, &stubEnquiries{}, stubRatings(0), 0).Get(context.Background())
	require.NoError(t, err)
	assert.Zero(t, m.Members)
}

func TestMetrics_CachedAndErrors(t *testing.T) {
	users := &stubUsers{counts: user.RoleCounts{Total: 2}}
	svc := NewMetricsService(users, &stubEnquiries{}, stubRatings(0), time.Minute)

	_, err := svc.Get(context.Background())
	require.NoError(t, err)
	_, err = svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), users.calls.Load())

	failing := NewMetricsService(users, &stubEnquiries{err: errors.New("db down")}, stubRatings(0), 0)
	_, err = failing.Get(context.Background())
	assert.Error(t, err)
}

func TestHandler_MetricsAdminOnly(t *testing.T) {
	svc := NewMetricsService(&stubUsers{counts: user.RoleCounts{Total: 3, Admins: 1}},
		&stubEnquiries{n: 2}, stubRatings(5), 0)
	h := NewHandler(HandlerConfig{Metrics: svc})

	as := func(r string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := middleware.WithClaims(req.Context(), &middleware.AccessTokenClaims{UserID: "u", Role: r})
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		}
	}

	member := chi.NewRouter()
	h.RegisterRoutes(member, as(role.Member), middleware.RequireAdmin)
	rec := httptest.NewRecorder()
	member.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/metrics", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := chi.NewRouter()
	h.RegisterRoutes(admin, as(role.Admin), middleware.RequireAdmin)
	h.RegisterStatsRoutes(admin, as(role.Admin), middleware.RequireAdmin)
	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var m Metrics
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&m))
	assert.Equal(t, 2, m.Members)
	assert.Equal(t, 2, m.Enquiries7d)

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/stats/runtime", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
