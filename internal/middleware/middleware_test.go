// AngelaMos | 2026
// middleware_test.go

package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/nfphealth/nfp-backend/internal/config"
	"github.com/nfphealth/nfp-backend/internal/core"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORS_ReflectsAnyOrigin(t *testing.T) {
	h := CORS(config.CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/submitEnquiry", nil)
	req.Header.Set("Origin", "https://nfp.example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://nfp.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	called := false
	h := CORS(config.CORSConfig{AllowedOrigins: []string{"*"}})(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }),
	)

	req := httptest.NewRequest(http.MethodOptions, "/bulkEmail", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, called)
}

func TestCORS_RejectsUnlistedOrigin(t *testing.T) {
	h := CORS(config.CORSConfig{AllowedOrigins: []string{"https://a.org"}})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		allow  []string
		status int
	}{
		{"anonymous", "", []string{"admin"}, http.StatusUnauthorized},
		{"member denied", "member", []string{"admin"}, http.StatusForbidden},
		{"admin allowed", "ADMIN", []string{"admin"}, http.StatusOK},
		{"any authenticated", "member", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/metrics", nil)
			if tt.role != "" {
				req = req.WithContext(WithClaims(req.Context(),
					&AccessTokenClaims{UserID: "u1", Role: tt.role}))
			}
			rec := httptest.NewRecorder()

			RequireRole(tt.allow...)(okHandler).ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

type stubVerifier struct {
	claims *AccessTokenClaims
	err    error
}

func (s stubVerifier) VerifyAccessToken(context.Context, string) (*AccessTokenClaims, error) {
	return s.claims, s.err
}

func TestAuthenticator(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Authenticator(stubVerifier{})(okHandler).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		rec := httptest.NewRecorder()
		Authenticator(stubVerifier{err: core.ErrTokenExpired})(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "TOKEN_EXPIRED")
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer abc")
		rec := httptest.NewRecorder()

		var gotID, gotRole string
		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			gotID = GetUserID(r.Context())
			gotRole = GetUserRole(r.Context())
		})

		Authenticator(stubVerifier{claims: &AccessTokenClaims{UserID: "u1", Role: "Admin"}})(next).
			ServeHTTP(rec, req)
		assert.Equal(t, "u1", gotID)
		assert.Equal(t, "admin", gotRole)
	})
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestRateLimiter_LocalFallback(t *testing.T) {
	rl := NewRateLimiter(nil, RateLimitConfig{Limit: PerMinute(1, 1)})
	h := rl.Handler(okHandler)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "RATE_LIMITED")
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/ratings", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ratings", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.requests.WithLabelValues(http.MethodGet, "/ratings", "400")))

	m.ObserveEnquiry("stored")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Enquiries.WithLabelValues("stored")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveEnquiry("stored") })
}

func TestLogger_IncludesTraceID(t *testing.T) {
	var buf bytes.Buffer
	h := Logger(slog.New(slog.NewJSONHandler(&buf, nil)))(okHandler)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plain", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "/plain", line["path"])
	assert.NotContains(t, line, "trace_id")

	traceID := trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6,
		0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})
	req := httptest.NewRequest(http.MethodGet, "/traced", nil)
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))

	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", line["trace_id"])
}
