// AngelaMos | 2026
// user_test.go

package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/middleware"
	"github.com/nfphealth/nfp-backend/internal/role"
)

var columns = []string{
	"id", "email", "password_hash", "name", "role", "token_version",
	"email_verified_at", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return sqlx.NewDb(db, "pgx"), mock
}

func userRow(id, email, r string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(columns).AddRow(id, email, "hash", "Name", r, 0, nil, now, now)
}

func TestRepository_ListOrdersByEmailWithCursor(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE email > $1 AND role = $2")+`\s+ORDER BY email ASC\s+LIMIT \$3`).
		WithArgs("b@x.com", role.Admin, 2).
		WillReturnRows(userRow("u3", "c@x.com", role.Admin).
			AddRow("u4", "d@x.com", "hash", "Name", role.Admin, 0, nil, time.Now(), time.Now()))

	users, err := repo.List(context.Background(), ListUsersParams{
		After: " B@x.com ", PageSize: 2, Role: "ADMIN",
	})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "c@x.com", users[0].Email)

	page := toPage(users, 2)
	assert.Equal(t, "d@x.com", page.Cursor)
	assert.Empty(t, toPage(users[:1], 2).Cursor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListDefaults(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`ORDER BY email ASC\s+LIMIT \$1`).
		WithArgs(DefaultPageSize).
		WillReturnRows(sqlmock.NewRows(columns))

	users, err := NewRepository(db).List(context.Background(), ListUsersParams{})
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CountByRole(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FILTER (WHERE role = $1)")).
		WithArgs(role.Admin).
		WillReturnRows(sqlmock.NewRows([]string{"total", "admins"}).AddRow(5, 2))

	counts, err := NewRepository(db).CountByRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, counts.Total)
	assert.Equal(t, 3, counts.Members())
	assert.Equal(t, 0, RoleCounts{Total: 1, Admins: 4}.Members())
}

func TestRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := NewRepository(db).Create(context.Background(), &User{ID: "u1", Email: "a@x.com"})
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestService_CreateAssignsRoleFromDomain(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewService(NewRepository(db), "monash.edu")

	stamp := sqlmock.NewRows([]string{"created_at", "updated_at", "token_version"}).
		AddRow(time.Now(), time.Now(), 0)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "lead@monash.edu", "hash", "Lead", role.Admin).
		WillReturnRows(stamp)

	acct, err := svc.Create(context.Background(), " Lead@Monash.EDU ", "hash", "Lead")
	require.NoError(t, err)
	assert.Equal(t, role.Admin, acct.Role)
	assert.Equal(t, "lead@monash.edu", acct.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_SetRoleByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewService(NewRepository(db), "monash.edu", WithTx(db))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("jo@x.com").
		WillReturnRows(userRow("u1", "jo@x.com", role.Member))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users")).
		WithArgs("u1", "Name", role.Admin).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	u, err := svc.SetRoleByEmail(context.Background(), "JO@x.com", " Admin ")
	require.NoError(t, err)
	assert.Equal(t, role.Admin, u.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_SetRoleByEmailRejections(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewService(NewRepository(db), "monash.edu", WithTx(db))
	ctx := context.Background()

	_, err := svc.SetRoleByEmail(ctx, "Boss@Monash.edu", "member")
	require.ErrorIs(t, err, core.ErrForbidden)

	_, err = svc.SetRoleByEmail(ctx, "jo@x.com", "owner")
	require.ErrorIs(t, err, core.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet(), "rejected changes never touch storage")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("ghost@x.com").
		WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectRollback()

	_, err = svc.SetRoleByEmail(ctx, "ghost@x.com", "admin")
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_SetRoleByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewHandler(NewService(NewRepository(db), "monash.edu"))

	r := chi.NewRouter()
	asAdmin := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithClaims(req.Context(), &middleware.AccessTokenClaims{
				UserID: "admin-1", Role: role.Admin,
			})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
	h.RegisterAdminRoutes(r, asAdmin, middleware.RequireAdmin)

	body, err := json.Marshal(SetRoleByEmailRequest{Email: "boss@monash.edu", Role: "member"})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/users/role", bytes.NewReader(body)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("jo@x.com").
		WillReturnRows(userRow("u1", "jo@x.com", role.Admin))

	body, err = json.Marshal(SetRoleByEmailRequest{Email: "jo@x.com", Role: "admin"})
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/users/role", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UserResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, role.Admin, resp.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}
