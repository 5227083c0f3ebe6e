// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/role"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	LockByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, id string) error
	MarkEmailVerified(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, params ListUsersParams) ([]User, error)
	CountByRole(ctx context.Context) (RoleCounts, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

const userColumns = `
	id, email, password_hash, name, role, token_version,
	email_verified_at, created_at, updated_at`

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at, token_version`

	err := r.db.GetContext(ctx, user, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, "get user", `SELECT`+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail matches on the stored lowercase email.
func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "get user by email",
		`SELECT`+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(email))
}

// LockByEmail reads the row FOR UPDATE. It only makes sense inside a
// transaction.
func (r *repository) LockByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "lock user by email",
		`SELECT`+userColumns+` FROM users WHERE email = $1 FOR UPDATE`,
		strings.ToLower(email))
}

func (r *repository) getOne(ctx context.Context, op, query string, arg any) (*User, error) {
	var user User
	err := r.db.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (r *repository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET name = $2, role = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &user.UpdatedAt, query,
		user.ID,
		user.Name,
		user.Role,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

func (r *repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *repository) IncrementTokenVersion(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "increment token version", query, id)
}

// MarkEmailVerified keeps the first verification time.
func (r *repository) MarkEmailVerified(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET email_verified_at = COALESCE(email_verified_at, NOW()), updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "mark email verified", query, id)
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete user", `DELETE FROM users WHERE id = $1`, id)
}

func (r *repository) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

// List returns up to PageSize users with email greater than After, in
// ascending email order.
func (r *repository) List(ctx context.Context, params ListUsersParams) ([]User, error) {
	params.Normalize()

	var conditions []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.After != "" {
		conditions = append(conditions, "email > "+next(params.After))
	}
	if params.Search != "" {
		p := next("%" + escapeLike(params.Search) + "%")
		conditions = append(conditions, fmt.Sprintf("(email ILIKE %s OR name ILIKE %s)", p, p))
	}
	if params.Role != "" {
		conditions = append(conditions, "role = "+next(params.Role))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT%s
		FROM users
		%s
		ORDER BY email ASC
		LIMIT %s`, userColumns, where, next(params.PageSize))

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

func (r *repository) CountByRole(ctx context.Context) (RoleCounts, error) {
	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE role = $1) AS admins
		FROM users`

	var counts RoleCounts
	if err := r.db.GetContext(ctx, &counts, query, role.Admin); err != nil {
		return RoleCounts{}, fmt.Errorf("count users: %w", err)
	}

	return counts, nil
}

func (r *repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, strings.ToLower(email)); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return exists, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
