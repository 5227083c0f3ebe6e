// AngelaMos | 2026
// repository.go

package enquiry

import (
	"context"
	"fmt"
	"time"

	"github.com/nfphealth/nfp-backend/internal/core"
)

const (
	DefaultListLimit = 200
	MaxListLimit     = 1000
)

type Repository interface {
	Create(ctx context.Context, e *Enquiry) error
	List(ctx context.Context, limit int) ([]Enquiry, error)
	ExistsRecent(
		ctx context.Context,
		email, program string,
		since time.Time,
	) (bool, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, e *Enquiry) error {
	query := `
		INSERT INTO enquiries (id, name, email, program, message, consent)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	consent := e.Consent != nil && *e.Consent

	err := r.db.GetContext(ctx, &e.CreatedAt, query,
		e.ID,
		e.Name,
		e.Email,
		e.Program,
		e.Message,
		consent,
	)
	if err != nil {
		return fmt.Errorf("create enquiry: %w: %w", core.ErrStorage, err)
	}

	return nil
}

// ClampLimit applies the default and the hard cap to a requested page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func (r *repository) List(ctx context.Context, limit int) ([]Enquiry, error) {
	query := `
		SELECT id, name, email, program, message, consent, created_at
		FROM enquiries
		ORDER BY created_at DESC
		LIMIT $1`

	var items []Enquiry
	if err := r.db.SelectContext(ctx, &items, query, ClampLimit(limit)); err != nil {
		return nil, fmt.Errorf("list enquiries: %w", err)
	}

	for i := range items {
		items[i].Topic = items[i].Program
		items[i].Source = SourceCloud
	}

	return items, nil
}

func (r *repository) ExistsRecent(
	ctx context.Context,
	email, program string,
	since time.Time,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM enquiries
			WHERE email = $1 AND program = $2 AND created_at > $3
		)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email, program, since); err != nil {
		return false, fmt.Errorf("check recent enquiry: %w", err)
	}

	return exists, nil
}

func (r *repository) CountSince(
	ctx context.Context,
	since time.Time,
) (int, error) {
	query := `SELECT COUNT(*) FROM enquiries WHERE created_at >= $1`

	var count int
	if err := r.db.GetContext(ctx, &count, query, since); err != nil {
		return 0, fmt.Errorf("count enquiries: %w", err)
	}

	return count, nil
}
