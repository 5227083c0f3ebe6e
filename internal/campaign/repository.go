// AngelaMos | 2026
// repository.go

package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nfphealth/nfp-backend/internal/core"
)

// Log records one bulk send. Recipients are stored comma-joined.
type Log struct {
	ID         string    `db:"id"`
	Recipients string    `db:"recipients"`
	Preview    string    `db:"preview"`
	CreatedAt  time.Time `db:"created_at"`
}

func (l Log) To() []string {
	if l.Recipients == "" {
		return nil
	}
	return strings.Split(l.Recipients, ",")
}

type Repository interface {
	Create(ctx context.Context, l *Log) error
	List(ctx context.Context, limit, offset int) ([]Log, error)
	Count(ctx context.Context) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, l *Log) error {
	query := `
		INSERT INTO email_logs (id, recipients, preview)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	if err := r.db.GetContext(ctx, &l.CreatedAt, query, l.ID, l.Recipients, l.Preview); err != nil {
		return fmt.Errorf("create email log: %w: %w", core.ErrStorage, err)
	}
	return nil
}

// List returns logs newest first.
func (r *repository) List(ctx context.Context, limit, offset int) ([]Log, error) {
	query := `
		SELECT id, recipients, preview, created_at
		FROM email_logs
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`

	var logs []Log
	if err := r.db.SelectContext(ctx, &logs, query, limit, offset); err != nil {
		return nil, fmt.Errorf("list email logs: %w: %w", core.ErrStorage, err)
	}
	return logs, nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM email_logs`); err != nil {
		return 0, fmt.Errorf("count email logs: %w: %w", core.ErrStorage, err)
	}
	return n, nil
}
