// AngelaMos | 2026
// repository.go

package rating

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nfphealth/nfp-backend/internal/core"
)

type Repository interface {
	Upsert(ctx context.Context, r *Rating) error
	Summary(ctx context.Context, programID string) (Summary, error)
	StarsFor(ctx context.Context, programID, userID string) (int, error)
	Average(ctx context.Context) (float64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Upsert(ctx context.Context, rt *Rating) error {
	query := `
		INSERT INTO ratings (program_id, user_id, stars, comment)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (program_id, user_id) DO UPDATE
		SET stars = EXCLUDED.stars,
		    comment = EXCLUDED.comment,
		    updated_at = NOW()
		RETURNING created_at, updated_at`

	row := struct {
		CreatedAt sql.NullTime `db:"created_at"`
		UpdatedAt sql.NullTime `db:"updated_at"`
	}{}

	err := r.db.GetContext(ctx, &row, query,
		rt.ProgramID,
		rt.UserID,
		rt.Stars,
		rt.Comment,
	)
	if err != nil {
		return fmt.Errorf("upsert rating: %w: %w", core.ErrStorage, err)
	}

	rt.CreatedAt = row.CreatedAt.Time
	rt.UpdatedAt = row.UpdatedAt.Time
	return nil
}

func (r *repository) Summary(
	ctx context.Context,
	programID string,
) (Summary, error) {
	query := `
		SELECT COUNT(*) AS count, COALESCE(AVG(stars), 0)::float8 AS avg
		FROM ratings
		WHERE program_id = $1`

	var row struct {
		Count int     `db:"count"`
		Avg   float64 `db:"avg"`
	}
	if err := r.db.GetContext(ctx, &row, query, programID); err != nil {
		return Summary{}, fmt.Errorf("rating summary: %w", err)
	}

	return Summary{ProgramID: programID, Count: row.Count, Avg: row.Avg}, nil
}

func (r *repository) StarsFor(
	ctx context.Context,
	programID, userID string,
) (int, error) {
	query := `SELECT stars FROM ratings WHERE program_id = $1 AND user_id = $2`

	var stars int
	err := r.db.GetContext(ctx, &stars, query, programID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rating for user: %w", err)
	}

	return stars, nil
}

// Average is the mean over every stored rating, 0 when there are none.
func (r *repository) Average(ctx context.Context) (float64, error) {
	query := `SELECT COALESCE(AVG(stars), 0)::float8 FROM ratings`

	var avg float64
	if err := r.db.GetContext(ctx, &avg, query); err != nil {
		return 0, fmt.Errorf("average rating: %w", err)
	}

	return avg, nil
}
