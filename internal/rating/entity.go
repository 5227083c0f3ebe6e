// AngelaMos | 2026
// entity.go

package rating

import (
	"time"
)

// Rating is unique per (ProgramID, UserID); later submissions replace the
// stars and comment in place.
type Rating struct {
	ProgramID string    `db:"program_id"`
	UserID    string    `db:"user_id"`
	Stars     int       `db:"stars"`
	Comment   string    `db:"comment"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type Summary struct {
	ProgramID string  `json:"programId"`
	Count     int     `json:"count"`
	Avg       float64 `json:"avg"`
	My        int     `json:"my,omitempty"`
}
