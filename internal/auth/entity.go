// AngelaMos | 2026
// entity.go

package auth

import (
	"fmt"
	"time"

	"github.com/nfphealth/nfp-backend/internal/core"
)

// RefreshToken is one login session. Only the hash of the token handed to
// the client is stored.
type RefreshToken struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	TokenHash    string     `db:"token_hash"`
	FamilyID     string     `db:"family_id"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	IsUsed       bool       `db:"is_used"`
	UsedAt       *time.Time `db:"used_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`
}

// Usable returns nil when the token may be exchanged at now. A used token
// yields ErrTokenReuse so the caller can revoke its family.
func (t *RefreshToken) Usable(now time.Time) error {
	switch {
	case t.IsUsed:
		return ErrTokenReuse
	case t.RevokedAt != nil:
		return fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
	case !now.Before(t.ExpiresAt):
		return fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}
	return nil
}

func (t *RefreshToken) session() SessionInfo {
	return SessionInfo{
		ID:        t.ID,
		UserAgent: t.UserAgent,
		IPAddress: t.IPAddress,
		CreatedAt: t.CreatedAt,
		ExpiresAt: t.ExpiresAt,
	}
}
