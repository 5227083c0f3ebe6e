// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/nfphealth/nfp-backend/internal/role"
)

type User struct {
	ID              string     `db:"id"`
	Email           string     `db:"email"`
	PasswordHash    string     `db:"password_hash"`
	Name            string     `db:"name"`
	Role            string     `db:"role"`
	TokenVersion    int        `db:"token_version"`
	EmailVerifiedAt *time.Time `db:"email_verified_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return role.Normalize(u.Role) == role.Admin
}

func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

// RoleCounts is the population split used by the admin dashboard.
type RoleCounts struct {
	Total  int `db:"total"`
	Admins int `db:"admins"`
}

// Members never goes negative, even if the two counts were read at
// different moments.
func (c RoleCounts) Members() int {
	return max(c.Total-c.Admins, 0)
}
