// AngelaMos | 2026
// dto.go

package user

import (
	"strings"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

type UpdateUserRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
}

type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

type SetRoleByEmailRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Role  string `json:"role"  validate:"required"`
}

type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserPage is one page of the admin listing. Cursor is the last email on
// the page and is empty once the listing is exhausted.
type UserPage struct {
	Items  []UserResponse `json:"items"`
	Cursor string         `json:"cursor,omitempty"`
}

// ListUsersParams pages through users in ascending email order.
type ListUsersParams struct {
	After    string
	PageSize int
	Search   string
	Role     string
}

func (p *ListUsersParams) Normalize() {
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	p.After = strings.ToLower(strings.TrimSpace(p.After))
	p.Search = strings.TrimSpace(p.Search)
	p.Role = strings.ToLower(strings.TrimSpace(p.Role))
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		EmailVerified: u.EmailVerified(),
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func toPage(users []User, pageSize int) UserPage {
	items := make([]UserResponse, 0, len(users))
	for i := range users {
		items = append(items, ToUserResponse(&users[i]))
	}

	page := UserPage{Items: items}
	if len(users) == pageSize && pageSize > 0 {
		page.Cursor = users[len(users)-1].Email
	}
	return page
}
