// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nfphealth/nfp-backend/internal/auth"
	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/role"
)

type Service struct {
	repo        Repository
	db          core.TxBeginner
	adminDomain string
	logger      *slog.Logger
}

type Option func(*Service)

// WithTx runs role changes inside a transaction that locks the user row.
func WithTx(db core.TxBeginner) Option {
	return func(s *Service) { s.db = db }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(repo Repository, adminDomain string, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		adminDomain: adminDomain,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) GetByID(ctx context.Context, id string) (*auth.Account, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toAccount(u), nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return toAccount(u), nil
}

// Create stores a new account. The role is decided here, once, from the
// admin email domain.
func (s *Service) Create(
	ctx context.Context,
	email, passwordHash, name string,
) (*auth.Account, error) {
	email = normalizeEmail(email)

	u := &User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(name),
		Role:         role.ForEmail(email, s.adminDomain),
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	return toAccount(u), nil
}

func (s *Service) IncrementTokenVersion(ctx context.Context, userID string) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) MarkEmailVerified(ctx context.Context, userID string) error {
	return s.repo.MarkEmailVerified(ctx, userID)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

// checkRole normalizes next and applies the domain lock: admin-domain
// accounts cannot hold any role other than admin.
func (s *Service) checkRole(email, next string) (string, error) {
	next = role.Normalize(next)
	if !role.Valid(next) {
		return "", fmt.Errorf("set role: invalid role %q: %w", next, core.ErrInvalidInput)
	}
	if next != role.Admin && role.IsAdminEmail(email, s.adminDomain) {
		return "", fmt.Errorf(
			"set role: accounts in @%s must stay admin: %w", s.adminDomain, core.ErrForbidden)
	}
	return next, nil
}

// SetRoleByEmail changes the stored role of the account with email. The
// stored role is left untouched when the change is rejected.
func (s *Service) SetRoleByEmail(ctx context.Context, email, next string) (*User, error) {
	email = normalizeEmail(email)

	next, err := s.checkRole(email, next)
	if err != nil {
		return nil, err
	}

	var updated *User
	apply := func(repo Repository) error {
		u, err := repo.LockByEmail(ctx, email)
		if err != nil {
			return err
		}
		if u.Role != next {
			u.Role = next
			if err := repo.Update(ctx, u); err != nil {
				return err
			}
		}
		updated = u
		return nil
	}

	if s.db == nil {
		err = apply(s.repo)
	} else {
		err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
			return apply(NewRepository(tx))
		})
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user role changed",
		"user_id", updated.ID,
		"role", updated.Role,
	)
	return updated, nil
}

func (s *Service) UpdateUserRole(ctx context.Context, id, next string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.SetRoleByEmail(ctx, u.Email, next)
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, params ListUsersParams) (UserPage, error) {
	params.Normalize()

	users, err := s.repo.List(ctx, params)
	if err != nil {
		return UserPage{}, err
	}

	return toPage(users, params.PageSize), nil
}

func (s *Service) CountByRole(ctx context.Context) (RoleCounts, error) {
	return s.repo.CountByRole(ctx)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateMe(ctx context.Context, userID string, req UpdateUserRequest) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}
	return s.UpdateUser(ctx, userID, req)
}

func (s *Service) DeleteMe(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("delete me: %w", core.ErrUnauthorized)
	}
	return s.repo.Delete(ctx, userID)
}

// CanDeleteUser lets users delete themselves and admins delete members.
func (s *Service) CanDeleteUser(ctx context.Context, requesterID, targetID string) error {
	if requesterID == targetID {
		return nil
	}

	requester, err := s.repo.GetByID(ctx, requesterID)
	if err != nil {
		return err
	}
	if !requester.IsAdmin() {
		return fmt.Errorf("delete user: %w", core.ErrForbidden)
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.IsAdmin() {
		return fmt.Errorf("cannot delete admin users: %w", core.ErrForbidden)
	}

	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toAccount(u *User) *auth.Account {
	return &auth.Account{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		PasswordHash:  u.PasswordHash,
		Role:          u.Role,
		TokenVersion:  u.TokenVersion,
		EmailVerified: u.EmailVerified(),
	}
}

var _ auth.Accounts = (*Service)(nil)
