// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/mailer"
	"github.com/nfphealth/nfp-backend/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrEmailExists        = errors.New("email already exists")
)

const (
	blacklistPrefix = "auth:blacklist:"
	verifyPrefix    = "auth:verify:"
	verifyTTL       = 24 * time.Hour
)

// Account is the slice of a user record the auth flows need.
type Account struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	Role          string
	TokenVersion  int
	EmailVerified bool
}

// Accounts is implemented by the user service. Create assigns the role.
type Accounts interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, email, passwordHash, name string) (*Account, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	MarkEmailVerified(ctx context.Context, userID string) error
}

type Service struct {
	repo     Repository
	jwt      *JWTManager
	accounts Accounts
	redis    redis.Cmdable
	logger   *slog.Logger

	mailer    mailer.Sender
	verifyURL string
	signature string
}

type Option func(*Service)

// WithVerificationMail enables verification links after registration.
func WithVerificationMail(m mailer.Sender, verifyURL, signature string) Option {
	return func(s *Service) {
		s.mailer = m
		s.verifyURL = verifyURL
		s.signature = signature
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService wires the auth flows. rdb may be nil, which disables access
// token revocation and email verification.
func NewService(
	repo Repository,
	jwt *JWTManager,
	accounts Accounts,
	rdb redis.Cmdable,
	opts ...Option,
) *Service {
	s := &Service{
		repo:     repo,
		jwt:      jwt,
		accounts: accounts,
		redis:    rdb,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	account, err := s.accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // always hash so unknown emails take as long as known ones
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(req.Password, &account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	if newHash != "" {
		core.BestEffort(ctx, s.logger, "password rehash", func(ctx context.Context) error {
			return s.accounts.UpdatePassword(ctx, account.ID, newHash)
		})
	}

	return s.issue(ctx, account, userAgent, ipAddress, "", nil)
}

// Register creates an account and signs it in. The role comes from the
// account store; a verification link is mailed when mail is configured.
func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.accounts.Create(ctx, req.Email, passwordHash, req.Name)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.logger.InfoContext(ctx, "account registered",
		"user_id", account.ID,
		"role", account.Role,
	)

	if s.mailer != nil && s.redis != nil {
		core.BestEffort(ctx, s.logger, "verification email", func(ctx context.Context) error {
			return s.sendVerification(ctx, account)
		})
	}

	return s.issue(ctx, account, userAgent, ipAddress, "", nil)
}

func (s *Service) sendVerification(ctx context.Context, account *Account) error {
	token, hash, err := core.NewOpaqueToken()
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, verifyPrefix+hash, account.ID, verifyTTL).Err(); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}

	link := s.verifyURL + "?" + url.Values{"token": {token}}.Encode()
	return s.mailer.Send(ctx, mailer.Verification(account.Email, account.Name, link, s.signature))
}

// VerifyEmail consumes a verification token. Tokens are single use.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*Account, error) {
	if s.redis == nil || token == "" {
		return nil, fmt.Errorf("verify email: %w", core.ErrTokenInvalid)
	}

	userID, err := s.redis.GetDel(ctx, verifyPrefix+core.HashToken(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("verify email: %w", core.ErrTokenInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("verify email: %w", err)
	}

	if err := s.accounts.MarkEmailVerified(ctx, userID); err != nil {
		return nil, fmt.Errorf("verify email: %w", err)
	}

	return s.accounts.GetByID(ctx, userID)
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	if err := stored.Usable(time.Now()); err != nil {
		if errors.Is(err, ErrTokenReuse) {
			s.logger.WarnContext(ctx, "refresh token reuse, revoking family",
				"user_id", stored.UserID,
				"family_id", stored.FamilyID,
			)
			core.BestEffort(ctx, s.logger, "revoke token family", func(ctx context.Context) error {
				return s.repo.RevokeByFamilyID(ctx, stored.FamilyID)
			})
		}
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	return s.issue(ctx, account, userAgent, ipAddress, stored.FamilyID, &stored.ID)
}

// Logout revokes the session behind refreshToken and, when given, the
// access token in use.
func (s *Service) Logout(
	ctx context.Context,
	refreshToken string,
	claims *middleware.AccessTokenClaims,
) error {
	if claims != nil {
		if err := s.RevokeAccessToken(ctx, claims.ID, claims.ExpiresAt); err != nil {
			return err
		}
	}

	if refreshToken == "" {
		return nil
	}

	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find token: %w", err)
	}

	if claims != nil && stored.UserID != claims.UserID {
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, stored.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	if err := s.accounts.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	return nil
}

func (s *Service) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if s.redis == nil || jti == "" || ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, blacklistPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	return nil
}

func (s *Service) isBlacklisted(ctx context.Context, jti string) (bool, error) {
	if s.redis == nil || jti == "" {
		return false, nil
	}

	n, err := s.redis.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return n > 0, nil
}

// VerifyAccessToken parses token and rejects it when it was logged out or
// issued before the account's current token version.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.ParseAccessToken(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.isBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	account, err := s.accounts.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("verify token: %w", err)
	}

	if claims.TokenVersion < account.TokenVersion {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	// role changes take effect without waiting for the token to expire
	claims.Role = account.Role
	return claims, nil
}

func (s *Service) Sessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	tokens, err := s.repo.ActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for i := range tokens {
		sessions = append(sessions, tokens[i].session())
	}

	return sessions, nil
}

func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	token, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	if token.UserID != userID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword string,
) error {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	valid, _, err := core.VerifyPasswordWithRehash(currentPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return ErrInvalidCredentials
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return s.LogoutAll(ctx, userID)
}

func (s *Service) CurrentUser(ctx context.Context, userID string) (*UserResponse, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(account)
	return &resp, nil
}

// PurgeExpired deletes sessions that expired more than a day ago.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, time.Now().Add(-24*time.Hour))
}

func (s *Service) issue(
	ctx context.Context,
	account *Account,
	userAgent, ipAddress, familyID string,
	oldTokenID *string,
) (*AuthResponse, error) {
	claims := &middleware.AccessTokenClaims{
		UserID:       account.ID,
		Email:        account.Email,
		Role:         account.Role,
		TokenVersion: account.TokenVersion,
	}

	accessToken, err := s.jwt.CreateAccessToken(claims)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refresh, err := s.jwt.CreateRefreshToken(familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	newTokenID := uuid.New().String()

	if err := s.repo.Create(ctx, &RefreshToken{
		ID:        newTokenID,
		UserID:    account.ID,
		TokenHash: refresh.Hash,
		FamilyID:  refresh.FamilyID,
		ExpiresAt: refresh.ExpiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	if oldTokenID != nil {
		core.BestEffort(ctx, s.logger, "mark refresh token used", func(ctx context.Context) error {
			return s.repo.MarkAsUsed(ctx, *oldTokenID, newTokenID)
		})
	}

	return &AuthResponse{
		User: toUserResponse(account),
		Tokens: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refresh.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(s.jwt.AccessTTL() / time.Second),
			ExpiresAt:    claims.ExpiresAt,
		},
	}, nil
}

func toUserResponse(a *Account) UserResponse {
	return UserResponse{
		ID:            a.ID,
		Email:         a.Email,
		Name:          a.Name,
		Role:          a.Role,
		EmailVerified: a.EmailVerified,
	}
}
