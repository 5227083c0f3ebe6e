// AngelaMos | 2026
// session.go

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/events"
	"github.com/nfphealth/nfp-backend/internal/role"
)

// Identity is an authenticated principal as reported by the provider.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Profile is the stored user document. Roles accepts both the scalar and
// the array shape.
type Profile struct {
	ID            string        `json:"id"`
	Email         string        `json:"email"`
	Name          string        `json:"name"`
	EmailVerified bool          `json:"email_verified"`
	Roles         role.Document `json:"-"`
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	type alias Profile
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &a.Roles); err != nil {
		return err
	}
	*p = Profile(a)
	return nil
}

func (p Profile) MarshalJSON() ([]byte, error) {
	type alias Profile
	return json.Marshal(struct {
		alias
		Role  string   `json:"role,omitempty"`
		Roles []string `json:"roles,omitempty"`
	}{alias(p), p.Roles.Role, p.Roles.Roles})
}

// Provider authenticates principals.
type Provider interface {
	Register(ctx context.Context, name, email, password string) (*Identity, string, error)
	Login(ctx context.Context, email, password string) (*Identity, error)
	Logout(ctx context.Context) error
}

// ProfileStore reads and updates stored profiles. Profile returns nil, nil
// when the identity has no profile.
type ProfileStore interface {
	Profile(ctx context.Context, id string) (*Profile, error)
	SetUserRole(ctx context.Context, email, role string) error
}

// State is a snapshot handed to subscribers.
type State struct {
	Ready    bool
	Identity *Identity
	Role     string
	Profile  *Profile
}

// Session holds the resolved identity and role for one process. Role and
// profile are reset on every identity change and re-derived from the
// stored profile.
type Session struct {
	provider    Provider
	profiles    ProfileStore
	bus         *events.Bus
	logger      *slog.Logger
	adminDomain string

	mu       sync.RWMutex
	identity *Identity
	role     string
	profile  *Profile
	gen      uint64

	ready     chan struct{}
	readyOnce sync.Once
}

type Option func(*Session)

func WithBus(b *events.Bus) Option {
	return func(s *Session) { s.bus = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithAdminDomain(domain string) Option {
	return func(s *Session) { s.adminDomain = domain }
}

func New(provider Provider, profiles ProfileStore, opts ...Option) *Session {
	s := &Session{
		provider: provider,
		profiles: profiles,
		role:     role.Member,
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.bus == nil {
		s.bus = events.NewBus(s.logger)
	}
	return s
}

// HandleIdentityChange applies a new identity, or nil for signed out. A
// profile load failure leaves the role at member. The ready latch closes
// after the first call regardless of outcome.
func (s *Session) HandleIdentityChange(ctx context.Context, id *Identity) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.identity = id
	s.role = role.Member
	s.profile = nil
	s.mu.Unlock()

	var loadErr error
	if id != nil && s.profiles != nil {
		profile, err := s.profiles.Profile(ctx, id.ID)
		if err != nil {
			loadErr = fmt.Errorf("load profile: %w", err)
			s.logger.WarnContext(ctx, "profile load failed, using member role",
				"user_id", id.ID,
				"error", err,
			)
		} else if profile != nil {
			s.mu.Lock()
			if s.gen == gen {
				s.profile = profile
				s.role = profile.Roles.Primary()
			}
			s.mu.Unlock()
		}
	}

	s.readyOnce.Do(func() { close(s.ready) })
	s.publish(ctx)
	return loadErr
}

// Ready is closed once the first identity resolution has finished.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

// IsAuthorized reports whether the current identity holds any of allowed.
// No allowed roles means no restriction. Held roles are the profile's
// roles plus the current role.
func (s *Session) IsAuthorized(allowed ...string) bool {
	if len(role.NewSet(allowed...)) == 0 {
		return true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.identity == nil {
		return false
	}

	held := role.NewSet(s.role)
	if s.profile != nil {
		for _, r := range s.profile.Roles.Roles {
			held[role.Normalize(r)] = struct{}{}
		}
	}
	return role.Authorized(held, allowed...)
}

func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Identity: s.identity,
		Role:     s.role,
		Profile:  s.profile,
	}
	select {
	case <-s.ready:
		st.Ready = true
	default:
	}
	return st
}

// Register creates an account and signs it in. The returned role is the one
// assigned at creation.
func (s *Session) Register(
	ctx context.Context,
	name, email, password string,
) (*Identity, string, error) {
	id, assigned, err := s.provider.Register(ctx, name, email, password)
	if err != nil {
		return nil, "", err
	}

	if err := s.HandleIdentityChange(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "post-registration profile load failed", "error", err)
	}
	return id, role.Normalize(assigned), nil
}

func (s *Session) Login(ctx context.Context, email, password string) (*Identity, error) {
	id, err := s.provider.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.HandleIdentityChange(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "post-login profile load failed", "error", err)
	}
	return id, nil
}

func (s *Session) Logout(ctx context.Context) error {
	if err := s.provider.Logout(ctx); err != nil {
		return err
	}
	return s.HandleIdentityChange(ctx, nil)
}

// SetUserRole changes a stored role by email. Accounts in the admin domain
// cannot be moved off admin.
func (s *Session) SetUserRole(ctx context.Context, email, next string) error {
	mail := strings.ToLower(strings.TrimSpace(email))
	next = role.Normalize(next)
	if next == "" {
		next = role.Member
	}

	if next != role.Admin && role.IsAdminEmail(mail, s.adminDomain) {
		return fmt.Errorf(
			"accounts in @%s must stay admin: %w", s.adminDomain, core.ErrForbidden)
	}

	if err := s.profiles.SetUserRole(ctx, mail, next); err != nil {
		return err
	}

	s.mu.Lock()
	current := s.identity != nil && strings.EqualFold(s.identity.Email, mail)
	if current {
		s.role = next
		if s.profile != nil {
			s.profile.Roles = role.Document{Role: next}
		}
	}
	s.mu.Unlock()

	if current {
		s.publish(ctx)
	}
	return nil
}

// Subscribe calls fn with a snapshot after each resolved change. The
// returned func unsubscribes.
func (s *Session) Subscribe(fn func(State)) func() {
	return s.bus.Subscribe(events.SessionChanged, func(_ context.Context, payload any) {
		if st, ok := payload.(State); ok {
			fn(st)
		}
	})
}

func (s *Session) publish(ctx context.Context) {
	s.bus.Publish(ctx, events.SessionChanged, s.Snapshot())
}
