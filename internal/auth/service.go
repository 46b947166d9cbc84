package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service drives the account-facing token lifecycle: login, register,
// refresh and logout. Route-level checks live in Engine; this layer only
// authenticates credentials and mints sessions.
type Service struct {
	users      UserStore
	codec      *Codec
	denylist   Denylist
	sessionTTL time.Duration
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithSessionTTL overrides the session token lifetime (default 24h).
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithServiceDenylist enables server-side logout via a token denylist.
func WithServiceDenylist(d Denylist) ServiceOption {
	return func(s *Service) {
		s.denylist = d
	}
}

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(users UserStore, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	s := &Service{
		users:      users,
		codec:      codec,
		sessionTTL: SessionTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Session is a freshly minted token with its owning identity.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  Identity
}

// Login authenticates credentials and mints a session token. Every failure
// path collapses into ErrInvalidCredentials so responses do not reveal
// whether the email exists.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}
	if user.Status != UserStatusActive {
		return Session{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.mintSession(user)
}

// Register creates an account and logs it in.
func (s *Service) Register(ctx context.Context, email, password, name string, role Role) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return Session{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(password) < 8 {
		return Session{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Session{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !role.Valid() {
		return Session{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, string(role))
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Session{}, err
	}
	user := &User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		DisplayName:  name,
		Status:       UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return Session{}, err
	}
	return s.mintSession(user)
}

// Refresh supersedes the presented token with a fresh one carrying the same
// identity. The caller must still hold a currently valid token.
func (s *Service) Refresh(ctx context.Context, token string) (Session, error) {
	claims, err := s.codec.Verify(ctx, token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.users.Find(ctx, claims.UserID)
	if err != nil {
		return Session{}, ErrIdentityNotFound
	}
	if user.Status != UserStatusActive {
		return Session{}, ErrIdentityNotFound
	}
	return s.mintSession(user)
}

// Logout revokes the presented token's jti for its remaining lifetime. With
// no denylist configured this is a deliberate no-op: the token stays valid
// until expiry and logout remains a client-side convention.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.codec.Verify(ctx, token)
	if err != nil {
		return err
	}
	if s.denylist == nil {
		return nil
	}
	remaining := claims.ExpiresAt.Time.Sub(s.now())
	return s.denylist.Revoke(ctx, claims.ID, remaining)
}

func (s *Service) mintSession(user *User) (Session, error) {
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
		Name:   user.DisplayName,
	}
	token, err := s.codec.Mint(claims, s.sessionTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		ExpiresAt: s.now().UTC().Add(s.sessionTTL),
		Identity:  user.Identity(),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
