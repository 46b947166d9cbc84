package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenTTL applies when a caller does not request a lifetime.
	DefaultTokenTTL = time.Hour
	// SessionTokenTTL is the lifetime minted at login and register.
	SessionTokenTTL = 24 * time.Hour
)

// Claims is the signed token payload. Wire-compatible with the existing
// clients: user_id, email, role, name plus the registered iat/exp/nbf/jti.
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Codec mints and verifies compact HS256 tokens. Operations are pure
// functions of their inputs, the process-wide secret and the clock, so a
// single Codec is safe for unrestricted concurrent use.
type Codec struct {
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	denylist Denylist
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithTTL overrides the default token lifetime.
func WithTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// WithDenylist enables revocation checks against the given denylist.
func WithDenylist(d Denylist) CodecOption {
	return func(c *Codec) {
		c.denylist = d
	}
}

// NewCodec constructs a Codec. The secret must be configured; there is no
// silent fallback here. Development defaults live in the config layer
// behind an explicit flag.
func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is not configured")
	}
	c := &Codec{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Mint signs the claims with a fresh jti and the standard time fields:
// iat = nbf = now, exp = now + ttl. A non-positive ttl selects the default.
func (c *Codec) Mint(claims Claims, ttl time.Duration) (string, error) {
	if claims.UserID <= 0 {
		return "", fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if _, err := ParseRole(claims.Role); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	jti, err := newTokenID()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	now := c.now().UTC().Truncate(time.Second)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.ID = jti

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks a compact token and returns its claims. The signature is
// recomputed and compared in constant time before the payload is parsed, so
// a forged token learns nothing about claim handling.
func (c *Codec) Verify(ctx context.Context, token string) (*Claims, error) {
	segments := strings.Split(strings.TrimSpace(token), ".")
	if len(segments) != 3 {
		return nil, ErrMalformedToken
	}
	for _, seg := range segments {
		if seg == "" {
			return nil, ErrMalformedToken
		}
	}
	signature, err := base64.RawURLEncoding.DecodeString(segments[2])
	if err != nil {
		return nil, ErrMalformedToken
	}

	signingString := segments[0] + "." + segments[1]
	expected := hmacSign([]byte(signingString), c.secret)
	if subtle.ConstantTimeCompare(signature, expected) != 1 {
		return nil, ErrBadSignature
	}

	payload, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return nil, ErrMalformedToken
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrMalformedToken
	}
	if claims.UserID <= 0 || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrMalformedToken
	}
	if !Role(claims.Role).Valid() {
		return nil, fmt.Errorf("%w: unrecognized role", ErrMalformedToken)
	}

	now := c.now()
	if now.After(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return nil, ErrTokenNotYetValid
	}

	if c.denylist != nil && claims.ID != "" {
		revoked, err := c.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check denylist: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return &claims, nil
}

// Refresh verifies the token and mints a replacement carrying the same
// identity claims with fresh time fields and a fresh jti. The old token is
// not revoked; it simply ages out at its own expiry.
func (c *Codec) Refresh(ctx context.Context, token string, ttl time.Duration) (string, error) {
	claims, err := c.Verify(ctx, token)
	if err != nil {
		return "", err
	}
	fresh := Claims{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
		Name:   claims.Name,
	}
	return c.Mint(fresh, ttl)
}

func newTokenID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}

func hmacSign(data []byte, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	return mac.Sum(nil)
}
