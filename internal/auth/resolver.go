package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// Resolver turns request headers into an authenticated identity. The token
// signature alone is not trusted: the referenced user is re-fetched from the
// store on every call, so deleted or disabled accounts lose access the
// moment the row changes, and the effective role always comes from storage.
type Resolver struct {
	codec *Codec
	users UserStore
}

// NewResolver constructs a Resolver.
func NewResolver(codec *Codec, users UserStore) (*Resolver, error) {
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	return &Resolver{codec: codec, users: users}, nil
}

// Resolve extracts and verifies the bearer token, then confirms the claimed
// identity still exists. The user-store lookup is the only potentially slow
// call in the auth path; the caller's request context bounds it.
func (r *Resolver) Resolve(ctx context.Context, header http.Header) (Identity, *Claims, error) {
	token, err := ExtractBearerToken(header.Get("Authorization"))
	if err != nil {
		return Identity{}, nil, err
	}
	claims, err := r.codec.Verify(ctx, token)
	if err != nil {
		return Identity{}, nil, err
	}
	user, err := r.users.Find(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, nil, ErrIdentityNotFound
		}
		return Identity{}, nil, fmt.Errorf("%w: user lookup failed", ErrIdentityNotFound)
	}
	if user.Status != UserStatusActive {
		return Identity{}, nil, ErrIdentityNotFound
	}
	return user.Identity(), claims, nil
}

// ExtractBearerToken pulls the token out of an Authorization header value.
// The scheme match is case-insensitive.
func ExtractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", fmt.Errorf("%w: missing bearer token", ErrMalformedToken)
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", fmt.Errorf("%w: invalid authorization scheme", ErrMalformedToken)
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", fmt.Errorf("%w: missing bearer token", ErrMalformedToken)
	}
	return token, nil
}
