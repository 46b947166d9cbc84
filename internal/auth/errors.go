package auth

import "errors"

var (
	// Token verification failures. Ordering matters: signature problems are
	// reported before any payload inspection.
	ErrMalformedToken   = errors.New("auth: malformed token")
	ErrBadSignature     = errors.New("auth: bad token signature")
	ErrTokenExpired     = errors.New("auth: token expired")
	ErrTokenNotYetValid = errors.New("auth: token not yet valid")
	ErrTokenRevoked     = errors.New("auth: token revoked")

	// Authorization failures.
	ErrIdentityNotFound       = errors.New("auth: identity not found")
	ErrInsufficientPermission = errors.New("auth: insufficient permissions")
	ErrNotResourceOwner       = errors.New("auth: not the resource owner")

	// Account operations.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrNotFound           = errors.New("auth: not found")
	ErrAlreadyExists      = errors.New("auth: already exists")
)
