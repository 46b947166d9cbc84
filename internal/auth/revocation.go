package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records revoked token ids until their natural expiry. Logout is
// only enforceable server-side when a denylist is configured; without one it
// remains a client-side convention.
type Denylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisDenylist keeps revoked jtis in Redis, each keyed entry expiring with
// the remaining token lifetime so the set never outgrows live tokens.
type RedisDenylist struct {
	client *redis.Client
	prefix string
}

// NewRedisDenylist wraps an existing Redis client.
func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client, prefix: "auth:revoked:"}
}

func (d *RedisDenylist) key(jti string) string {
	return d.prefix + jti
}

// Revoke marks the jti revoked for ttl. A non-positive ttl means the token
// already expired and there is nothing to record.
func (d *RedisDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, d.key(jti), "revoked", ttl).Err()
}

// IsRevoked reports whether the jti is on the denylist.
func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
