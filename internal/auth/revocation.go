package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "helpdesk:revoked:"

// RevocationStore remembers logged-out session ids until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevocationStore keeps revoked ids as expiring Redis keys.
type RedisRevocationStore struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisRevocationStore wraps a Redis client.
func NewRedisRevocationStore(client redis.Cmdable) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, now: time.Now}
}

// Revoke stores the id with a TTL matching the token's remaining lifetime.
func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if s == nil || s.client == nil {
		return errors.New("revocation store not configured")
	}
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether the id was revoked. A nil store never revokes.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s == nil || s.client == nil {
		return false, nil
	}
	n, err := s.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
