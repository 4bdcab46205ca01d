package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 30*time.Minute)

	session, err := tm.GenerateToken("user-1", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, session.TokenID)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), session.ExpiresAt, 5*time.Second)

	claims, err := tm.ParseToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, session.TokenID, claims.ID)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	session, err := tm.GenerateToken("user-1", "alice")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokenManager("other", time.Minute).ParseToken(session.Token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenManager("secret", time.Minute)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.ParseToken(session.Token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tm.ParseToken("not-a-jwt")
		assert.Error(t, err)
	})
}

func TestNewTokenManager_DefaultTTL(t *testing.T) {
	assert.Equal(t, time.Hour, NewTokenManager("s", 0).TTL())
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pw123", 4)
	require.NoError(t, err)
	assert.NotEqual(t, "pw123", hash)

	assert.NoError(t, ComparePassword(hash, "pw123"))
	assert.Error(t, ComparePassword(hash, "wrong"))
}

func TestPasswordHashing_CostOutOfRange(t *testing.T) {
	hash, err := HashPassword("pw123", 99)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "pw123"))
}

func TestRedisRevocationStore_Unconfigured(t *testing.T) {
	var store *RedisRevocationStore
	revoked, err := store.IsRevoked(context.Background(), "id")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Error(t, store.Revoke(context.Background(), "id", time.Now().Add(time.Minute)))
}
