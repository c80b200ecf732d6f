package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	redisStore, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return redisStore, s
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	redisStore, s := setupTestRedis(t)
	defer redisStore.Close()
	defer s.Close()

	ctx := context.Background()
	if err := redisStore.SaveRefreshSession(ctx, "hash-1", "user_123", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	user, err := redisStore.LookupRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if user.ID != "user_123" {
		t.Fatalf("expected user_123, got %s", user.ID)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	redisStore, s := setupTestRedis(t)
	defer redisStore.Close()
	defer s.Close()

	ctx := context.Background()
	if err := redisStore.SaveRefreshSession(ctx, "hash-exp", "user_456", time.Now().Add(time.Millisecond)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	s.FastForward(2 * time.Millisecond)

	if _, err := redisStore.LookupRefreshSession(ctx, "hash-exp"); err == nil {
		t.Fatal("expected lookup to fail after expiry")
	}
}

func TestSaveRejectsPastExpiry(t *testing.T) {
	redisStore, s := setupTestRedis(t)
	defer redisStore.Close()
	defer s.Close()

	if err := redisStore.SaveRefreshSession(context.Background(), "hash-past", "user_1", time.Now().Add(-time.Minute)); err == nil {
		t.Fatal("expected error for already-expired session")
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	redisStore, s := setupTestRedis(t)
	defer redisStore.Close()
	defer s.Close()

	ctx := context.Background()
	if err := redisStore.SaveRefreshSession(ctx, "hash-rev", "user_789", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if err := redisStore.RevokeRefreshSession(ctx, "hash-rev"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}
	if _, err := redisStore.LookupRefreshSession(ctx, "hash-rev"); err == nil {
		t.Fatal("expected lookup to fail after revocation")
	}
	// Revoking a missing token is a no-op.
	if err := redisStore.RevokeRefreshSession(ctx, "hash-missing"); err != nil {
		t.Fatalf("RevokeRefreshSession on missing token failed: %v", err)
	}
}
