package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/maktaba/core"
)

func newStore(t *testing.T, addr string, limit int) *RedisStore {
	conf := &core.Config{
		Redis:     core.RedisConfig{Address: addr, Prefix: "test:ratelimit"},
		RateLimit: core.RateLimitConfig{Limit: limit, Window: time.Minute},
	}
	store, err := NewRedisStore(conf)
	if err != nil {
		t.Fatalf("NewRedisStore() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisStore_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	store := newStore(t, mr.Addr(), 2)
	store.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 30, 0, time.UTC) }

	for i, want := range []bool{true, true, false} {
		allowed, err := store.Allow("10.0.0.1")
		if err != nil {
			t.Fatalf("Allow() #%d failed: %v", i+1, err)
		}
		assert.Equal(t, want, allowed, "request #%d", i+1)
	}

	// other clients have their own quota
	allowed, err := store.Allow("10.0.0.2")
	assert.NoError(t, err)
	assert.True(t, allowed)

	// the next window starts afresh
	store.now = func() time.Time { return time.Date(2024, 3, 1, 10, 1, 5, 0, time.UTC) }
	allowed, err = store.Allow("10.0.0.1")
	assert.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisStore_AllowSetsExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	store := newStore(t, mr.Addr(), 5)

	_, err := store.Allow("10.0.0.1")
	assert.NoError(t, err)

	keys := mr.Keys()
	if assert.Len(t, keys, 1) {
		assert.Equal(t, time.Minute, mr.TTL(keys[0]))
	}
}

func TestRedisStore_FailsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	store := newStore(t, mr.Addr(), 1)
	mr.Close()

	allowed, err := store.Allow("10.0.0.1")
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestNewRedisStore_RequiresRedis(t *testing.T) {
	conf := &core.Config{RateLimit: core.RateLimitConfig{Limit: 1, Window: time.Second}}
	store, err := NewRedisStore(conf)
	assert.Error(t, err)
	assert.Nil(t, store)
}
