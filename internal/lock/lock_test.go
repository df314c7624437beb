package lock

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestNilLockerIsNotConfigured(t *testing.T) {
	var l *Locker
	_, ok, err := l.TryLock(context.Background(), "recalculate_stale", time.Minute)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.NoError(t, l.Release(context.Background(), "recalculate_stale", "token"))
}

func TestNewLockerWithoutClient(t *testing.T) {
	assert.Nil(t, NewLocker(nil, keyPrefix))
}

func TestTryLockValidatesArguments(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	l := NewLocker(client, keyPrefix)

	_, _, err := l.TryLock(context.Background(), "", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, _, err = l.TryLock(context.Background(), "job", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)

	assert.Equal(t, "estatebook:lock:job", l.key("job"))
}
