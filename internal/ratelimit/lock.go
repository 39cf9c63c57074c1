package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	registrationdomain "github.com/smallbiznis/metalid/internal/registration/domain"
)

const lockNamespace = "metalid:lock:"

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
return redis.call("DEL", KEYS[1])
`)

var (
	errLockUnset = errors.New("lock client not configured")
	errLockArgs  = errors.New("lock needs a key and a positive ttl")
)

var _ registrationdomain.TokenLocker = (*Locker)(nil)

// Locker hands out short redis leases. Each lease carries a random holder
// id so an expired holder cannot release a lease someone else took over.
type Locker struct {
	client *redis.Client
}

// NewLocker returns nil for a nil client.
func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errLockUnset
	}
	if key == "" || ttl <= 0 {
		return "", false, errLockArgs
	}

	holder := uuid.NewString()
	err := l.client.SetArgs(ctx, lockNamespace+key, holder, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return holder, true, nil
}

// Release is a no-op for a nil locker or an empty holder.
func (l *Locker) Release(ctx context.Context, key, holder string) error {
	if l == nil || l.client == nil || key == "" || holder == "" {
		return nil
	}
	return compareAndDelete.Run(ctx, l.client, []string{lockNamespace + key}, holder).Err()
}

// ProvideTokenLocker yields a nil interface when redis is disabled so the
// registration service skips locking.
func ProvideTokenLocker(l *Locker) registrationdomain.TokenLocker {
	if l == nil {
		return nil
	}
	return l
}
