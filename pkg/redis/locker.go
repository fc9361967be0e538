package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

const (
	defaultLockTTL     = 30 * time.Second
	defaultLockBackoff = 50 * time.Millisecond
)

// Locker serializes work on a key across processes using SET NX with a
// per-holder token. Release only deletes the key while the token still matches.
type Locker struct {
	client       *Client
	ttl          time.Duration
	retryBackoff time.Duration
}

// NewLocker builds a locker on top of client.
func NewLocker(client *Client, ttl, retryBackoff time.Duration) (*Locker, error) {
	if client == nil {
		return nil, errors.New("lock: redis client not configured")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if retryBackoff <= 0 {
		retryBackoff = defaultLockBackoff
	}
	return &Locker{client: client, ttl: ttl, retryBackoff: retryBackoff}, nil
}

// Key returns the lock key for a resource instance.
func (l *Locker) Key(resource, id string) string {
	return l.client.LockKey(resource, id)
}

// WithLock runs fn while holding the lock for key. The lock is released even if
// fn fails. Waiting stops with ctx.Err() once ctx is done.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if l == nil || l.client == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			return err
		}
		if ok {
			defer func() { _ = l.release(key, token) }()
			return fn(ctx)
		}
		timer := time.NewTimer(l.retryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// release deletes key only while it still holds token. If the script cannot
// run the key is left to expire with its TTL; a plain DEL could remove a lock
// another holder took after ours expired.
func (l *Locker) release(key, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return l.client.store.Eval(ctx, releaseScript, []string{key}, token).Err()
}
