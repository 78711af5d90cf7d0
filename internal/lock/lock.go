// Package lock provides the per-deal lease that keeps two generation runs
// for the same deal from overlapping.
package lock

import (
	"context"
	"time"

	appErr "github.com/dealdocs/engine/pkg/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease is a held lock. Release is safe to call more than once.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out leases keyed by an arbitrary string.
type Locker interface {
	// Acquire returns a conflict error when the key is already leased.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// DealKey is the lease key for a deal's generation run.
func DealKey(dealID uuid.UUID) string {
	return "dealdocs:generate:" + dealID.String()
}

// RedisLocker implements Locker with SET NX PX and a token-checked delete.
type RedisLocker struct {
	rdb *redis.Client
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// Deletes the key only if it still holds our token, so an expired lease
// never releases a newer holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "acquire lease failed")
	}
	if !ok {
		return nil, appErr.New(appErr.CodeConflict, "generation already in progress").WithMeta("lease", key)
	}
	return &redisLease{rdb: l.rdb, key: key, token: token}, nil
}

type redisLease struct {
	rdb      *redis.Client
	key      string
	token    string
	released bool
}

func (l *redisLease) Release(ctx context.Context) error {
	if l.released {
		return nil
	}
	l.released = true
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err(); err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "release lease failed")
	}
	return nil
}

// NopLocker always grants the lease. It is used when no Redis is configured;
// the conditional deal status transition is then the only guard.
type NopLocker struct{}

var _ Locker = NopLocker{}

func (NopLocker) Acquire(context.Context, string, time.Duration) (Lease, error) {
	return nopLease{}, nil
}

type nopLease struct{}

func (nopLease) Release(context.Context) error { return nil }
