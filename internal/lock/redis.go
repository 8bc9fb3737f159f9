package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the key only while it still carries our token, so an
// expired lock taken over by another instance is never released by us.
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisOptions tunes a Redis lock.  TTL must exceed the longest critical
// section; RetryEvery is the polling interval while waiting.
type RedisOptions struct {
	Prefix     string
	TTL        time.Duration
	RetryEvery time.Duration
}

// Redis is a keyed lock built on SET NX PX.
type Redis struct {
	rdb  *redis.Client
	opts RedisOptions
}

// NewRedis returns a Redis lock using rdb.  Zero options get defaults.
func NewRedis(rdb *redis.Client, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "lock"
	}
	if opts.TTL <= 0 {
		opts.TTL = 15 * time.Second
	}
	if opts.RetryEvery <= 0 {
		opts.RetryEvery = 25 * time.Millisecond
	}
	return &Redis{rdb: rdb, opts: opts}
}

// Lock polls for key until it is free or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	full := r.opts.Prefix + ":" + key
	token := uuid.NewString()
	for {
		ok, err := r.rdb.SetNX(ctx, full, token, r.opts.TTL).Result()
		if err == nil && ok {
			return func() { r.unlock(full, token) }, nil
		}
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, err)
		}
		timer := time.NewTimer(r.opts.RetryEvery)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-timer.C:
		}
	}
}

func (r *Redis) unlock(full, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Expiry frees the key if this fails.
	_ = unlockScript.Run(ctx, r.rdb, []string{full}, token).Err()
}
