package keylock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"github.com/yungbote/coursehub-backend/internal/platform/retry"
)

var ErrLockTimeout = errors.New("keylock: timed out waiting for lock")

// DefaultRedisTTL covers a lesson write, its retry and the course rollup at their full write
// timeouts. Held locks are renewed every third of the TTL on top of that.
const DefaultRedisTTL = 30 * time.Second

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisOptions struct {
	Prefix  string
	TTL     time.Duration
	Wait    time.Duration
	Backoff time.Duration
}

// tokenStore is the slice of redis the locker needs.
type tokenStore interface {
	acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	release(ctx context.Context, key, token string) error
}

type redisStore struct {
	rdb goredis.UniversalClient
}

func (s redisStore) acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, token, ttl).Result()
}

func (s redisStore) extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, s.rdb, []string{key}, token, ttl.Milliseconds()).Int64()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	return n == 1, err
}

func (s redisStore) release(ctx context.Context, key, token string) error {
	err := releaseScript.Run(ctx, s.rdb, []string{key}, token).Err()
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	return err
}

type redisLocker struct {
	store tokenStore
	log   *logger.Logger
	opts  RedisOptions
}

// NewRedis returns a Locker backed by SET NX with a per-holder token. The key is kept alive
// while held; TTL only bounds how long a crashed holder can block others.
func NewRedis(rdb goredis.UniversalClient, log *logger.Logger, opts RedisOptions) Locker {
	return newRedisLocker(redisStore{rdb: rdb}, log, opts)
}

func newRedisLocker(store tokenStore, log *logger.Logger, opts RedisOptions) *redisLocker {
	if opts.Prefix == "" {
		opts.Prefix = "coursehub:lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultRedisTTL
	}
	if opts.Wait <= 0 {
		opts.Wait = 5 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 25 * time.Millisecond
	}
	return &redisLocker{store: store, log: log.With("component", "RedisKeyLock"), opts: opts}
}

func (r *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	full := r.opts.Prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.opts.Wait)

	for {
		ok, err := r.store.acquire(ctx, full, token, r.opts.TTL)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		timer := time.NewTimer(retry.Jitter(r.opts.Backoff))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	stop := make(chan struct{})
	renewed := make(chan struct{})
	go r.renew(full, token, stop, renewed)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-renewed
			// release with a fresh context so a cancelled request still frees the key
			relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := r.store.release(relCtx, full, token); err != nil {
				r.log.Warn("release lock failed", "key", key, "error", err)
			}
		})
	}, nil
}

// renew extends the key until stop closes or the token is no longer the holder.
func (r *redisLocker) renew(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.opts.TTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.TTL/3)
		ok, err := r.store.extend(ctx, key, token, r.opts.TTL)
		cancel()
		if err != nil {
			r.log.Warn("extend lock failed", "key", key, "error", err)
			continue
		}
		if !ok {
			r.log.Warn("lock lost before release", "key", key)
			return
		}
	}
}
