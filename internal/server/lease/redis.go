package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "gophchat:lease:"
	defaultPoll    = 50 * time.Millisecond
	releaseTimeout = 2 * time.Second
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lease taken over by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// Redis is a Locker shared by every server instance using the same Redis.
// A lease expires after ttl even if never released.
type Redis struct {
	client redisClient
	ttl    time.Duration
	poll   time.Duration
}

func NewRedis(client redisClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl, poll: defaultPoll}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	key = keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrBusy
			}
			return nil, fmt.Errorf("lease: acquire %s: %w", key, err)
		}
		if ok {
			return r.releaser(ctx, key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ErrBusy
		case <-ticker.C:
		}
	}
}

func (r *Redis) releaser(ctx context.Context, key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			// An error leaves the key to expire on its own.
			_ = releaseScript.Run(rctx, r.client, []string{key}, token).Err()
		})
	}
}
