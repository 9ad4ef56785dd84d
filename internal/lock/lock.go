package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/nrednav/cuid2"
	"github.com/redis/go-redis/v9"
)

const DefaultKey = "tweetqueue:pass"

var ErrorNotHeld = errors.New("lock held elsewhere")

// release deletes the key only while it still holds our token, so an expired
// lock that another process has since taken is left alone.
var release = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// PassLock is a cross-process mutex for delivery passes.
type PassLock interface {
	Acquire(ctx context.Context) (unlock func(), err error)
}

type redisLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, key string, ttl time.Duration) *redisLock {
	if key == "" {
		key = DefaultKey
	}
	return &redisLock{client: client, key: key, ttl: ttl}
}

// Acquire takes the lock or returns ErrorNotHeld when another holder has it.
func (l *redisLock) Acquire(ctx context.Context) (func(), error) {
	token := cuid2.Generate()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring pass lock: %w", err)
	}
	if !ok {
		return nil, ErrorNotHeld
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			log.Warnf("releasing pass lock %s, held until ttl expires: %v", l.key, err)
		}
	}, nil
}

type noop struct{}

// NewNoop returns a lock that always succeeds, for single-process deployments.
func NewNoop() PassLock {
	return noop{}
}

func (noop) Acquire(context.Context) (func(), error) {
	return func() {}, nil
}
