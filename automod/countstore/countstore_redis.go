package countstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisCountPrefix string = "yuno/count/"

type RedisCountStore struct {
	Client *redis.Client
	// counters expire this long after their last increment; zero means never
	Expiry time.Duration
}

var _ CountStore = (*RedisCountStore)(nil)

func NewRedisCountStore(redisURL string, expiry time.Duration) (*RedisCountStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	rcs := RedisCountStore{
		Client: rdb,
		Expiry: expiry,
	}
	return &rcs, nil
}

func (s *RedisCountStore) GetCount(ctx context.Context, name, val string) (int, error) {
	key := redisCountPrefix + counterKey(name, val)
	c, err := s.Client.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return c, nil
}

func (s *RedisCountStore) Increment(ctx context.Context, name, val string) (int, error) {
	key := redisCountPrefix + counterKey(name, val)

	// increment and refresh expiry in a single redis round-trip
	multi := s.Client.TxPipeline()
	incr := multi.Incr(ctx, key)
	if s.Expiry > 0 {
		multi.Expire(ctx, key, s.Expiry)
	}
	if _, err := multi.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (s *RedisCountStore) Reset(ctx context.Context, name, val string) error {
	return s.Client.Del(ctx, redisCountPrefix+counterKey(name, val)).Err()
}
