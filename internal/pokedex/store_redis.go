package pokedex

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the record as a single string value under key.
type RedisStore struct {
	rdb redis.UniversalClient
	key string
}

func NewRedisStore(rdb redis.UniversalClient, key string) *RedisStore {
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.rdb.Ping(ctx).Err()
	})
}

func (s *RedisStore) Load(ctx context.Context) (*State, bool, error) {
	var b []byte

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		b, err = s.rdb.Get(ctx, s.key).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	st, err := decodeState(b)
	if err != nil {
		return nil, false, err
	}
	return st, true, nil
}

func (s *RedisStore) Save(ctx context.Context, st *State) error {
	b, err := encodeState(st)
	if err != nil {
		return err
	}

	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.rdb.Set(ctx, s.key, b, 0).Err()
	})
}
