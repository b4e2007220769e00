// Package store holds the keyed session-state backends and the persistent
// room registry.
package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/seeitsmanish/SongCircle/internal/core"
)

// Redis implements core.KeyedStore on a redis client. It is the shared
// source of truth for session state across restarts of the connection
// handling process.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(ctx context.Context, addr string, db int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "store.redis").Str("addr", addr).Msg("connected to redis")
	return &Redis{rdb: rdb}, nil
}

func (s *Redis) Close() error { return s.rdb.Close() }

func (s *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", core.ErrNotFound
	}
	return val, err
}

func (s *Redis) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, key, value, 0).Err()
}

func (s *Redis) Del(ctx context.Context, keys ...string) error {
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *Redis) SAdd(ctx context.Context, key, member string) error {
	return s.rdb.SAdd(ctx, key, member).Err()
}

func (s *Redis) SRem(ctx context.Context, key, member string) error {
	return s.rdb.SRem(ctx, key, member).Err()
}

func (s *Redis) SCard(ctx context.Context, key string) (int64, error) {
	return s.rdb.SCard(ctx, key).Result()
}

func (s *Redis) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return s.rdb.SIsMember(ctx, key, member).Result()
}

func (s *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.rdb.SMembers(ctx, key).Result()
}

func (s *Redis) HSet(ctx context.Context, key string, fields map[string]string) error {
	return s.rdb.HSet(ctx, key, fields).Err()
}

func (s *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, key).Result()
}

func (s *Redis) RPush(ctx context.Context, key, value string) error {
	return s.rdb.RPush(ctx, key, value).Err()
}

func (s *Redis) LPush(ctx context.Context, key, value string) error {
	return s.rdb.LPush(ctx, key, value).Err()
}

func (s *Redis) LPop(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.LPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", core.ErrNotFound
	}
	return val, err
}

func (s *Redis) LRange(ctx context.Context, key string) ([]string, error) {
	return s.rdb.LRange(ctx, key, 0, -1).Result()
}
