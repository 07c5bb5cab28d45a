package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore 每个集合保存为一个 Redis key。
// 写事务对读到的 key 执行 WATCH，并用 MULTI/EXEC 提交；期间 key 被改动则返回 ErrConflict。
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func getBytes(ctx context.Context, c redis.Cmdable, key string) ([]byte, bool, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *RedisStore) View(ctx context.Context, fn func(Tx) error) error {
	return fn(newTxn(func(name string) ([]byte, bool, error) {
		return getBytes(ctx, s.client, s.key(name))
	}, false))
}

func (s *RedisStore) Update(ctx context.Context, fn func(Tx) error) error {
	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		t := newTxn(func(name string) ([]byte, bool, error) {
			key := s.key(name)
			if err := rtx.Watch(ctx, key).Err(); err != nil {
				return nil, false, err
			}
			return getBytes(ctx, rtx, key)
		}, true)

		if err := fn(t); err != nil {
			return err
		}
		if len(t.staged) == 0 {
			return nil
		}

		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for name, data := range t.staged {
				pipe.Set(ctx, s.key(name), data, 0)
			}
			return nil
		})
		return err
	})
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

// Close 连接由调用方管理
func (s *RedisStore) Close() error { return nil }
