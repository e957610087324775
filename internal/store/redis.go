package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis keeps each collection in one hash under "<prefix>:<collection>".
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis wraps an already connected client. The client is owned by the
// caller; Close is a no-op.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "ingest"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) key(collection string) string {
	return r.prefix + ":" + collection
}

func (r *Redis) Get(ctx context.Context, collection, key string) ([]byte, bool, error) {
	v, err := r.rdb.HGet(ctx, r.key(collection), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis HGET %s/%s: %w", collection, key, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, collection, key string, value []byte) error {
	if err := r.rdb.HSet(ctx, r.key(collection), key, value).Err(); err != nil {
		return fmt.Errorf("redis HSET %s/%s: %w", collection, key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, collection, key string) error {
	if err := r.rdb.HDel(ctx, r.key(collection), key).Err(); err != nil {
		return fmt.Errorf("redis HDEL %s/%s: %w", collection, key, err)
	}
	return nil
}

func (r *Redis) ListAll(ctx context.Context, collection string) ([][]byte, error) {
	vals, err := r.rdb.HVals(ctx, r.key(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HVALS %s: %w", collection, err)
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		out = append(out, []byte(v))
	}
	return out, nil
}

func (r *Redis) SetIfAbsent(ctx context.Context, collection, key string, value []byte) (bool, error) {
	ok, err := r.rdb.HSetNX(ctx, r.key(collection), key, value).Result()
	if err != nil {
		return false, fmt.Errorf("redis HSETNX %s/%s: %w", collection, key, err)
	}
	return ok, nil
}

// Apply wraps ops in MULTI/EXEC.
func (r *Redis) Apply(ctx context.Context, ops ...Op) error {
	if len(ops) == 0 {
		return nil
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			switch op.Kind {
			case OpSet:
				pipe.HSet(ctx, r.key(op.Collection), op.Key, op.Value)
			case OpDelete:
				pipe.HDel(ctx, r.key(op.Collection), op.Key)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis MULTI/EXEC (%d ops): %w", len(ops), err)
	}
	return nil
}

func (r *Redis) Close() error { return nil }
