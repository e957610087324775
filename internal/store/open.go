package store

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Clients are the connections a backend may be built on. Only the one
// matching the chosen backend needs to be set.
type Clients struct {
	Redis       *redis.Client
	RedisPrefix string
	Postgres    *pgxpool.Pool
	Badger      *badger.DB
}

// Open builds the named backend over already-connected clients.
func Open(ctx context.Context, backend string, c Clients) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		if c.Redis == nil {
			return nil, fmt.Errorf("store: redis backend needs a client")
		}
		return NewRedis(c.Redis, c.RedisPrefix), nil
	case BackendPostgres:
		if c.Postgres == nil {
			return nil, fmt.Errorf("store: postgres backend needs a pool")
		}
		pg, err := NewPostgres(ctx, c.Postgres)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case BackendBadger:
		if c.Badger == nil {
			return nil, fmt.Errorf("store: badger backend needs a database")
		}
		return NewBadger(c.Badger), nil
	default:
		return nil, &UnknownBackendError{Name: backend}
	}
}
