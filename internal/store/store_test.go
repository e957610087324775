package store_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/ingestion-service/internal/db"
	"jobmate/ingestion-service/internal/store"
)

// backends returns every store that can run in this environment. Redis and
// Postgres need REDIS_URL / DATABASE_URL.
func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	ctx := context.Background()
	out := map[string]store.Store{
		"memory": store.NewMemory(),
	}

	bdb, err := db.OpenBadger(db.BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { bdb.Close() })
	out["badger"] = store.NewBadger(bdb.DB)

	if url := os.Getenv("REDIS_URL"); url != "" {
		rdb, err := db.NewRedisClient(ctx, url)
		require.NoError(t, err)
		t.Cleanup(func() { rdb.Close() })
		out["redis"] = store.NewRedis(rdb, "ingest-test-"+uuid.NewString())
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		pool, err := db.NewPostgresPool(ctx, url)
		require.NoError(t, err)
		t.Cleanup(pool.Close)
		pg, err := store.NewPostgres(ctx, pool)
		require.NoError(t, err)
		out["postgres"] = pg
	}
	return out
}

// uniq keeps collections apart when a shared Postgres is reused across runs.
func uniq(name string) string {
	return name + "-" + uuid.NewString()[:8]
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			coll := uniq("jobs")

			_, found, err := s.Get(ctx, coll, "missing")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Set(ctx, coll, "a", []byte(`{"n":1}`)))
			v, found, err := s.Get(ctx, coll, "a")
			require.NoError(t, err)
			require.True(t, found)
			assert.JSONEq(t, `{"n":1}`, string(v))

			require.NoError(t, s.Set(ctx, coll, "a", []byte(`{"n":2}`)))
			v, _, _ = s.Get(ctx, coll, "a")
			assert.JSONEq(t, `{"n":2}`, string(v), "read-your-writes after overwrite")

			require.NoError(t, s.Delete(ctx, coll, "a"))
			_, found, err = s.Get(ctx, coll, "a")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Delete(ctx, coll, "never-existed"))
		})
	}
}

func TestStore_ListAll(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			coll, other := uniq("sources"), uniq("sourcesx")
			for i := 0; i < 3; i++ {
				require.NoError(t, s.Set(ctx, coll, fmt.Sprintf("k%d", i), []byte(fmt.Sprintf(`{"i":%d}`, i))))
			}
			require.NoError(t, s.Set(ctx, other, "k0", []byte(`{"other":true}`)))

			vals, err := s.ListAll(ctx, coll)
			require.NoError(t, err)
			assert.Len(t, vals, 3)

			empty, err := s.ListAll(ctx, uniq("nothing"))
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStore_SetIfAbsent(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			coll := uniq("job_hashes")

			ok, err := s.SetIfAbsent(ctx, coll, "h", []byte(`"first"`))
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = s.SetIfAbsent(ctx, coll, "h", []byte(`"second"`))
			require.NoError(t, err)
			assert.False(t, ok)

			v, _, _ := s.Get(ctx, coll, "h")
			assert.JSONEq(t, `"first"`, string(v))
		})
	}
}

// Exactly one of many racing writers wins the key.
func TestStore_SetIfAbsentRace(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			coll := uniq("job_hashes")
			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					ok, err := s.SetIfAbsent(ctx, coll, "h", []byte(fmt.Sprintf(`"w%d"`, i)))
					assert.NoError(t, err)
					if ok {
						wins.Add(1)
					}
				}(i)
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestStore_ApplyIsOrderedBatch(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			jobs, hashes := uniq("jobs"), uniq("job_hashes")
			require.NoError(t, s.Set(ctx, jobs, "old", []byte(`{"id":"old"}`)))
			require.NoError(t, s.Set(ctx, hashes, "h", []byte(`"old"`)))

			err := s.Apply(ctx,
				store.Delete(jobs, "old"),
				store.Set(jobs, "new", []byte(`{"id":"new"}`)),
				store.Set(hashes, "h", []byte(`"new"`)),
			)
			require.NoError(t, err)

			_, found, _ := s.Get(ctx, jobs, "old")
			assert.False(t, found)
			_, found, _ = s.Get(ctx, jobs, "new")
			assert.True(t, found)
			v, _, _ := s.Get(ctx, hashes, "h")
			assert.JSONEq(t, `"new"`, string(v))

			require.NoError(t, s.Apply(ctx))
		})
	}
}

func TestMemory_Closed(t *testing.T) {
	m := store.NewMemory()
	require.NoError(t, m.Close())
	_, _, err := m.Get(context.Background(), "jobs", "a")
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := store.Open(ctx, store.BackendMemory, store.Clients{})
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, s)

	_, err = store.Open(ctx, store.BackendRedis, store.Clients{})
	assert.Error(t, err, "redis without a client")

	_, err = store.Open(ctx, "etcd", store.Clients{})
	var unknown *store.UnknownBackendError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "etcd", unknown.Name)
}
