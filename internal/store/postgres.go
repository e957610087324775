package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ingest_state (
	collection TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, key)
)`

// Postgres stores every collection in the ingest_state table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps a pool and creates the state table if needed. The pool
// is owned by the caller; Close is a no-op.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create ingest_state: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Get(ctx context.Context, collection, key string) ([]byte, bool, error) {
	var v []byte
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM ingest_state WHERE collection = $1 AND key = $2`,
		collection, key,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s/%s: %w", collection, key, err)
	}
	return v, true, nil
}

func (p *Postgres) Set(ctx context.Context, collection, key string, value []byte) error {
	return p.Apply(ctx, Set(collection, key, value))
}

func (p *Postgres) Delete(ctx context.Context, collection, key string) error {
	return p.Apply(ctx, Delete(collection, key))
}

func (p *Postgres) ListAll(ctx context.Context, collection string) ([][]byte, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT value FROM ingest_state WHERE collection = $1 ORDER BY key`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var v []byte
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) SetIfAbsent(ctx context.Context, collection, key string, value []byte) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO ingest_state (collection, key, value)
		 VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, key) DO NOTHING`,
		collection, key, string(value),
	)
	if err != nil {
		return false, fmt.Errorf("insert %s/%s: %w", collection, key, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Apply runs ops inside one transaction.
func (p *Postgres) Apply(ctx context.Context, ops ...Op) error {
	if len(ops) == 0 {
		return nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			_, err = tx.Exec(ctx,
				`INSERT INTO ingest_state (collection, key, value)
				 VALUES ($1, $2, $3::jsonb)
				 ON CONFLICT (collection, key)
				 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
				op.Collection, op.Key, string(op.Value),
			)
		case OpDelete:
			_, err = tx.Exec(ctx,
				`DELETE FROM ingest_state WHERE collection = $1 AND key = $2`,
				op.Collection, op.Key,
			)
		}
		if err != nil {
			return fmt.Errorf("apply %s/%s: %w", op.Collection, op.Key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error { return nil }
