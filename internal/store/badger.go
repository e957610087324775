package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Badger keys every value as "<collection>/<key>" in an embedded database.
type Badger struct {
	db *badger.DB
}

// NewBadger wraps an open database. The database is owned by the caller;
// Close is a no-op.
func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

func badgerKey(collection, key string) []byte {
	return []byte(collection + "/" + key)
}

func (b *Badger) Get(ctx context.Context, collection, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(collection, key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get %s/%s: %w", collection, key, err)
	}
	return out, true, nil
}

func (b *Badger) Set(ctx context.Context, collection, key string, value []byte) error {
	return b.Apply(ctx, Set(collection, key, value))
}

func (b *Badger) Delete(ctx context.Context, collection, key string) error {
	return b.Apply(ctx, Delete(collection, key))
}

// ListAll iterates the collection prefix in key order.
func (b *Badger) ListAll(ctx context.Context, collection string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(collection + "/")
	var out [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list %s: %w", collection, err)
	}
	return out, nil
}

// SetIfAbsent relies on badger's optimistic transactions: a concurrent
// writer of the same key makes Commit fail with ErrConflict, which is
// reported as not set.
func (b *Badger) SetIfAbsent(ctx context.Context, collection, key string, value []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	k := badgerKey(collection, key)
	set := false
	err := b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		set = true
		return txn.Set(k, value)
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("badger set-if-absent %s/%s: %w", collection, key, err)
	}
	return set, nil
}

// Apply commits ops in a single read-write transaction.
func (b *Badger) Apply(ctx context.Context, ops ...Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			k := badgerKey(op.Collection, op.Key)
			var err error
			switch op.Kind {
			case OpSet:
				err = txn.Set(k, op.Value)
			case OpDelete:
				err = txn.Delete(k)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger apply (%d ops): %w", len(ops), err)
	}
	return nil
}

func (b *Badger) Close() error { return nil }
