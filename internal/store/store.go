// Package store is the key/value state shared by the dedup engine and the
// pipeline. Values are opaque JSON documents grouped into collections.
//
// Every backend gives read-your-writes consistency within a process.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Collections used by the ingestion service.
const (
	CollectionJobs    = "jobs"        // posting id → Posting
	CollectionHashes  = "job_hashes"  // content hash → winning posting id
	CollectionRecent  = "job_recent"  // posting id → RecentEntry
	CollectionSources = "sources"     // source name → SourceMeta
	CollectionBacklog = "ingest_backlog"
)

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("store: closed")

// OpKind selects what an Op does.
type OpKind int

const (
	OpSet OpKind = iota
	OpDelete
)

// Op is one mutation in an atomic batch.
type Op struct {
	Kind       OpKind
	Collection string
	Key        string
	Value      []byte
}

// Set builds a set operation.
func Set(collection, key string, value []byte) Op {
	return Op{Kind: OpSet, Collection: collection, Key: key, Value: value}
}

// Delete builds a delete operation.
func Delete(collection, key string) Op {
	return Op{Kind: OpDelete, Collection: collection, Key: key}
}

// Store is the state interface. Get reports found=false for missing keys
// rather than returning an error.
type Store interface {
	Get(ctx context.Context, collection, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, collection, key string, value []byte) error
	Delete(ctx context.Context, collection, key string) error
	ListAll(ctx context.Context, collection string) ([][]byte, error)

	// SetIfAbsent writes value only when key is missing and reports
	// whether it did.
	SetIfAbsent(ctx context.Context, collection, key string, value []byte) (bool, error)

	// Apply runs ops in order as one atomic unit: either all of them are
	// visible or none are.
	Apply(ctx context.Context, ops ...Op) error

	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// UnknownBackendError is returned for a backend name Open does not know.
type UnknownBackendError struct {
	Name string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("store: unknown backend %q", e.Name)
}
