package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"jobmate/ingestion-service/internal/model"
	"jobmate/ingestion-service/internal/store"
)

// backlog holds postings whose dedup decision could not be written. It
// lives in memory and is mirrored to the store when the store accepts
// writes, so a restart does not lose entries persisted before the outage.
type backlog struct {
	st store.Store

	mu      sync.Mutex
	pending map[string]model.Posting
}

func newBacklog(st store.Store) *backlog {
	return &backlog{st: st, pending: make(map[string]model.Posting)}
}

// push keeps p in memory and reports whether the persistent copy was
// written as well.
func (b *backlog) push(ctx context.Context, p model.Posting) bool {
	b.mu.Lock()
	b.pending[p.ID] = p
	b.mu.Unlock()

	body, err := json.Marshal(p)
	if err != nil {
		return false
	}
	return b.st.Set(ctx, store.CollectionBacklog, p.ID, body) == nil
}

// load merges persisted entries into memory. Memory wins on conflicts.
func (b *backlog) load(ctx context.Context) error {
	rows, err := b.st.ListAll(ctx, store.CollectionBacklog)
	if err != nil {
		return fmt.Errorf("list backlog: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, raw := range rows {
		var p model.Posting
		if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" {
			continue
		}
		if _, ok := b.pending[p.ID]; !ok {
			b.pending[p.ID] = p
		}
	}
	return nil
}

// drain returns the pending postings ordered by id and empties the
// in-memory set. Callers push back whatever fails again.
func (b *backlog) drain() []model.Posting {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Posting, 0, len(b.pending))
	for _, p := range b.pending {
		out = append(out, p)
	}
	b.pending = make(map[string]model.Posting)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *backlog) done(ctx context.Context, id string) error {
	return b.st.Delete(ctx, store.CollectionBacklog, id)
}

func (b *backlog) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
