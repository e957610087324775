package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"jobmate/ingestion-service/internal/model"
	"jobmate/ingestion-service/internal/store"
)

// RecentEntry is the secondary index row used to pick the fuzzy window
// without loading every posting.
type RecentEntry struct {
	ID        string    `json:"id"`
	Hash      string    `json:"hash"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// window holds the most recent postings, newest first.
type window struct {
	mu       sync.RWMutex
	size     int
	loaded   bool
	postings []model.Posting
}

func (w *window) snapshot() []model.Posting {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]model.Posting, len(w.postings))
	copy(out, w.postings)
	return out
}

func (w *window) isLoaded() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loaded
}

func (w *window) reset(postings []model.Posting) {
	w.mu.Lock()
	w.postings = postings
	w.loaded = true
	w.mu.Unlock()
}

func (w *window) invalidate() {
	w.mu.Lock()
	w.postings = nil
	w.loaded = false
	w.mu.Unlock()
}

// add inserts p as the newest posting, replacing any entry with its id.
func (w *window) add(p model.Posting) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.loaded {
		return
	}
	w.removeLocked(p.ID)
	w.postings = append([]model.Posting{p}, w.postings...)
	if len(w.postings) > w.size {
		w.postings = w.postings[:w.size]
	}
}

func (w *window) remove(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removeLocked(id)
}

func (w *window) removeLocked(id string) {
	for i, p := range w.postings {
		if p.ID == id {
			w.postings = append(w.postings[:i], w.postings[i+1:]...)
			return
		}
	}
}

// loadRecent reads the newest n postings through the recent index.
func loadRecent(ctx context.Context, st store.Store, n int) ([]model.Posting, error) {
	raw, err := st.ListAll(ctx, store.CollectionRecent)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}

	entries := make([]RecentEntry, 0, len(raw))
	for _, b := range raw {
		var e RecentEntry
		if err := json.Unmarshal(b, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].FetchedAt.Equal(entries[j].FetchedAt) {
			return entries[i].FetchedAt.After(entries[j].FetchedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	if len(entries) > n {
		entries = entries[:n]
	}

	postings := make([]model.Posting, 0, len(entries))
	for _, e := range entries {
		p, found, err := getPosting(ctx, st, e.ID)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		postings = append(postings, p)
	}
	return postings, nil
}
