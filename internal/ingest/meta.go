package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"jobmate/ingestion-service/internal/model"
	"jobmate/ingestion-service/internal/store"
)

// writeMeta upserts source metadata. Failures are logged and ignored.
func (p *Pipeline) writeMeta(ctx context.Context, meta model.SourceMeta) {
	body, err := json.Marshal(meta)
	if err == nil {
		err = p.st.Set(ctx, store.CollectionSources, string(meta.Source), body)
	}
	if err != nil {
		p.log.Warn("source metadata not written (non-fatal)", "source", meta.Source, "error", err)
	}
}

// SeedMeta records a pending entry for every registered source that has
// never been fetched.
func (p *Pipeline) SeedMeta(ctx context.Context) error {
	for _, name := range p.sources.Names() {
		body, err := json.Marshal(model.SourceMeta{Source: name, Status: model.SourceStatusPending})
		if err != nil {
			return err
		}
		if _, err := p.st.SetIfAbsent(ctx, store.CollectionSources, string(name), body); err != nil {
			return fmt.Errorf("seed %s metadata: %w", name, err)
		}
	}
	return nil
}

// LoadSourceMeta reads every stored source metadata entry, sorted by name.
func LoadSourceMeta(ctx context.Context, st store.Store) ([]model.SourceMeta, error) {
	rows, err := st.ListAll(ctx, store.CollectionSources)
	if err != nil {
		return nil, fmt.Errorf("list source metadata: %w", err)
	}
	out := make([]model.SourceMeta, 0, len(rows))
	for _, raw := range rows {
		var m model.SourceMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode source metadata: %w", err)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}
