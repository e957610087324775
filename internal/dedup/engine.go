// Package dedup decides whether an incoming posting is new, a duplicate of
// a stored posting that should be kept, or a better copy that replaces it.
//
// Lookup runs in two tiers: the exact content-hash index, then a fuzzy
// comparison against a bounded window of recent postings. Exact hits never
// fall through to the fuzzy tier.
package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"jobmate/ingestion-service/internal/fuzzy"
	"jobmate/ingestion-service/internal/logging"
	"jobmate/ingestion-service/internal/model"
	"jobmate/ingestion-service/internal/scoring"
	"jobmate/ingestion-service/internal/store"
)

// ErrContended is returned when the hash index kept changing under us.
var ErrContended = errors.New("dedup: hash index contended")

// DefaultWindow is how many recent postings the fuzzy tier compares against.
const DefaultWindow = 500

// Outcome is what the engine did with an incoming posting.
type Outcome int

const (
	Admitted Outcome = iota
	KeptExisting
	Replaced
)

func (o Outcome) String() string {
	switch o {
	case Admitted:
		return "admitted"
	case KeptExisting:
		return "duplicate_kept"
	case Replaced:
		return "replaced"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Tier is the lookup that found the duplicate.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierFuzzy
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// Decision describes the result of Process.
type Decision struct {
	Outcome Outcome
	Tier    Tier

	// Winner is the posting stored after the decision.
	Winner model.Posting
	// ExistingID is the stored posting the incoming one was compared with.
	ExistingID string

	Match *fuzzy.MatchResult

	// StaleIndex is set when the hash index pointed at a deleted posting.
	StaleIndex bool
	// Degraded is set when the fuzzy tier was skipped.
	Degraded bool
}

// Config tunes the engine.
type Config struct {
	Window int
	Now    func() time.Time
}

// Engine is safe for concurrent use. Decisions are serialized: each one
// sees the window and indexes as the previous decision left them.
type Engine struct {
	st  store.Store
	log *logging.Logger
	now func() time.Time
	mu  sync.Mutex
	win *window
}

// New builds an engine over st.
func New(st store.Store, cfg Config, log *logging.Logger) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		st:  st,
		log: log.Component("dedup"),
		now: cfg.Now,
		win: &window{size: cfg.Window},
	}
}

// LoadWindow refreshes the fuzzy window from the store. Called at the start
// of every ingestion cycle; on error the engine runs exact-only until the
// next successful load.
func (e *Engine) LoadWindow(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadWindow(ctx)
}

func (e *Engine) loadWindow(ctx context.Context) error {
	postings, err := loadRecent(ctx, e.st, e.win.size)
	if err != nil {
		e.win.invalidate()
		return err
	}
	e.win.reset(postings)
	return nil
}

// KeepExisting is the tie-break. The stored posting survives when it scores
// higher, or scores the same and is not older than the incoming one.
func KeepExisting(existing, incoming model.Posting) bool {
	if existing.HealthScore != incoming.HealthScore {
		return existing.HealthScore > incoming.HealthScore
	}
	return !existing.PostedAt.Before(incoming.PostedAt)
}

// Process runs the decision procedure for one posting and applies it to the
// store. The incoming posting's ContentHash is filled in when empty.
func (e *Engine) Process(ctx context.Context, incoming model.Posting) (Decision, error) {
	if incoming.ContentHash == "" {
		incoming.ContentHash = GenerateHash(incoming)
	}
	hash := incoming.ContentHash

	e.mu.Lock()
	defer e.mu.Unlock()

	// A second pass only happens when another process sharing the store
	// claimed the hash between our miss and our index write; it then sees
	// their posting.
	for attempt := 0; attempt < 2; attempt++ {
		d, lost, err := e.process(ctx, incoming)
		if err != nil || !lost {
			return d, err
		}
		e.log.Debug("hash claimed concurrently, reconciling", "hash", ShortHash(hash), "id", incoming.ID)
	}
	return Decision{}, fmt.Errorf("%w: %s", ErrContended, ShortHash(hash))
}

func (e *Engine) process(ctx context.Context, incoming model.Posting) (Decision, bool, error) {
	hash := incoming.ContentHash

	// ── Exact tier ─────────────────────────────────────────
	existingID, indexed, err := e.lookupHash(ctx, hash)
	if err != nil {
		return Decision{}, false, err
	}
	stale := false
	if indexed {
		existing, found, err := getPosting(ctx, e.st, existingID)
		if err != nil {
			return Decision{}, false, err
		}
		if found {
			d, err := e.resolve(ctx, existing, incoming, TierExact, nil)
			return d, false, err
		}
		stale = true
		e.log.Warn("stale hash index entry", "hash", ShortHash(hash), "id", existingID)
	}

	// ── Fuzzy tier ─────────────────────────────────────────
	degraded := false
	if !e.win.isLoaded() {
		if err := e.loadWindow(ctx); err != nil {
			degraded = true
			e.log.Warn("fuzzy window unavailable, exact-only", "error", err)
		}
	}
	if !degraded {
		if m, ok := fuzzy.FindBestFuzzyMatch(incoming, e.win.snapshot()); ok {
			existing, found, err := getPosting(ctx, e.st, m.Posting.ID)
			if err != nil {
				return Decision{}, false, err
			}
			if found {
				res := m.Result
				d, err := e.resolve(ctx, existing, incoming, TierFuzzy, &res)
				d.StaleIndex = stale
				return d, false, err
			}
			e.win.remove(m.Posting.ID)
		}
	}

	// ── Admit ──────────────────────────────────────────────
	d, lost, err := e.admit(ctx, incoming, stale)
	d.Degraded = degraded
	return d, lost, err
}

func (e *Engine) resolve(ctx context.Context, existing, incoming model.Posting, tier Tier, m *fuzzy.MatchResult) (Decision, error) {
	d := Decision{Tier: tier, ExistingID: existing.ID, Match: m}

	// Scores decay with age; compare both copies as of now.
	now := e.now()
	storedScore := existing.HealthScore
	existing.HealthScore = scoring.Rescore(now, existing)
	incoming.HealthScore = scoring.Rescore(now, incoming)

	if KeepExisting(existing, incoming) {
		existing.LastSeenAt = now
		body, err := json.Marshal(existing)
		if err != nil {
			return d, fmt.Errorf("marshal %s: %w", existing.ID, err)
		}
		ops := []store.Op{store.Set(store.CollectionJobs, existing.ID, body)}
		if tier == TierFuzzy {
			// Later copies of the incoming posting now hit the exact tier.
			ops = append(ops, e.indexOp(incoming.ContentHash, existing.ID))
		}
		if err := e.st.Apply(ctx, ops...); err != nil {
			return d, fmt.Errorf("keep %s: %w", existing.ID, err)
		}
		d.Outcome = KeptExisting
		d.Winner = existing
		return d, nil
	}

	ops := []store.Op{
		store.Delete(store.CollectionJobs, existing.ID),
		store.Delete(store.CollectionRecent, existing.ID),
	}
	put, err := e.putOps(incoming)
	if err != nil {
		return d, err
	}
	ops = append(ops, put...)
	ops = append(ops, e.indexOp(incoming.ContentHash, incoming.ID))
	if existing.ContentHash != "" && existing.ContentHash != incoming.ContentHash {
		ops = append(ops, e.indexOp(existing.ContentHash, incoming.ID))
	}
	if err := e.st.Apply(ctx, ops...); err != nil {
		return d, fmt.Errorf("replace %s with %s: %w", existing.ID, incoming.ID, err)
	}

	e.win.remove(existing.ID)
	e.win.add(incoming)
	e.log.Debug("replaced duplicate",
		"tier", tier.String(), "old", existing.ID, "new", incoming.ID,
		"oldScore", existing.HealthScore, "storedScore", storedScore, "newScore", incoming.HealthScore)

	d.Outcome = Replaced
	d.Winner = incoming
	return d, nil
}

// admit stores a new posting. The posting is written first and the hash is
// then claimed with set-if-absent; if another writer got there first the
// posting is withdrawn and lost=true asks the caller to reconcile.
func (e *Engine) admit(ctx context.Context, incoming model.Posting, stale bool) (Decision, bool, error) {
	d := Decision{Outcome: Admitted, Tier: TierNone, Winner: incoming, StaleIndex: stale}
	hash := incoming.ContentHash

	ops, err := e.putOps(incoming)
	if err != nil {
		return d, false, err
	}
	if prev, found, err := getPosting(ctx, e.st, incoming.ID); err != nil {
		return d, false, err
	} else if found && prev.ContentHash != "" && prev.ContentHash != hash {
		// Same id, new content: drop the old fingerprint if it still points here.
		if id, ok, err := e.lookupHash(ctx, prev.ContentHash); err == nil && ok && id == incoming.ID {
			ops = append(ops, store.Delete(store.CollectionHashes, prev.ContentHash))
		}
	}
	if err := e.st.Apply(ctx, ops...); err != nil {
		return d, false, fmt.Errorf("admit %s: %w", incoming.ID, err)
	}

	idx, err := json.Marshal(incoming.ID)
	if err != nil {
		return d, false, err
	}
	if stale {
		err = e.st.Set(ctx, store.CollectionHashes, hash, idx)
	} else {
		var claimed bool
		claimed, err = e.st.SetIfAbsent(ctx, store.CollectionHashes, hash, idx)
		if err == nil && !claimed {
			winner, ok, lerr := e.lookupHash(ctx, hash)
			if lerr != nil {
				return d, false, lerr
			}
			if !ok || winner != incoming.ID {
				if err := e.st.Apply(ctx,
					store.Delete(store.CollectionJobs, incoming.ID),
					store.Delete(store.CollectionRecent, incoming.ID),
				); err != nil {
					return d, false, fmt.Errorf("withdraw %s: %w", incoming.ID, err)
				}
				return d, true, nil
			}
		}
	}
	if err != nil {
		return d, false, fmt.Errorf("index %s: %w", ShortHash(hash), err)
	}

	e.win.add(incoming)
	return d, false, nil
}

func (e *Engine) putOps(p model.Posting) ([]store.Op, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", p.ID, err)
	}
	recent, err := json.Marshal(RecentEntry{ID: p.ID, Hash: p.ContentHash, FetchedAt: p.FetchedAt})
	if err != nil {
		return nil, err
	}
	return []store.Op{
		store.Set(store.CollectionJobs, p.ID, body),
		store.Set(store.CollectionRecent, p.ID, recent),
	}, nil
}

func (e *Engine) indexOp(hash, id string) store.Op {
	b, _ := json.Marshal(id)
	return store.Set(store.CollectionHashes, hash, b)
}

func (e *Engine) lookupHash(ctx context.Context, hash string) (string, bool, error) {
	raw, found, err := e.st.Get(ctx, store.CollectionHashes, hash)
	if err != nil {
		return "", false, fmt.Errorf("hash index lookup: %w", err)
	}
	if !found {
		return "", false, nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", false, fmt.Errorf("decode hash index %s: %w", ShortHash(hash), err)
	}
	return id, true, nil
}

// Get loads a stored posting by id.
func (e *Engine) Get(ctx context.Context, id string) (model.Posting, bool, error) {
	return getPosting(ctx, e.st, id)
}

func getPosting(ctx context.Context, st store.Store, id string) (model.Posting, bool, error) {
	raw, found, err := st.Get(ctx, store.CollectionJobs, id)
	if err != nil {
		return model.Posting{}, false, fmt.Errorf("load posting %s: %w", id, err)
	}
	if !found {
		return model.Posting{}, false, nil
	}
	var p model.Posting
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Posting{}, false, fmt.Errorf("decode posting %s: %w", id, err)
	}
	return p, true, nil
}
