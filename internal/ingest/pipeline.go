// Package ingest runs ingestion cycles: fetch every enabled source through
// its circuit breaker, canonicalize and filter the records, push each one
// through the dedup engine and announce the postings that are new.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"jobmate/ingestion-service/internal/breaker"
	"jobmate/ingestion-service/internal/dedup"
	"jobmate/ingestion-service/internal/logging"
	"jobmate/ingestion-service/internal/metrics"
	"jobmate/ingestion-service/internal/model"
	"jobmate/ingestion-service/internal/notify"
	"jobmate/ingestion-service/internal/scoring"
	"jobmate/ingestion-service/internal/source"
	"jobmate/ingestion-service/internal/store"
)

const (
	defaultFetchTimeout  = 30 * time.Second
	defaultRecordWorkers = 8
	defaultLimit         = 100
)

// SourceSettings tunes one source.
type SourceSettings struct {
	Reliability int // 0..100, scoring.DefaultReliability when zero
	Limit       int
	Params      model.FetchParams
	RedFlags    []string
}

// Options tunes the pipeline. Zero values fall back to defaults.
type Options struct {
	Sources       map[model.Source]SourceSettings
	RedFlags      []string // applied to every source
	FetchTimeout  time.Duration
	Stagger       time.Duration // delay between source fetch starts
	RecordWorkers int
	Now           func() time.Time
}

// SearchConfigLoader supplies active user searches. Optional.
type SearchConfigLoader interface {
	LoadActiveConfigs(ctx context.Context) ([]model.SearchConfig, error)
}

// Deps are the collaborators of a Pipeline. SearchConfigs may be nil.
type Deps struct {
	Sources       source.Set
	Breakers      *breaker.Registry
	Dedup         *dedup.Engine
	Store         store.Store
	Notifier      notify.Notifier
	Metrics       *metrics.Metrics
	SearchConfigs SearchConfigLoader
	Log           *logging.Logger
}

// RecordError describes a record that did not make it into the store.
type RecordError struct {
	Source   model.Source
	RecordID string
	Stage    string // map, validate, dedup, panic
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s record %s: %s: %v", e.Source, e.RecordID, e.Stage, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// ErrFetchUnsuccessful is returned when a source reports success=false
// without an error.
var ErrFetchUnsuccessful = errors.New("fetch reported failure")

// SourceSummary counts what happened to one source's records in a cycle.
type SourceSummary struct {
	Source     model.Source
	Fetched    int
	Admitted   int
	Kept       int
	Replaced   int
	Filtered   int
	Invalid    int
	Failed     int
	Backlogged int
	Err        error
}

func (s *SourceSummary) count(outcome string) {
	switch outcome {
	case metrics.OutcomeAdmitted:
		s.Admitted++
	case metrics.OutcomeKept:
		s.Kept++
	case metrics.OutcomeReplaced:
		s.Replaced++
	case metrics.OutcomeFiltered:
		s.Filtered++
	case metrics.OutcomeInvalid:
		s.Invalid++
	case metrics.OutcomeBacklogged:
		s.Backlogged++
	default:
		s.Failed++
	}
}

// CycleSummary is the result of RunCycle.
type CycleSummary struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Replayed int
	Sources  []SourceSummary
}

// Pipeline is safe for concurrent use, though cycles are normally run one
// at a time by the scheduler.
type Pipeline struct {
	sources  source.Set
	breakers *breaker.Registry
	dedup    *dedup.Engine
	st       store.Store
	notifier notify.Notifier
	metrics  *metrics.Metrics
	configs  SearchConfigLoader
	log      *logging.Logger

	validate *validator.Validate
	backlog  *backlog
	opts     Options
}

// New builds a pipeline. Breakers, Notifier and Metrics get defaults when
// nil.
func New(deps Deps, opts Options) *Pipeline {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.RecordWorkers <= 0 {
		opts.RecordWorkers = defaultRecordWorkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = logging.Nop()
	}
	if deps.Breakers == nil {
		deps.Breakers = breaker.NewRegistry(breaker.DefaultConfig())
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier(deps.Log)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	return &Pipeline{
		sources:  deps.Sources,
		breakers: deps.Breakers,
		dedup:    deps.Dedup,
		st:       deps.Store,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		configs:  deps.SearchConfigs,
		log:      deps.Log.Component("pipeline"),
		validate: validator.New(),
		backlog:  newBacklog(deps.Store),
		opts:     opts,
	}
}

// RunCycle runs one ingestion cycle over the given sources, or over every
// registered source when none are named. Source failures are reported in
// the summary; the returned error is reserved for bad arguments and
// cancellation.
func (p *Pipeline) RunCycle(ctx context.Context, only ...model.Source) (CycleSummary, error) {
	names := p.sources.Names()
	if len(only) > 0 {
		names = names[:0:0]
		for _, n := range only {
			if _, ok := p.sources[n]; !ok {
				return CycleSummary{}, fmt.Errorf("source %s is not enabled", n)
			}
			names = append(names, n)
		}
	}

	sum := CycleSummary{RunID: uuid.NewString(), Started: p.opts.Now()}
	log := p.log.With("run", sum.RunID)
	log.Info("cycle started", "sources", names)

	if err := p.dedup.LoadWindow(ctx); err != nil {
		log.Warn("fuzzy window load failed, running exact-only", "error", err)
	}
	sum.Replayed = p.replayBacklog(ctx, log)

	settings := p.settingsFor(ctx, names, log)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if p.opts.Stagger > 0 {
		limiter = rate.NewLimiter(rate.Every(p.opts.Stagger), 1)
	}

	results := make([]SourceSummary, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				results[i] = SourceSummary{Source: name, Err: err}
				return nil
			}
			results[i] = p.runSource(ctx, name, settings[name], log)
			return nil
		})
	}
	_ = g.Wait()

	sum.Sources = results
	sum.Duration = time.Since(sum.Started)

	var inserted, dupes, replaced, filtered, failed int
	for _, s := range results {
		inserted += s.Admitted
		dupes += s.Kept
		replaced += s.Replaced
		filtered += s.Filtered
		failed += s.Invalid + s.Failed + s.Backlogged
	}
	log.Info("cycle done",
		"inserted", inserted, "duplicates", dupes, "replaced", replaced,
		"filtered", filtered, "failed", failed, "replayed", sum.Replayed,
		"duration", sum.Duration.Round(time.Millisecond))

	result := "ok"
	if ctx.Err() != nil {
		result = "cancelled"
	}
	p.metrics.CyclesTotal.WithLabelValues(result).Inc()
	return sum, ctx.Err()
}

// settingsFor resolves per-source settings, widening Adzuna's queries with
// the active user searches when a loader is configured.
func (p *Pipeline) settingsFor(ctx context.Context, names []model.Source, log *logging.Logger) map[model.Source]SourceSettings {
	out := make(map[model.Source]SourceSettings, len(names))
	for _, n := range names {
		s := p.opts.Sources[n]
		if s.Reliability <= 0 {
			s.Reliability = scoring.ReliabilityFor(n, nil)
		}
		if s.Limit <= 0 {
			s.Limit = defaultLimit
		}
		s.RedFlags = append(append([]string(nil), p.opts.RedFlags...), s.RedFlags...)
		out[n] = s
	}

	if p.configs == nil {
		return out
	}
	adz, ok := out[model.SourceAdzuna]
	if !ok {
		return out
	}
	configs, err := p.configs.LoadActiveConfigs(ctx)
	if err != nil {
		log.Warn("loading search configs failed, using static queries", "error", err)
		return out
	}
	adz.Params.Queries = union(adz.Params.Queries, collect(configs, func(c model.SearchConfig) []string { return c.JobTitles }))
	adz.Params.Locations = union(adz.Params.Locations, collect(configs, func(c model.SearchConfig) []string { return c.Locations }))
	out[model.SourceAdzuna] = adz
	log.Debug("search configs merged", "configs", len(configs), "queries", len(adz.Params.Queries))
	return out
}

func (p *Pipeline) runSource(ctx context.Context, name model.Source, s SourceSettings, log *logging.Logger) SourceSummary {
	sum := SourceSummary{Source: name}
	src := p.sources[name]
	b := p.breakers.Get(string(name))
	log = log.With("source", name)

	fetchedAt := p.opts.Now()
	res, err := breaker.Call(b, func() (model.FetchResult, error) {
		return p.fetch(ctx, src, s)
	})
	p.metrics.BreakerState.WithLabelValues(string(name)).Set(float64(b.State()))

	if err != nil {
		sum.Err = err
		meta := model.SourceMeta{
			Source:            name,
			LastFetchAt:       fetchedAt,
			Status:            model.SourceStatusError,
			Error:             err.Error(),
			RetryAfterSeconds: retryAfter(err, res),
			BreakerState:      b.State().String(),
		}
		if errors.Is(err, breaker.ErrCircuitOpen) {
			log.Warn("source skipped, circuit open", "error", err)
		} else {
			log.Error("fetch failed", "error", err, "retry_after", meta.RetryAfterSeconds)
		}
		p.writeMeta(ctx, meta)
		return sum
	}

	sum.Fetched = len(res.Records)
	outcomes := make([]string, len(res.Records))
	var g errgroup.Group
	g.SetLimit(p.opts.RecordWorkers)
	for i, rec := range res.Records {
		g.Go(func() error {
			outcome, err := p.handleRecord(ctx, src, rec, s, fetchedAt)
			if err != nil {
				log.Warn("record not stored", "record", rec.LocalID, "outcome", outcome, "error", err)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		sum.count(o)
		p.metrics.RecordsTotal.WithLabelValues(string(name), o).Inc()
	}
	p.metrics.BacklogSize.Set(float64(p.backlog.size()))

	p.writeMeta(ctx, model.SourceMeta{
		Source:       name,
		LastFetchAt:  fetchedAt,
		JobCount:     sum.Fetched,
		Status:       model.SourceStatusSuccess,
		BreakerState: b.State().String(),
	})
	log.Info("source done",
		"fetched", sum.Fetched, "inserted", sum.Admitted, "duplicates", sum.Kept,
		"replaced", sum.Replaced, "filtered", sum.Filtered, "invalid", sum.Invalid,
		"backlogged", sum.Backlogged, "failed", sum.Failed)
	return sum
}

// fetch runs one bounded fetch. A batch that arrives after the deadline is
// discarded and counted as a failure.
func (p *Pipeline) fetch(ctx context.Context, src source.Source, s SourceSettings) (model.FetchResult, error) {
	fctx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
	defer cancel()

	start := time.Now()
	res, err := src.Fetch(fctx, s.Params, s.Limit)
	p.metrics.FetchDuration.WithLabelValues(string(src.Name())).Observe(time.Since(start).Seconds())

	if err != nil {
		return res, err
	}
	if fctx.Err() != nil {
		return model.FetchResult{}, fmt.Errorf("fetch %s: %w", src.Name(), fctx.Err())
	}
	if !res.Success {
		if res.Error != "" {
			return res, fmt.Errorf("%w: %s", ErrFetchUnsuccessful, res.Error)
		}
		return res, ErrFetchUnsuccessful
	}
	return res, nil
}

// handleRecord maps, filters and dedups one record. The returned outcome is
// one of the metrics.Outcome* labels; a non-nil error explains why the
// record was not stored.
func (p *Pipeline) handleRecord(ctx context.Context, src source.Source, rec model.RawRecord, s SourceSettings, fetchedAt time.Time) (outcome string, err error) {
	name := src.Name()
	defer func() {
		if r := recover(); r != nil {
			outcome = metrics.OutcomeFailed
			err = &RecordError{Source: name, RecordID: rec.LocalID, Stage: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()

	job, err := src.Map(rec)
	if err != nil {
		return metrics.OutcomeInvalid, &RecordError{Source: name, RecordID: rec.LocalID, Stage: "map", Err: err}
	}

	posting := Canonicalize(name, job, fetchedAt, s.Reliability)
	if ContainsRedFlag(posting, s.RedFlags) {
		return metrics.OutcomeFiltered, nil
	}
	if err := p.validate.Struct(posting); err != nil {
		return metrics.OutcomeInvalid, &RecordError{Source: name, RecordID: rec.LocalID, Stage: "validate", Err: err}
	}

	outcome, err = p.decide(ctx, posting)
	if err != nil {
		persisted := p.backlog.push(ctx, posting)
		return metrics.OutcomeBacklogged, &RecordError{
			Source: name, RecordID: rec.LocalID, Stage: "dedup",
			Err: fmt.Errorf("held in backlog (persisted=%t): %w", persisted, err),
		}
	}
	return outcome, nil
}

// decide runs the dedup engine and notifies on admission. Notification
// failures are logged, not returned: the posting is already stored.
func (p *Pipeline) decide(ctx context.Context, posting model.Posting) (string, error) {
	d, err := p.dedup.Process(ctx, posting)
	if err != nil {
		return metrics.OutcomeFailed, err
	}
	switch d.Outcome {
	case dedup.Admitted:
		if err := p.notifier.NotifyNewPosting(ctx, d.Winner); err != nil {
			p.log.Warn("notification failed (non-fatal)", "job", d.Winner.ID, "error", err)
		}
		return metrics.OutcomeAdmitted, nil
	case dedup.Replaced:
		p.log.Debug("posting replaced", "winner", d.Winner.ID, "loser", d.ExistingID, "tier", d.Tier)
		return metrics.OutcomeReplaced, nil
	default:
		return metrics.OutcomeKept, nil
	}
}

// replayBacklog retries postings held back by earlier store failures.
func (p *Pipeline) replayBacklog(ctx context.Context, log *logging.Logger) int {
	if err := p.backlog.load(ctx); err != nil {
		log.Warn("backlog load failed, replaying in-memory entries only", "error", err)
	}
	pending := p.backlog.drain()
	replayed := 0
	for _, posting := range pending {
		outcome, err := p.decide(ctx, posting)
		if err != nil {
			p.backlog.push(ctx, posting)
			log.Warn("backlog replay failed", "job", posting.ID, "error", err)
			continue
		}
		replayed++
		p.metrics.RecordsTotal.WithLabelValues(string(posting.Source), outcome).Inc()
		if err := p.backlog.done(ctx, posting.ID); err != nil {
			log.Warn("backlog entry not cleared", "job", posting.ID, "error", err)
		}
	}
	p.metrics.BacklogSize.Set(float64(p.backlog.size()))
	if len(pending) > 0 {
		log.Info("backlog replayed", "replayed", replayed, "remaining", p.backlog.size())
	}
	return replayed
}

// BacklogSize reports how many postings await replay.
func (p *Pipeline) BacklogSize() int { return p.backlog.size() }

func retryAfter(err error, res model.FetchResult) int {
	if s := source.RetryAfterSeconds(err); s > 0 {
		return s
	}
	var open *breaker.OpenError
	if errors.As(err, &open) {
		return int(math.Ceil(open.TimeUntilReset.Seconds()))
	}
	return res.RetryAfterSeconds
}

func collect(configs []model.SearchConfig, f func(model.SearchConfig) []string) []string {
	var out []string
	for _, c := range configs {
		out = append(out, f(c)...)
	}
	return out
}

// union merges b into a, dropping blanks and duplicates. Order is sorted
// so fetches are reproducible.
func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
