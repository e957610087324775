package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"jobmate/ingestion-service/internal/breaker"
	"jobmate/ingestion-service/internal/config"
	"jobmate/ingestion-service/internal/db"
	"jobmate/ingestion-service/internal/dedup"
	"jobmate/ingestion-service/internal/grpcserver"
	"jobmate/ingestion-service/internal/ingest"
	"jobmate/ingestion-service/internal/logging"
	"jobmate/ingestion-service/internal/metrics"
	"jobmate/ingestion-service/internal/model"
	"jobmate/ingestion-service/internal/notify"
	"jobmate/ingestion-service/internal/source"
	"jobmate/ingestion-service/internal/store"
)

// app is the wired service. close releases connections in reverse order.
type app struct {
	cfg      *config.Config
	log      *logging.Logger
	store    store.Store
	sources  source.Set
	breakers *breaker.Registry
	metrics  *metrics.Metrics
	health   *grpcserver.Server
	pipeline *ingest.Pipeline

	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, log *logging.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, metrics: metrics.New()}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	// ── Connections ─────────────────────────────────────────────────────────
	var (
		rdb  *redis.Client
		pool *pgxpool.Pool
		bdb  *db.Badger
		err  error
	)
	if cfg.RedisURL != "" {
		log.Info("connecting to Redis…")
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil && cfg.StateBackend == store.BackendRedis {
			return nil, fmt.Errorf("redis: %w", err)
		}
		if err != nil {
			log.Warn("redis unavailable, notifications go to the log", "error", err)
			rdb = nil
		} else {
			a.closers = append(a.closers, func() { rdb.Close() })
			log.Info("redis connected ✓")
		}
	}
	if cfg.DatabaseURL != "" {
		log.Info("connecting to PostgreSQL…")
		pool, err = db.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil && cfg.StateBackend == store.BackendPostgres {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err != nil {
			log.Warn("postgres unavailable, search configs disabled", "error", err)
			pool = nil
		} else {
			a.closers = append(a.closers, pool.Close)
			log.Info("postgres connected ✓")
		}
	}
	if cfg.StateBackend == store.BackendBadger {
		bdb, err = db.OpenBadger(db.BadgerConfig{Path: cfg.BadgerPath, GCInterval: badgerGCInterval, GCDiscardRatio: 0.5}, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { bdb.Close() })
	}

	clients := store.Clients{Redis: rdb, RedisPrefix: cfg.StatePrefix, Postgres: pool}
	if bdb != nil {
		clients.Badger = bdb.DB
	}
	a.store, err = store.Open(ctx, cfg.StateBackend, clients)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { a.store.Close() })
	log.Info("state store ready", "backend", cfg.StateBackend)

	// ── Sources and breakers ────────────────────────────────────────────────
	var enabled []source.Source
	for _, src := range []source.Source{
		source.NewAdzuna(cfg.AdzunaAppID, cfg.AdzunaAppKey, cfg.AdzunaCountry),
		source.NewHackerNews(log),
		source.NewArbeitnow(),
		source.NewRemoteOK(),
	} {
		if cfg.SourceEnabled(src.Name()) {
			enabled = append(enabled, src)
		}
	}
	if a.sources, err = source.NewSet(enabled...); err != nil {
		return nil, err
	}

	a.health = grpcserver.New(a.sources.Names(), log)
	bcfg := breaker.DefaultConfig()
	bcfg.OnStateChange = func(name string, from, to breaker.State) {
		log.Warn("circuit breaker transition", "source", name, "from", from.String(), "to", to.String())
		a.metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		a.health.OnBreakerChange(name, from, to)
	}
	a.breakers = breaker.NewRegistry(bcfg)
	for _, name := range a.sources.Names() {
		b := a.breakers.Get(string(name))
		a.metrics.BreakerState.WithLabelValues(b.Name()).Set(float64(b.State()))
	}

	// ── Pipeline ────────────────────────────────────────────────────────────
	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if rdb != nil {
		notifier = notify.NewRedisPublisher(rdb, cfg.NotifyChannel, log)
	}
	deps := ingest.Deps{
		Sources:  a.sources,
		Breakers: a.breakers,
		Dedup:    dedup.New(a.store, dedup.Config{Window: cfg.FuzzyWindow}, log),
		Store:    a.store,
		Notifier: notifier,
		Metrics:  a.metrics,
		Log:      log,
	}
	if pool != nil {
		deps.SearchConfigs = db.NewSearchConfigs(pool)
	}
	a.pipeline = ingest.New(deps, pipelineOptions(cfg, a.sources.Names()))

	ok = true
	return a, nil
}

func pipelineOptions(cfg *config.Config, names []model.Source) ingest.Options {
	opts := ingest.Options{
		Sources:      make(map[model.Source]ingest.SourceSettings, len(names)),
		RedFlags:     cfg.Sources.RedFlags,
		FetchTimeout: cfg.FetchTimeout,
		Stagger:      cfg.SourceStagger,
	}
	for _, n := range names {
		sc := cfg.Source(n)
		opts.Sources[n] = ingest.SourceSettings{
			Reliability: sc.Reliability,
			Limit:       sc.Limit,
			RedFlags:    sc.RedFlags,
			Params: model.FetchParams{
				Queries:   sc.Queries,
				Locations: sc.Locations,
				ThreadIDs: sc.ThreadIDs,
			},
		}
	}
	return opts
}
