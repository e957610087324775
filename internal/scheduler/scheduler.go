// Package scheduler wires up the cron job that periodically triggers an
// ingestion cycle over every enabled source.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"jobmate/ingestion-service/internal/ingest"
	"jobmate/ingestion-service/internal/logging"
	"jobmate/ingestion-service/internal/model"
)

// Runner runs one ingestion cycle. *ingest.Pipeline satisfies it.
type Runner interface {
	RunCycle(ctx context.Context, only ...model.Source) (ingest.CycleSummary, error)
}

// Scheduler wraps robfig/cron and manages the ingestion loop.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	log    *logging.Logger
	spec   string // cron spec, e.g. "@every 6h"

	// running guards against overlapping cycles when one outlasts the
	// interval.
	running sync.Mutex
	wg      sync.WaitGroup
}

// New creates a Scheduler that fires every intervalHours hours.
func New(runner Runner, intervalHours int, log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Nop()
	}
	log = log.Component("scheduler")
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cron.PrintfLogger(log))),
		runner: runner,
		log:    log,
		spec:   fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the job and starts the scheduler. Also runs one cycle
// immediately so the feed is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info("cron started", "spec", s.spec)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runCycle(ctx)
	}()

	return nil
}

// Stop shuts the scheduler down and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("cron stopped")
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if !s.running.TryLock() {
		s.log.Warn("previous cycle still running, skipping tick")
		return
	}
	defer s.running.Unlock()

	if ctx.Err() != nil {
		return
	}
	sum, err := s.runner.RunCycle(ctx)
	if err != nil {
		s.log.Error("ingestion cycle failed", "run", sum.RunID, "error", err)
		return
	}
	failed := 0
	for _, src := range sum.Sources {
		if src.Err != nil {
			failed++
		}
	}
	s.log.Info("ingestion cycle complete", "run", sum.RunID, "sources", len(sum.Sources), "failed_sources", failed)
}
