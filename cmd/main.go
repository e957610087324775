// jobmate-ingestion-service
//
// Pulls job postings from external feeds (Adzuna, Hacker News "Who is
// hiring", Arbeitnow, RemoteOK), normalizes and scores them, removes
// cross-source duplicates and publishes EVENT_JOB_DISCOVERED for every new
// posting.
//
//	serve    cron loop + HTTP /health /metrics /sources + gRPC health
//	run      one ingestion cycle, then exit
//	sources  print stored source metadata
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"jobmate/ingestion-service/internal/config"
	"jobmate/ingestion-service/internal/ingest"
	"jobmate/ingestion-service/internal/logging"
	"jobmate/ingestion-service/internal/model"
	"jobmate/ingestion-service/internal/scheduler"
)

const (
	version          = "1.0.0"
	serviceName      = "ingestion-service"
	badgerGCInterval = 10 * time.Minute
)

var (
	logLevel   string
	runSources []string

	rootCmd = &cobra.Command{
		Use:           "ingestion-service",
		Short:         "Job posting ingestion with cross-source deduplication",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled ingestion loop with health and metrics endpoints",
		RunE:  runServe,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a single ingestion cycle and print its summary",
		RunE:  runOnce,
	}

	sourcesCmd = &cobra.Command{
		Use:   "sources",
		Short: "Print the stored metadata of every source",
		RunE:  runSourcesList,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	runCmd.Flags().StringSliceVar(&runSources, "source", nil, "limit the cycle to these sources (repeatable)")
	rootCmd.AddCommand(serveCmd, runCmd, sourcesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[%s] %v\n", serviceName, err)
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log := logging.New(cfg.LogLevel).With("service", serviceName)
	return buildApp(ctx, cfg, log)
}

// ── serve ────────────────────────────────────────────────────────────────────

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	defer a.log.Sync()

	if err := a.pipeline.SeedMeta(ctx); err != nil {
		a.log.Warn("seeding source metadata failed", "error", err)
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/sources", a.sourcesHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", a.cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		a.log.Info("listening", "version", version, "port", a.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	// ── gRPC health ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", a.cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	go func() {
		if err := a.health.Serve(lis); err != nil {
			a.log.Error("gRPC server error", "error", err)
			cancel()
		}
	}()

	// ── Scheduler ────────────────────────────────────────────────────────────
	sched := scheduler.New(a.pipeline, a.cfg.ScrapeIntervalHours, a.log)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	a.log.Info("shutting down…")
	cancel()
	sched.Stop()
	a.health.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("HTTP shutdown error", "error", err)
	}
	a.log.Info("stopped")
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": serviceName,
		"version": version,
	})
}

func (a *app) sourcesHandler(w http.ResponseWriter, r *http.Request) {
	metas, err := ingest.LoadSourceMeta(r.Context(), a.store)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metas)
}

// ── run ──────────────────────────────────────────────────────────────────────

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	only := make([]model.Source, 0, len(runSources))
	for _, s := range runSources {
		src, err := model.ParseSource(s)
		if err != nil {
			return err
		}
		only = append(only, src)
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	defer a.log.Sync()

	sum, err := a.pipeline.RunCycle(ctx, only...)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tFETCHED\tNEW\tKEPT\tREPLACED\tFILTERED\tINVALID\tBACKLOG\tERROR")
	for _, s := range sum.Sources {
		errText := ""
		if s.Err != nil {
			errText = s.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.Source, s.Fetched, s.Admitted, s.Kept, s.Replaced, s.Filtered, s.Invalid+s.Failed, s.Backlogged, errText)
	}
	fmt.Fprintf(tw, "run %s finished in %s, %d backlog entries replayed\n",
		sum.RunID, sum.Duration.Round(time.Millisecond), sum.Replayed)
	return tw.Flush()
}

// ── sources ──────────────────────────────────────────────────────────────────

func runSourcesList(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	metas, err := ingest.LoadSourceMeta(cmd.Context(), a.store)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSTATUS\tLAST FETCH\tJOBS\tBREAKER\tRETRY AFTER\tERROR")
	for _, m := range metas {
		last := "-"
		if !m.LastFetchAt.IsZero() {
			last = m.LastFetchAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%ds\t%s\n",
			m.Source, m.Status, last, m.JobCount, m.BreakerState, m.RetryAfterSeconds, m.Error)
	}
	return tw.Flush()
}
