package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/ingestion-service/internal/ingest"
	"jobmate/ingestion-service/internal/model"
	"jobmate/ingestion-service/internal/scheduler"
)

type countingRunner struct {
	calls atomic.Int32
	block chan struct{}
}

func (r *countingRunner) RunCycle(ctx context.Context, _ ...model.Source) (ingest.CycleSummary, error) {
	r.calls.Add(1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
		}
	}
	return ingest.CycleSummary{RunID: "test"}, nil
}

func TestScheduler_RunsImmediately(t *testing.T) {
	r := &countingRunner{}
	s := scheduler.New(r, 6, nil)
	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	s.Stop()
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestScheduler_StopWaitsForCycle(t *testing.T) {
	r := &countingRunner{block: make(chan struct{})}
	s := scheduler.New(r, 1, nil)
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a cycle was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(r.block)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the cycle finished")
	}
}
