package breaker_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/ingestion-service/internal/breaker"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu          sync.Mutex
	transitions []string
}

func (r *recorder) record(name string, from, to breaker.State) {
	r.mu.Lock()
	r.transitions = append(r.transitions, from.String()+"->"+to.String())
	r.mu.Unlock()
}

func newBreaker(t *testing.T) (*breaker.Breaker, *fakeClock, *recorder) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	cfg := breaker.DefaultConfig()
	cfg.Now = clock.Now
	cfg.OnStateChange = rec.record
	return breaker.New("adzuna", cfg), clock, rec
}

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _, _ := newBreaker(t)
	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, b.Execute(fail), errBoom)
		assert.Equal(t, breaker.Closed, b.State())
	}
	assert.ErrorIs(t, b.Execute(fail), errBoom)
	assert.Equal(t, breaker.Open, b.State())
	assert.False(t, b.IsAvailable())
	assert.Equal(t, 5, b.Stats().FailureCount)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _, _ := newBreaker(t)
	for i := 0; i < 4; i++ {
		_ = b.Execute(fail)
	}
	require.NoError(t, b.Execute(succeed))
	assert.Equal(t, 0, b.Stats().FailureCount)
	for i := 0; i < 4; i++ {
		_ = b.Execute(fail)
	}
	assert.Equal(t, breaker.Closed, b.State())
}

func TestBreaker_OpenRejectsWithoutCallingFn(t *testing.T) {
	b, clock, _ := newBreaker(t)
	for i := 0; i < 5; i++ {
		_ = b.Execute(fail)
	}
	clock.Advance(20 * time.Second)

	called := false
	err := b.Execute(func() error { called = true; return nil })

	assert.False(t, called, "wrapped function must not run while open")
	assert.ErrorIs(t, err, breaker.ErrCircuitOpen)
	var openErr *breaker.OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "adzuna", openErr.Source)
	assert.Equal(t, 40*time.Second, openErr.TimeUntilReset)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock, rec := newBreaker(t)
	for i := 0; i < 5; i++ {
		_ = b.Execute(fail)
	}
	clock.Advance(60 * time.Second)
	assert.Equal(t, breaker.HalfOpen, b.State(), "passive read applies the timeout")

	require.NoError(t, b.Execute(succeed))
	assert.Equal(t, 1, b.Stats().HalfOpenSuccessCount)

	called := false
	err := b.Execute(func() error { called = true; return errBoom })
	assert.True(t, called, "half-open admits the probe")
	assert.ErrorIs(t, err, errBoom)

	stats := b.Stats()
	assert.Equal(t, breaker.Open, stats.State)
	assert.Equal(t, 0, stats.HalfOpenSuccessCount)
	assert.Equal(t, 60*time.Second, stats.TimeUntilReset)

	assert.Equal(t, []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->OPEN"}, rec.transitions)
}

func TestBreaker_HalfOpenClosesAfterProbes(t *testing.T) {
	b, clock, rec := newBreaker(t)
	for i := 0; i < 5; i++ {
		_ = b.Execute(fail)
	}
	clock.Advance(61 * time.Second)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Execute(succeed))
	}
	stats := b.Stats()
	assert.Equal(t, breaker.Closed, stats.State)
	assert.Zero(t, stats.FailureCount)
	assert.Zero(t, stats.HalfOpenSuccessCount)
	assert.Equal(t, []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}, rec.transitions)
}

func TestBreaker_Reset(t *testing.T) {
	b, _, _ := newBreaker(t)
	for i := 0; i < 5; i++ {
		_ = b.Execute(fail)
	}
	b.Reset()
	assert.Equal(t, breaker.Closed, b.State())
	assert.True(t, b.IsAvailable())
	assert.Zero(t, b.Stats().FailureCount)
}

func TestCall_ReturnsValue(t *testing.T) {
	b, _, _ := newBreaker(t)
	n, err := breaker.Call(b, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	for i := 0; i < 5; i++ {
		_, _ = breaker.Call(b, func() (int, error) { return 0, errBoom })
	}
	_, err = breaker.Call(b, func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, breaker.ErrCircuitOpen)
}

func TestBreaker_ConcurrentCalls(t *testing.T) {
	b, _, _ := newBreaker(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(succeed)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, b.Stats().SuccessCount)
	assert.Equal(t, breaker.Closed, b.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "CLOSED", breaker.Closed.String())
	assert.Equal(t, "HALF_OPEN", breaker.HalfOpen.String())
	assert.Equal(t, "OPEN", breaker.Open.String())
	assert.Equal(t, "UNKNOWN(9)", breaker.State(9).String())
}

// ── Registry ───────────────────────────────────────────────────────────────

func TestRegistry_SameInstancePerName(t *testing.T) {
	r := breaker.NewRegistry(breaker.DefaultConfig())
	a1 := r.Get("adzuna")
	a2 := r.Get("adzuna")
	hn := r.Get("hackernews")

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, hn)

	for i := 0; i < 5; i++ {
		_ = a1.Execute(fail)
	}
	assert.Equal(t, breaker.Open, r.Get("adzuna").State())
	assert.Equal(t, breaker.Closed, hn.State(), "breakers are independent per source")

	stats := r.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "adzuna", stats[0].Name)
	assert.Equal(t, "hackernews", stats[1].Name)

	r.ResetAll()
	assert.Equal(t, breaker.Closed, a1.State())
}

func TestRegistry_ConcurrentGet(t *testing.T) {
	r := breaker.NewRegistry(breaker.DefaultConfig())
	got := make([]*breaker.Breaker, 32)
	var wg sync.WaitGroup
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = r.Get("remoteok")
		}(i)
	}
	wg.Wait()
	for _, b := range got {
		assert.Same(t, got[0], b)
	}
}
