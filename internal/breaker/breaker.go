// Package breaker isolates failing job sources. Each source gets its own
// circuit breaker; an open breaker rejects fetches until the reset timeout
// has elapsed, then admits probe calls before closing again.
package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the circuit breaker state.
type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ErrCircuitOpen matches every *OpenError via errors.Is.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// OpenError is returned when a call is rejected by an open breaker.
type OpenError struct {
	Source         string
	TimeUntilReset time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit open for %s: retry in %s", e.Source, e.TimeUntilReset.Round(time.Millisecond))
}

func (e *OpenError) Is(target error) bool { return target == ErrCircuitOpen }

// Config tunes a breaker. Zero values fall back to DefaultConfig.
type Config struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	HalfOpenRequests int

	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(name string, from, to State)

	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// DefaultConfig returns the production settings: open after 5 failures,
// probe after 60s, close after 3 successful probes.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
		HalfOpenRequests: 3,
	}
}

// Stats is a point-in-time snapshot of a breaker.
type Stats struct {
	Name                 string
	State                State
	FailureCount         int
	SuccessCount         int
	HalfOpenSuccessCount int
	OpenedAt             time.Time
	LastFailureAt        time.Time
	LastSuccessAt        time.Time
	TimeUntilReset       time.Duration
}

type transition struct {
	from, to State
}

// Breaker guards calls to one source.
type Breaker struct {
	name string
	cfg  Config

	mu                   sync.Mutex
	state                State
	failureCount         int
	successCount         int
	halfOpenSuccessCount int
	openedAt             time.Time
	lastFailureAt        time.Time
	lastSuccessAt        time.Time
	pending              []transition
}

// New creates a closed breaker for the named source.
func New(name string, cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenRequests <= 0 {
		cfg.HalfOpenRequests = def.HalfOpenRequests
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{name: name, cfg: cfg, state: Closed}
}

// Name returns the source this breaker guards.
func (b *Breaker) Name() string { return b.name }

// Execute runs fn if the breaker admits the call and records its outcome.
// A rejected call returns an *OpenError without invoking fn. Errors from fn
// are returned unchanged.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

// Call is Execute for functions that return a value.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var out T
	err := b.Execute(func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.unlockAndNotify()

	b.maybeHalfOpen()
	if b.state != Open {
		return nil
	}
	return &OpenError{Source: b.name, TimeUntilReset: b.timeUntilReset()}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.unlockAndNotify()

	now := b.cfg.Now()
	if err != nil {
		b.lastFailureAt = now
		b.onFailure(now)
		return
	}
	b.lastSuccessAt = now
	b.onSuccess()
}

func (b *Breaker) onFailure(now time.Time) {
	switch b.state {
	case Closed:
		b.failureCount++
		b.successCount = 0
		if b.failureCount >= b.cfg.FailureThreshold {
			b.trip(now)
		}
	case HalfOpen:
		b.failureCount++
		b.trip(now)
	case Open:
		// A call admitted before another caller tripped the breaker.
		b.failureCount++
	}
}

func (b *Breaker) onSuccess() {
	b.successCount++
	switch b.state {
	case Closed:
		b.failureCount = 0
	case HalfOpen:
		b.halfOpenSuccessCount++
		if b.halfOpenSuccessCount >= b.cfg.HalfOpenRequests {
			b.failureCount = 0
			b.successCount = 0
			b.halfOpenSuccessCount = 0
			b.openedAt = time.Time{}
			b.transitionTo(Closed)
		}
	}
}

func (b *Breaker) trip(now time.Time) {
	b.openedAt = now
	b.halfOpenSuccessCount = 0
	b.transitionTo(Open)
}

// maybeHalfOpen moves an expired open breaker to half-open. Caller holds mu.
func (b *Breaker) maybeHalfOpen() {
	if b.state != Open {
		return
	}
	if b.cfg.Now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		b.halfOpenSuccessCount = 0
		b.transitionTo(HalfOpen)
	}
}

func (b *Breaker) timeUntilReset() time.Duration {
	if b.state != Open {
		return 0
	}
	return max(0, b.cfg.ResetTimeout-b.cfg.Now().Sub(b.openedAt))
}

func (b *Breaker) transitionTo(to State) {
	if b.state == to {
		return
	}
	b.pending = append(b.pending, transition{from: b.state, to: to})
	b.state = to
}

func (b *Breaker) unlockAndNotify() {
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	if b.cfg.OnStateChange == nil {
		return
	}
	for _, t := range pending {
		b.cfg.OnStateChange(b.name, t.from, t.to)
	}
}

// State returns the current state, applying the open → half-open timeout.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.unlockAndNotify()
	b.maybeHalfOpen()
	return b.state
}

// IsAvailable reports whether the next call would be admitted.
func (b *Breaker) IsAvailable() bool {
	return b.State() != Open
}

// Stats returns a snapshot of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.unlockAndNotify()
	b.maybeHalfOpen()
	return Stats{
		Name:                 b.name,
		State:                b.state,
		FailureCount:         b.failureCount,
		SuccessCount:         b.successCount,
		HalfOpenSuccessCount: b.halfOpenSuccessCount,
		OpenedAt:             b.openedAt,
		LastFailureAt:        b.lastFailureAt,
		LastSuccessAt:        b.lastSuccessAt,
		TimeUntilReset:       b.timeUntilReset(),
	}
}

// Reset forces the breaker closed and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.unlockAndNotify()
	b.failureCount = 0
	b.successCount = 0
	b.halfOpenSuccessCount = 0
	b.openedAt = time.Time{}
	b.transitionTo(Closed)
}
