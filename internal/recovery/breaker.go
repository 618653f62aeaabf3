// Package recovery holds the circuit breakers that guard external services and the
// coordinator that resets and probes them.
package recovery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/devasignhq/devasign-api-sub002/internal/config"
	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

// State is the position of a breaker.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

const (
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 60 * time.Second
)

// Snapshot is a point-in-time copy of a breaker's counters.
type Snapshot struct {
	Service             string     `json:"service"`
	State               State      `json:"state"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	TotalFailures       int        `json:"totalFailures"`
	LastFailure         *time.Time `json:"lastFailure,omitempty"`
}

// Breaker stops calls to a failing service. After threshold consecutive transient
// failures it opens and rejects calls with a CircuitOpen error. Once openTimeout has
// passed a single trial call is let through: success closes the breaker, failure
// opens it again.
type Breaker struct {
	name        string
	threshold   int
	openTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu          sync.Mutex
	state       State
	consecutive int
	total       int
	lastFailure time.Time
	openedAt    time.Time
	trialActive bool
}

func NewBreaker(name string, cfg config.RecoveryConfig, logger *slog.Logger) *Breaker {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = defaultOpenTimeout
	}
	return &Breaker{
		name:        name,
		threshold:   threshold,
		openTimeout: timeout,
		logger:      logger.With("service", name),
		now:         time.Now,
		state:       StateClosed,
	}
}

func (b *Breaker) Name() string { return b.name }

// Execute runs fn unless the breaker is open. Only transient errors count as
// failures; a validation or not-found answer proves the service is reachable.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	trial, err := b.acquire()
	if err != nil {
		return err
	}

	returned := false
	defer func() {
		// fn panicked; free the trial slot so the breaker can still recover.
		if !returned {
			b.release(trial)
		}
	}()
	callErr := fn(ctx)
	returned = true

	switch {
	case callErr == nil || !core.IsTransient(callErr):
		b.onSuccess(trial)
	case ctx.Err() != nil:
		// The caller gave up; that says nothing about the service.
		b.release(trial)
	default:
		b.onFailure(trial)
	}
	return callErr
}

func (b *Breaker) acquire() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.openTimeout {
			return false, b.openError()
		}
		b.state = StateHalfOpen
		b.logger.Info("circuit half-open, allowing trial call")
	}
	if b.trialActive {
		return false, b.openError()
	}
	b.trialActive = true
	return true, nil
}

func (b *Breaker) openError() error {
	return core.NewError(core.KindCircuitOpen, b.name+" is temporarily unavailable", nil).
		WithDetail("service", b.name).
		WithDetail("retry_after", b.openedAt.Add(b.openTimeout).Sub(b.now()).Round(time.Second).String())
}

func (b *Breaker) onSuccess(trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if trial {
		b.trialActive = false
	}
	if b.state != StateClosed {
		b.logger.Info("circuit closed")
	}
	b.state = StateClosed
	b.consecutive = 0
}

func (b *Breaker) onFailure(trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if trial {
		b.trialActive = false
	}
	b.consecutive++
	b.total++
	b.lastFailure = b.now()

	if b.state == StateHalfOpen || b.consecutive >= b.threshold {
		if b.state != StateOpen {
			b.logger.Warn("circuit opened", "consecutive_failures", b.consecutive)
		}
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

func (b *Breaker) release(trial bool) {
	if !trial {
		return
	}
	b.mu.Lock()
	b.trialActive = false
	b.mu.Unlock()
}

// Reset forces the breaker closed and clears the consecutive failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecutive = 0
	b.trialActive = false
	b.logger.Info("circuit reset")
}

// State reports the current state, moving OPEN to HALF_OPEN when the timeout passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.openTimeout {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) Snapshot() Snapshot {
	state := b.State()
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{
		Service:             b.name,
		State:               state,
		ConsecutiveFailures: b.consecutive,
		TotalFailures:       b.total,
	}
	if !b.lastFailure.IsZero() {
		t := b.lastFailure
		s.LastFailure = &t
	}
	return s
}
