package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Service names with a recovery strategy.
const (
	ServiceAIProvider = "ai-provider"
	ServiceGitHub     = "github"
	ServiceDatabase   = "database"
	ServiceLedger     = "ledger"

	// KindComplete runs the full recovery sequence across every service.
	KindComplete = "complete"
)

const defaultProbeTimeout = 10 * time.Second

// Status is the outcome of a recovery attempt.
type Status string

const (
	StatusRecovered         Status = "recovered"
	StatusPartial           Status = "partial"
	StatusFailed            Status = "failed"
	StatusFallback          Status = "fallback"
	StatusAlreadyInProgress Status = "already_in_progress"
	StatusUnknownService    Status = "unknown_service"
)

// Probe is a lightweight connectivity check.
type Probe func(ctx context.Context) error

// Service describes one dependency the coordinator can recover.
type Service struct {
	Name    string
	Breaker *Breaker
	// Missing lists absent configuration keys. Nil means nothing is required.
	Missing func() []string
	Probe   Probe
}

// Step is one stage of a recovery attempt.
type Step struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Result reports a recovery attempt. Success is true only when every step succeeded.
type Result struct {
	Kind       string `json:"kind"`
	Status     Status `json:"status"`
	Success    bool   `json:"success"`
	Retryable  bool   `json:"retryable"`
	Message    string `json:"message"`
	Steps      []Step `json:"steps,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// ServiceHealth is the probe result of one service.
type ServiceHealth struct {
	Healthy   bool   `json:"healthy"`
	Circuit   State  `json:"circuit,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
}

// Health is the combined state of every registered service.
type Health struct {
	Healthy  bool                     `json:"healthy"`
	Services map[string]ServiceHealth `json:"services"`
}

// Coordinator owns the breakers and the process-wide recovery flag. Build one per
// process and pass it to whoever needs to trip, reset or recover services.
type Coordinator struct {
	services     []Service
	byName       map[string]int
	inProgress   atomic.Bool
	probeTimeout time.Duration
	logger       *slog.Logger
}

func NewCoordinator(logger *slog.Logger, services ...Service) *Coordinator {
	c := &Coordinator{
		services:     services,
		byName:       make(map[string]int, len(services)),
		probeTimeout: defaultProbeTimeout,
		logger:       logger,
	}
	for i, s := range services {
		c.byName[s.Name] = i
	}
	return c
}

// Breaker returns the breaker of the named service, or nil.
func (c *Coordinator) Breaker(name string) *Breaker {
	if i, ok := c.byName[name]; ok {
		return c.services[i].Breaker
	}
	return nil
}

// ResetCircuits forces every breaker closed and returns the names reset.
func (c *Coordinator) ResetCircuits() []string {
	var names []string
	for _, s := range c.services {
		if s.Breaker != nil {
			s.Breaker.Reset()
			names = append(names, s.Name)
		}
	}
	return names
}

// Circuits snapshots every breaker.
func (c *Coordinator) Circuits() []Snapshot {
	var out []Snapshot
	for _, s := range c.services {
		if s.Breaker != nil {
			out = append(out, s.Breaker.Snapshot())
		}
	}
	return out
}

// AttemptSystemRecovery runs the strategy for kind. Only one attempt runs at a time:
// a concurrent caller gets StatusAlreadyInProgress without waiting.
func (c *Coordinator) AttemptSystemRecovery(ctx context.Context, kind string) *Result {
	if !c.inProgress.CompareAndSwap(false, true) {
		c.logger.Info("recovery already in progress", "kind", kind)
		return &Result{
			Kind:      kind,
			Status:    StatusAlreadyInProgress,
			Retryable: true,
			Message:   "recovery already in progress",
		}
	}
	defer c.inProgress.Store(false)

	start := time.Now()
	log := c.logger.With("kind", kind)
	log.Info("starting system recovery")

	var res *Result
	if kind == KindComplete {
		res = c.complete(ctx)
	} else if i, ok := c.byName[kind]; ok {
		res = c.recoverService(ctx, c.services[i])
	} else {
		res = &Result{
			Status:  StatusUnknownService,
			Message: fmt.Sprintf("no recovery strategy for %q", kind),
		}
	}
	res.Kind = kind
	res.DurationMs = time.Since(start).Milliseconds()

	log.Info("system recovery finished", "status", res.Status, "success", res.Success, "duration_ms", res.DurationMs)
	return res
}

// recoverService resets the circuit, checks configuration and probes the service.
// Missing configuration ends in a non-retryable fallback.
func (c *Coordinator) recoverService(ctx context.Context, s Service) *Result {
	res := &Result{}

	if s.Breaker != nil {
		s.Breaker.Reset()
	}
	res.Steps = append(res.Steps, Step{Name: "circuit-reset", Success: true})

	if missing := missingConfig(s); len(missing) > 0 {
		msg := "missing configuration: " + strings.Join(missing, ", ")
		res.Steps = append(res.Steps, Step{Name: "config-check", Message: msg})
		res.Status = StatusFallback
		res.Message = fmt.Sprintf("%s cannot recover: %s", s.Name, msg)
		return res
	}
	res.Steps = append(res.Steps, Step{Name: "config-check", Success: true})

	if err := c.probe(ctx, s); err != nil {
		res.Steps = append(res.Steps, Step{Name: "connectivity-probe", Message: err.Error()})
		res.Status = StatusFailed
		res.Retryable = true
		res.Message = fmt.Sprintf("%s is still unreachable", s.Name)
		return res
	}
	res.Steps = append(res.Steps, Step{Name: "connectivity-probe", Success: true})

	res.Status = StatusRecovered
	res.Success = true
	res.Message = fmt.Sprintf("%s recovered", s.Name)
	return res
}

// complete runs circuit reset, database probe and configuration check in order. The
// steps are independent; a failed step does not stop the next one.
func (c *Coordinator) complete(ctx context.Context) *Result {
	res := &Result{}

	reset := c.ResetCircuits()
	res.Steps = append(res.Steps, Step{
		Name:    "circuit-reset",
		Success: true,
		Message: fmt.Sprintf("reset %d circuit(s)", len(reset)),
	})

	dbStep := Step{Name: "database-probe"}
	if i, ok := c.byName[ServiceDatabase]; ok {
		if err := c.probe(ctx, c.services[i]); err != nil {
			dbStep.Message = err.Error()
		} else {
			dbStep.Success = true
		}
	} else {
		dbStep.Message = "database is not registered"
	}
	res.Steps = append(res.Steps, dbStep)

	var missing []string
	for _, s := range c.services {
		missing = append(missing, missingConfig(s)...)
	}
	cfgStep := Step{Name: "config-check", Success: len(missing) == 0}
	if len(missing) > 0 {
		cfgStep.Message = "missing configuration: " + strings.Join(missing, ", ")
	}
	res.Steps = append(res.Steps, cfgStep)

	succeeded := 0
	for _, st := range res.Steps {
		if st.Success {
			succeeded++
		}
	}
	switch {
	case succeeded == len(res.Steps):
		res.Status = StatusRecovered
		res.Success = true
		res.Message = "all recovery steps succeeded"
	case succeeded > 0:
		res.Status = StatusPartial
		res.Retryable = cfgStep.Success
		res.Message = fmt.Sprintf("%d of %d recovery steps succeeded", succeeded, len(res.Steps))
	default:
		res.Status = StatusFailed
		res.Retryable = true
		res.Message = "every recovery step failed"
	}
	return res
}

func (c *Coordinator) probe(ctx context.Context, s Service) error {
	if s.Probe == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	return s.Probe(ctx)
}

// Health probes every service concurrently. A service with missing configuration or
// an open circuit is unhealthy.
func (c *Coordinator) Health(ctx context.Context) *Health {
	h := &Health{Healthy: true, Services: make(map[string]ServiceHealth, len(c.services))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range c.services {
		g.Go(func() error {
			sh := ServiceHealth{Healthy: true}
			if s.Breaker != nil {
				sh.Circuit = s.Breaker.State()
			}

			start := time.Now()
			switch missing := missingConfig(s); {
			case len(missing) > 0:
				sh.Healthy = false
				sh.Error = "missing configuration: " + strings.Join(missing, ", ")
			case sh.Circuit == StateOpen:
				sh.Healthy = false
				sh.Error = "circuit open"
			default:
				if err := c.probe(gctx, s); err != nil {
					sh.Healthy = false
					sh.Error = err.Error()
				}
			}
			sh.LatencyMs = time.Since(start).Milliseconds()

			mu.Lock()
			defer mu.Unlock()
			h.Services[s.Name] = sh
			if !sh.Healthy {
				h.Healthy = false
			}
			return nil
		})
	}
	_ = g.Wait()
	return h
}

func missingConfig(s Service) []string {
	if s.Missing == nil {
		return nil
	}
	return s.Missing()
}
