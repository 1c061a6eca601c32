// Package health runs dependency checks for liveness and readiness probes.
// Checks run concurrently, each under its own deadline. A check registered
// as optional can degrade the report but never take it down, so a search
// instance with a loaded snapshot stays ready while its cache is away.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// severity orders statuses from best to worst.
func (s Status) severity() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Check probes a single dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// Report is the aggregated result of all checks.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

type entry struct {
	check    Check
	optional bool
}

// Checker holds the registered checks.
type Checker struct {
	mu           sync.RWMutex
	checks       map[string]entry
	checkTimeout time.Duration
	logger       *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks:       make(map[string]entry),
		checkTimeout: 2 * time.Second,
		logger:       slog.Default().With("component", "health"),
	}
}

// WithCheckTimeout bounds how long a single check may run.
func (c *Checker) WithCheckTimeout(d time.Duration) *Checker {
	c.checkTimeout = d
	return c
}

// Register adds a check whose failure makes the instance unready.
func (c *Checker) Register(name string, check Check) {
	c.add(name, entry{check: check})
}

// RegisterOptional adds a check for a dependency the instance can serve
// without. A down result is reported as degraded.
func (c *Checker) RegisterOptional(name string, check Check) {
	c.add(name, entry{check: check, optional: true})
}

func (c *Checker) add(name string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = e
}

// Run executes every check concurrently. The overall status is the worst
// component status.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]entry, len(c.checks))
	for name, e := range c.checks {
		checks[name] = e
	}
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, e := range checks {
		wg.Go(func() {
			result := c.runOne(ctx, e)
			mu.Lock()
			report.Components[name] = result
			mu.Unlock()
		})
	}
	wg.Wait()

	names := make([]string, 0, len(report.Components))
	for name := range report.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		comp := report.Components[name]
		if comp.Status.severity() > report.Status.severity() {
			report.Status = comp.Status
		}
		if comp.Status != StatusUp {
			c.logger.Debug("component unhealthy", "name", name, "status", comp.Status, "message", comp.Message)
		}
	}
	return report
}

func (c *Checker) runOne(ctx context.Context, e entry) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan ComponentHealth, 1)
	go func() { done <- e.check(ctx) }()

	var result ComponentHealth
	select {
	case result = <-done:
	case <-ctx.Done():
		result = ComponentHealth{Status: StatusDown, Message: "check timed out"}
	}
	result.Latency = time.Since(start).Round(time.Millisecond).String()
	if e.optional {
		result.Optional = true
		if result.Status == StatusDown {
			result.Status = StatusDegraded
		}
	}
	return result
}

// LiveHandler answers liveness probes. It never runs checks.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers readiness probes: 200 while no required component is
// down, 503 otherwise. The full report is returned either way.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
