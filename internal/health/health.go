// Package health runs dependency checks for the readiness endpoint.
package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Checker reports whether a dependency is reachable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Report is the outcome of running every registered check.
type Report struct {
	Healthy bool
	Checks  map[string]string
}

// Registry runs named checks concurrently under one timeout.
type Registry struct {
	timeout  time.Duration
	checkers map[string]Checker
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. A non-positive timeout defaults to 5s.
func NewRegistry(timeout time.Duration, logger *slog.Logger) *Registry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{timeout: timeout, checkers: make(map[string]Checker), logger: logger}
}

// Add registers c under name, replacing any previous checker with that name.
func (r *Registry) Add(name string, c Checker) {
	r.checkers[name] = c
}

// Names returns the registered check names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes all checks. Each check result is "ok" or "error".
func (r *Registry) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report = Report{Healthy: true, Checks: make(map[string]string, len(r.checkers))}
	)
	for name, c := range r.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.HealthCheck(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Healthy = false
				report.Checks[name] = "error"
				r.logger.WarnContext(ctx, "health check failed",
					slog.String("check", name),
					slog.String("error", err.Error()))
				return
			}
			report.Checks[name] = "ok"
		}()
	}
	wg.Wait()
	return report
}
