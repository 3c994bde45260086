// Package health provides scheduled health checks with auto-recovery.
// Three checks: sqlite connectivity, the data directory, and the ledger
// invariant (cached totals equal ledger sums).
package health

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/stride-habits/stride/internal/domain"
	"github.com/stride-habits/stride/internal/infra/metrics"
)

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	Recovered bool      `json:"recovered,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Pinger is satisfied by the SQLite store.
type Pinger interface {
	Ping() error
}

// LedgerIntegrity is satisfied by ledger.Reconciler.
type LedgerIntegrity interface {
	Verify(ctx context.Context) ([]domain.LedgerDrift, error)
	Repair(ctx context.Context) (int, error)
}

// Checker runs health checks on a schedule and keeps the latest results.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	log      *slog.Logger
}

// NewChecker creates a health checker with the standard checks. When
// autoRepair is set, a failed ledger check recomputes drifted profiles.
func NewChecker(db Pinger, dataDir string, integrity LedgerIntegrity, autoRepair bool, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	c := &Checker{log: log.With("component", "health")}

	c.checks = []Check{
		{
			Name: "sqlite",
			CheckFn: func(ctx context.Context) error {
				return db.Ping()
			},
		},
		{
			Name: "data_dir",
			CheckFn: func(ctx context.Context) error {
				return checkDataDir(dataDir)
			},
		},
	}

	if integrity != nil {
		ledger := Check{
			Name: "ledger_integrity",
			CheckFn: func(ctx context.Context) error {
				_, err := integrity.Verify(ctx)
				return err
			},
		}
		if autoRepair {
			ledger.RecoverFn = func(ctx context.Context) error {
				n, err := integrity.Repair(ctx)
				if err == nil {
					c.log.Info("ledger repaired", "profiles", n)
				}
				return err
			}
		}
		c.checks = append(c.checks, ledger)
	}
	return c
}

// AddCheck registers an extra check.
func (c *Checker) AddCheck(check Check) {
	c.mu.Lock()
	c.checks = append(c.checks, check)
	c.mu.Unlock()
}

// Schedule registers the checker on s, running every interval and once
// immediately. Overlapping runs are skipped.
func (c *Checker) Schedule(ctx context.Context, s gocron.Scheduler, interval time.Duration) (gocron.Job, error) {
	job, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { c.RunOnce(ctx) }),
		gocron.WithName("health"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule health checks: %w", err)
	}
	return job, nil
}

// RunOnce runs every check, attempting recovery for failures.
func (c *Checker) RunOnce(ctx context.Context) []Status {
	c.mu.RLock()
	checks := make([]Check, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	statuses := make([]Status, len(checks))
	for i, check := range checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Error = err.Error()
			c.log.Warn("health check failed", "check", check.Name, "err", err)

			if check.RecoverFn != nil {
				metrics.HealthRecoveries.WithLabelValues(check.Name).Inc()
				if rerr := check.RecoverFn(ctx); rerr != nil {
					c.log.Error("recovery failed", "check", check.Name, "err", rerr)
				} else if check.CheckFn(ctx) == nil {
					s.Healthy = true
					s.Recovered = true
				}
			}
		} else {
			s.Healthy = true
		}

		gauge := 0.0
		if s.Healthy {
			gauge = 1
		}
		metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(gauge)
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
	return statuses
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

func checkDataDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("check data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
