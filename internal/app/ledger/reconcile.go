package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stride-habits/stride/internal/domain"
	"github.com/stride-habits/stride/internal/infra/metrics"
)

// ─── Integrity ──────────────────────────────────────────────────────────────
// Invariant: profile.total_points == SUM(ledger.points) and
// profile.level == LevelForPoints(total_points), for every profile.

// Reconciler checks the ledger invariant and repairs profiles that broke it.
type Reconciler struct {
	store domain.LedgerStore
	log   *slog.Logger
}

// NewReconciler creates a reconciler. A nil logger uses slog.Default.
func NewReconciler(store domain.LedgerStore, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{store: store, log: log.With("component", "ledger")}
}

// Verify returns every profile out of sync with its ledger. It returns an
// error wrapping domain.ErrLedgerDrift when any are found.
func (r *Reconciler) Verify(ctx context.Context) ([]domain.LedgerDrift, error) {
	drifts, err := r.store.LedgerDrifts(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	metrics.LedgerDriftProfiles.Set(float64(len(drifts)))
	if len(drifts) > 0 {
		return drifts, fmt.Errorf("%w: %d profile(s)", domain.ErrLedgerDrift, len(drifts))
	}
	return nil, nil
}

// Repair recomputes every drifted profile from its ledger and returns how
// many were fixed.
func (r *Reconciler) Repair(ctx context.Context) (int, error) {
	drifts, err := r.store.LedgerDrifts(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan ledger: %w", err)
	}

	fixed := 0
	for _, d := range drifts {
		p, err := r.store.RecomputeProfile(ctx, d.UserID)
		if err != nil {
			return fixed, fmt.Errorf("recompute %s: %w", d.UserID, err)
		}
		r.log.Warn("profile recomputed from ledger",
			"user", d.UserID,
			"cached_total", d.CachedTotal,
			"ledger_total", d.LedgerTotal,
			"level", p.Level)
		metrics.LedgerRepairs.Inc()
		fixed++
	}
	metrics.LedgerDriftProfiles.Set(float64(len(drifts) - fixed))
	return fixed, nil
}
