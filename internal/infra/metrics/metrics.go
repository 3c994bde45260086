// Package metrics provides Prometheus metrics for Stride.
// Counters, gauges and histograms for awards, achievements, levels, ledger
// integrity, HTTP traffic and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Awards ─────────────────────────────────────────────────────────────────

// PointsAwarded tracks points written to the ledger by transaction type.
var PointsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "points_awarded_total",
	Help:      "Total points written to the ledger.",
}, []string{"type"})

// AwardsTotal tracks ledger entries written by transaction type.
var AwardsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "awards_total",
	Help:      "Total award transactions written.",
}, []string{"type"})

// AwardDuration tracks the full award pipeline latency.
var AwardDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "stride",
	Name:      "award_duration_seconds",
	Help:      "Award pipeline duration (append, streak, evaluation).",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
})

// AwardFailures tracks award pipeline failures by stage.
var AwardFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "award_failures_total",
	Help:      "Total award pipeline failures by stage.",
}, []string{"stage"})

// ─── Progression ────────────────────────────────────────────────────────────

// AchievementsUnlocked tracks unlocks by achievement type.
var AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "achievements_unlocked_total",
	Help:      "Total achievements unlocked.",
}, []string{"type"})

// LevelUps tracks level transitions caused by awards.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "level_ups_total",
	Help:      "Total level-ups across all users.",
})

// StreakResets tracks streaks broken back to one day.
var StreakResets = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "streak_resets_total",
	Help:      "Total streaks reset after a gap.",
})

// NotificationsCreated tracks notifications by outcome (created, capped, quiet).
var NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "notifications_total",
	Help:      "Notifications by outcome.",
}, []string{"outcome"})

// ─── Ledger integrity ───────────────────────────────────────────────────────

// LedgerDriftProfiles is the number of profiles found out of sync on the last check.
var LedgerDriftProfiles = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "stride",
	Name:      "ledger_drift_profiles",
	Help:      "Profiles whose cached total diverged from the ledger on the last check.",
})

// LedgerRepairs tracks profiles recomputed by the reconciler.
var LedgerRepairs = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "ledger_repairs_total",
	Help:      "Total profiles recomputed from the ledger.",
})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests tracks API requests by route pattern and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "http_requests_total",
	Help:      "Total HTTP requests by route and status.",
}, []string{"route", "status"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "stride",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
