package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/stride-habits/stride/internal/domain"
)

// Snapshot is the state every predicate in one evaluation pass is checked
// against. It is read once per pass.
type Snapshot struct {
	Profile     domain.Profile
	Completions int
}

// Qualifies reports whether snap meets the achievement's requirement.
func Qualifies(a domain.Achievement, snap Snapshot) bool {
	switch a.Type {
	case domain.AchievementStreak:
		return snap.Profile.CurrentStreak >= a.RequiredCount
	case domain.AchievementCompletion:
		return snap.Completions >= a.RequiredCount
	case domain.AchievementLevel:
		return snap.Profile.Level >= a.RequiredCount
	}
	return false
}

// Evaluator decides which achievements a user has newly earned and records
// the unlocks. It does not award points.
type Evaluator struct {
	store domain.GamificationStore
}

// NewEvaluator creates an evaluator over store.
func NewEvaluator(store domain.GamificationStore) *Evaluator {
	return &Evaluator{store: store}
}

// Snapshot reads the profile and completion count for userID.
func (e *Evaluator) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	profile, err := e.store.GetProfile(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	n, err := e.store.CountTransactions(ctx, userID, domain.CompletionTypes)
	if err != nil {
		return Snapshot{}, fmt.Errorf("count completions: %w", err)
	}
	return Snapshot{Profile: profile, Completions: n}, nil
}

// Locked returns the catalog entries userID has not unlocked yet, in catalog order.
func (e *Evaluator) Locked(ctx context.Context, userID string) ([]domain.Achievement, error) {
	catalog, err := e.store.ListAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	unlocked, err := e.store.UnlockedAchievementIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("unlocked ids: %w", err)
	}

	locked := make([]domain.Achievement, 0, len(catalog))
	for _, a := range catalog {
		if _, ok := unlocked[a.ID]; !ok {
			locked = append(locked, a)
		}
	}
	return locked, nil
}

// Evaluate unlocks every locked achievement whose predicate holds and returns
// only the ones this call actually recorded. Concurrent or repeated calls
// never report the same unlock twice.
func (e *Evaluator) Evaluate(ctx context.Context, userID string, now time.Time) ([]domain.Achievement, error) {
	snap, err := e.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	locked, err := e.Locked(ctx, userID)
	if err != nil {
		return nil, err
	}

	var unlocked []domain.Achievement
	for _, a := range locked {
		if !Qualifies(a, snap) {
			continue
		}
		isNew, err := e.store.UnlockAchievement(ctx, userID, a.ID, now)
		if err != nil {
			return unlocked, fmt.Errorf("unlock %q: %w", a.Name, err)
		}
		if isNew {
			unlocked = append(unlocked, a)
		}
	}
	return unlocked, nil
}
