package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// Infrastructure implements these; the application layer depends on them.

// ProfileStore owns the per-user gamification profile rows.
type ProfileStore interface {
	// GetProfile returns ErrProfileNotFound when the user has no profile.
	GetProfile(ctx context.Context, userID string) (Profile, error)
	GetOrCreateProfile(ctx context.Context, userID string) (Profile, error)

	// UpdateStreak runs fn against the freshly-read profile inside one write
	// transaction and persists the streak fields if fn returns true.
	UpdateStreak(ctx context.Context, userID string, fn func(p *Profile) bool) (Profile, error)

	TopProfiles(ctx context.Context, limit int) ([]Profile, error)
	CountProfilesAbove(ctx context.Context, total int64) (int, error)
	DeleteUser(ctx context.Context, userID string) error
}

// LedgerStore is the single write path for points. AppendTransaction inserts
// the entry and, in the same transaction, recomputes the profile's total and
// level from the full ledger.
type LedgerStore interface {
	AppendTransaction(ctx context.Context, tx PointTransaction) (Profile, error)
	ListTransactions(ctx context.Context, userID string, filter TransactionFilter) ([]PointTransaction, error)
	CountTransactions(ctx context.Context, userID string, types []TransactionType) (int, error)

	// LedgerDrifts lists profiles whose cached total or level disagrees with the ledger.
	LedgerDrifts(ctx context.Context) ([]LedgerDrift, error)
	// RecomputeProfile rewrites total and level from the ledger.
	RecomputeProfile(ctx context.Context, userID string) (Profile, error)
}

// AchievementStore owns the catalog and the per-user unlock rows.
type AchievementStore interface {
	ListAchievements(ctx context.Context) ([]Achievement, error)
	UnlockedAchievementIDs(ctx context.Context, userID string) (map[string]struct{}, error)

	// UnlockAchievement is idempotent: it returns false when the pair
	// (userID, achievementID) was already recorded.
	UnlockAchievement(ctx context.Context, userID, achievementID string, at time.Time) (bool, error)
	ListUserAchievements(ctx context.Context, userID string, limit int) ([]UserAchievement, error)
	SeedAchievements(ctx context.Context, catalog []Achievement) (int, error)
}

// GamificationStore is everything the engagement engine needs from storage.
type GamificationStore interface {
	ProfileStore
	LedgerStore
	AchievementStore
}

// NotificationStore persists user-facing notifications.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n Notification) (int64, error)
	NotificationCountSince(ctx context.Context, userID string, since time.Time) (int, error)
	ListPendingNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkNotificationShown(ctx context.Context, userID string, id int64) error
}
