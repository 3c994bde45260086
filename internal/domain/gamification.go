// Package domain holds the pure gamification types shared by every layer.
// Nothing in here touches storage or transport.
package domain

import (
	"fmt"
	"time"
)

// ─── Transactions ───────────────────────────────────────────────────────────

// TransactionType categorizes why points were awarded.
type TransactionType string

const (
	TxStandard    TransactionType = "standard"
	TxProcess     TransactionType = "process"
	TxMTG         TransactionType = "mtg"
	TxBIG         TransactionType = "big"
	TxStreak      TransactionType = "streak"
	TxAchievement TransactionType = "achievement"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TxStandard, TxProcess, TxMTG, TxBIG, TxStreak, TxAchievement:
		return true
	}
	return false
}

// CompletionTypes are the transaction types counted by completion achievements.
var CompletionTypes = []TransactionType{TxStandard, TxProcess, TxMTG, TxBIG}

// ParseTransactionType validates a user-supplied type string.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(s)
	if !t.Valid() {
		return "", &ValidationError{Field: "type", Message: fmt.Sprintf("unknown transaction type %q", s)}
	}
	return t, nil
}

// PointTransaction is one immutable ledger entry. Points already include the
// streak multiplier that was in effect when it was written.
type PointTransaction struct {
	ID               string          `json:"id"`
	UserID           string          `json:"-"`
	Points           int64           `json:"points"`
	Type             TransactionType `json:"transaction_type"`
	ReferenceID      string          `json:"reference_id,omitempty"`
	ReferenceType    string          `json:"reference_type,omitempty"`
	StreakMultiplier float64         `json:"streak_multiplier"`
	Description      string          `json:"description"`
	CreatedAt        time.Time       `json:"created_at"`
}

// TransactionFilter narrows a history query. Zero values mean "no filter".
type TransactionFilter struct {
	Type  TransactionType
	Since time.Time
	Limit int
}

// Award is a request to put points on a user's ledger.
type Award struct {
	Amount        int64
	Type          TransactionType
	ReferenceID   string
	ReferenceType string
	Description   string
}

// CompletionRef identifies the standard, process or goal that was completed.
type CompletionRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ─── Profile ────────────────────────────────────────────────────────────────

// Profile is the per-user gamification state. TotalPoints and Level are
// derived from the ledger and only ever written by the ledger append path.
type Profile struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	TotalPoints      int64     `json:"total_points"`
	Level            int       `json:"level"`
	CurrentStreak    int       `json:"current_streak"`
	LongestStreak    int       `json:"longest_streak"`
	LastActivityDate time.Time `json:"-"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}

// LastActivity returns the last activity date as YYYY-MM-DD, or nil if unset.
func (p Profile) LastActivity() *string {
	if p.LastActivityDate.IsZero() {
		return nil
	}
	s := p.LastActivityDate.Format(DateLayout)
	return &s
}

// DateLayout is the calendar-date format used for activity dates.
const DateLayout = "2006-01-02"

// ─── Streak multipliers ─────────────────────────────────────────────────────

// StreakTier is one row of the streak multiplier table.
type StreakTier struct {
	Days       int
	Multiplier float64
}

// StreakTiers is sorted ascending by Days. The highest tier whose Days is
// <= the current streak applies.
var StreakTiers = []StreakTier{
	{Days: 3, Multiplier: 1.2},
	{Days: 7, Multiplier: 1.5},
	{Days: 14, Multiplier: 1.8},
	{Days: 30, Multiplier: 2.0},
	{Days: 60, Multiplier: 2.5},
	{Days: 90, Multiplier: 3.0},
}

// StreakMultiplier returns the multiplier for a streak of the given length.
func StreakMultiplier(streak int) float64 {
	multiplier := 1.0
	for _, tier := range StreakTiers {
		if streak < tier.Days {
			break
		}
		multiplier = tier.Multiplier
	}
	return multiplier
}

// ─── Achievements ───────────────────────────────────────────────────────────

// AchievementType selects the predicate used to unlock an achievement.
type AchievementType string

const (
	AchievementStreak     AchievementType = "streak"
	AchievementCompletion AchievementType = "completion"
	AchievementLevel      AchievementType = "level"
	AchievementSpecial    AchievementType = "special"
)

// Achievement is a catalog entry. RequiredCount is interpreted per Type.
type Achievement struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Points        int64           `json:"points"`
	Icon          string          `json:"icon"`
	Type          AchievementType `json:"achievement_type"`
	RequiredCount int             `json:"required_count"`
	CreatedAt     time.Time       `json:"-"`
}

// UserAchievement records that a user unlocked an achievement.
type UserAchievement struct {
	ID          string      `json:"id"`
	UserID      string      `json:"-"`
	Achievement Achievement `json:"achievement"`
	UnlockedAt  time.Time   `json:"unlocked_at"`
}

// ─── Read models ────────────────────────────────────────────────────────────

// ProfileView is the serialized form of a profile.
type ProfileView struct {
	ID               string  `json:"id"`
	UserID           string  `json:"user_id"`
	TotalPoints      int64   `json:"total_points"`
	Level            int     `json:"level"`
	CurrentStreak    int     `json:"current_streak"`
	LongestStreak    int     `json:"longest_streak"`
	LastActivityDate *string `json:"last_activity_date"`
}

// View converts a profile to its serialized form.
func (p Profile) View() ProfileView {
	return ProfileView{
		ID:               p.ID,
		UserID:           p.UserID,
		TotalPoints:      p.TotalPoints,
		Level:            p.Level,
		CurrentStreak:    p.CurrentStreak,
		LongestStreak:    p.LongestStreak,
		LastActivityDate: p.LastActivity(),
	}
}

// Stats is the dashboard snapshot for one user.
type Stats struct {
	Profile             ProfileView        `json:"profile"`
	RecentAchievements  []UserAchievement  `json:"recent_achievements"`
	RecentTransactions  []PointTransaction `json:"recent_transactions"`
	NextLevelPoints     int64              `json:"next_level_points"`
	ProgressToNextLevel float64            `json:"progress_to_next_level"`
}

// Leaderboard is the global ranking plus the caller's own position.
type Leaderboard struct {
	Leaderboard []ProfileView `json:"leaderboard"`
	UserRank    int           `json:"user_rank"`
	UserProfile ProfileView   `json:"user_profile"`
}

// LedgerDrift describes a profile whose cached totals disagree with its ledger.
type LedgerDrift struct {
	UserID      string `json:"user_id"`
	CachedTotal int64  `json:"cached_total"`
	LedgerTotal int64  `json:"ledger_total"`
	CachedLevel int    `json:"cached_level"`
}
