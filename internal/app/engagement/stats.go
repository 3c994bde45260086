package engagement

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/stride-habits/stride/internal/domain"
)

// ─── Read models ────────────────────────────────────────────────────────────

const (
	recentAchievementLimit = 5
	recentTransactionLimit = 10
	LeaderboardSize        = 10
)

// HistoryFilter selects ledger entries for History. Zero values mean no filter.
type HistoryFilter struct {
	Type domain.TransactionType
	Days int
}

// ParseHistoryFilter validates the raw type and days query parameters.
// Empty strings mean no filter.
func ParseHistoryFilter(typ, days string) (HistoryFilter, error) {
	var f HistoryFilter
	if typ = strings.TrimSpace(typ); typ != "" {
		t, err := domain.ParseTransactionType(typ)
		if err != nil {
			return f, err
		}
		f.Type = t
	}
	if days = strings.TrimSpace(days); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return f, &domain.ValidationError{
				Field:   "days",
				Message: fmt.Sprintf("must be a non-negative integer, got %q", days),
			}
		}
		f.Days = n
	}
	return f, nil
}

// Stats returns the dashboard snapshot for userID.
func (s *Service) Stats(ctx context.Context, userID string) (domain.Stats, error) {
	if userID == "" {
		return domain.Stats{}, domain.ErrMissingUser
	}
	profile, err := s.profile(ctx, userID)
	if err != nil {
		return domain.Stats{}, err
	}

	achievements, err := s.store.ListUserAchievements(ctx, userID, recentAchievementLimit)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("recent achievements: %w", err)
	}
	txs, err := s.store.ListTransactions(ctx, userID, domain.TransactionFilter{Limit: recentTransactionLimit})
	if err != nil {
		return domain.Stats{}, fmt.Errorf("recent transactions: %w", err)
	}

	return domain.Stats{
		Profile:             profile.View(),
		RecentAchievements:  nonNil(achievements),
		RecentTransactions:  nonNil(txs),
		NextLevelPoints:     domain.PointsRequiredForLevel(profile.Level),
		ProgressToNextLevel: domain.ProgressToNextLevel(profile.TotalPoints, profile.Level),
	}, nil
}

// UnlockedAchievements lists userID's unlocks, most recent first.
func (s *Service) UnlockedAchievements(ctx context.Context, userID string) ([]domain.UserAchievement, error) {
	if userID == "" {
		return nil, domain.ErrMissingUser
	}
	list, err := s.store.ListUserAchievements(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	return nonNil(list), nil
}

// AvailableAchievements lists catalog entries userID has not unlocked yet.
func (s *Service) AvailableAchievements(ctx context.Context, userID string) ([]domain.Achievement, error) {
	if userID == "" {
		return nil, domain.ErrMissingUser
	}
	return s.evaluator.Locked(ctx, userID)
}

// History returns userID's ledger, newest first, narrowed by filter.
func (s *Service) History(ctx context.Context, userID string, filter HistoryFilter) ([]domain.PointTransaction, error) {
	if userID == "" {
		return nil, domain.ErrMissingUser
	}
	if filter.Days < 0 {
		return nil, &domain.ValidationError{Field: "days", Message: "must be non-negative"}
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, &domain.ValidationError{Field: "type", Message: fmt.Sprintf("unknown transaction type %q", filter.Type)}
	}

	q := domain.TransactionFilter{Type: filter.Type}
	if filter.Days > 0 {
		q.Since = s.now().AddDate(0, 0, -filter.Days)
	}
	txs, err := s.store.ListTransactions(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return nonNil(txs), nil
}

// Leaderboard returns the top profiles by total points plus the caller's
// rank, which is one more than the number of strictly higher totals.
func (s *Service) Leaderboard(ctx context.Context, userID string) (domain.Leaderboard, error) {
	if userID == "" {
		return domain.Leaderboard{}, domain.ErrMissingUser
	}
	profile, err := s.profile(ctx, userID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	top, err := s.store.TopProfiles(ctx, LeaderboardSize)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("top profiles: %w", err)
	}
	above, err := s.store.CountProfilesAbove(ctx, profile.TotalPoints)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("rank: %w", err)
	}

	views := make([]domain.ProfileView, 0, len(top))
	for _, p := range top {
		views = append(views, p.View())
	}
	return domain.Leaderboard{
		Leaderboard: views,
		UserRank:    above + 1,
		UserProfile: profile.View(),
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
