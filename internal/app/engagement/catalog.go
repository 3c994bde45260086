package engagement

import "github.com/stride-habits/stride/internal/domain"

// ─── Default catalog ────────────────────────────────────────────────────────
// Seeded on startup. Seeding is keyed by name, so re-running it never
// duplicates or overwrites an entry.

// DefaultCatalog returns the stock achievement catalog.
func DefaultCatalog() []domain.Achievement {
	return []domain.Achievement{
		// Streak
		{Name: "Getting Started", Description: "Maintain a 3-day streak", Points: 50, Icon: "fire", Type: domain.AchievementStreak, RequiredCount: 3},
		{Name: "Consistency Champion", Description: "Maintain a 7-day streak", Points: 100, Icon: "fire", Type: domain.AchievementStreak, RequiredCount: 7},
		{Name: "Habit Master", Description: "Maintain a 30-day streak", Points: 500, Icon: "fire", Type: domain.AchievementStreak, RequiredCount: 30},

		// Completion
		{Name: "First Steps", Description: "Complete your first standard or process", Points: 25, Icon: "check", Type: domain.AchievementCompletion, RequiredCount: 1},
		{Name: "Progress Pioneer", Description: "Complete 10 standards or processes", Points: 100, Icon: "check", Type: domain.AchievementCompletion, RequiredCount: 10},
		{Name: "Achievement Hunter", Description: "Complete 100 standards or processes", Points: 1000, Icon: "check", Type: domain.AchievementCompletion, RequiredCount: 100},

		// Level
		{Name: "Level Up!", Description: "Reach level 2", Points: 50, Icon: "star", Type: domain.AchievementLevel, RequiredCount: 2},
		{Name: "Rising Star", Description: "Reach level 5", Points: 200, Icon: "star", Type: domain.AchievementLevel, RequiredCount: 5},
		{Name: "Master Achiever", Description: "Reach level 10", Points: 1000, Icon: "star", Type: domain.AchievementLevel, RequiredCount: 10},

		// Special achievements are granted by hand; the evaluator never unlocks them.
		{Name: "Goal Setter", Description: "Complete your first BIG goal", Points: 500, Icon: "trophy", Type: domain.AchievementSpecial, RequiredCount: 1},
		{Name: "Milestone Maker", Description: "Complete your first MTG", Points: 200, Icon: "flag", Type: domain.AchievementSpecial, RequiredCount: 1},
	}
}
