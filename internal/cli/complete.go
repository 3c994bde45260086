package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stride-habits/stride/internal/app/engagement"
	"github.com/stride-habits/stride/internal/domain"
)

func init() {
	completeCmd.Flags().StringVar(&completeID, "id", "", "Id of the completed item (random if empty)")
	completeCmd.Flags().StringVar(&completeTitle, "title", "", "Title used in the ledger description")
	rootCmd.AddCommand(completeCmd)
}

var (
	completeID    string
	completeTitle string
)

var completeCmd = &cobra.Command{
	Use:   "complete <standard|process|mtg|big>",
	Short: "Record a completion and award its points",
	Example: `  stride complete standard --title "Morning run"
  stride complete big --id goal-42 --title "Run a marathon"`,
	Args: cobra.ExactArgs(1),
	RunE: runComplete,
}

func runComplete(cmd *cobra.Command, args []string) error {
	user, err := requireUser()
	if err != nil {
		return err
	}
	kind, err := engagement.ParseCompletionKind(args[0])
	if err != nil {
		return err
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ref := domain.CompletionRef{ID: completeID, Title: completeTitle}
	if ref.ID == "" {
		ref.ID = uuid.NewString()
	}

	ctx := context.Background()
	before, err := d.Gamification.UnlockedAchievements(ctx, user)
	if err != nil {
		return err
	}

	tx, err := d.Gamification.Complete(ctx, user, kind, ref)
	if err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "+%d points (x%.1f streak multiplier): %s\n", tx.Points, tx.StreakMultiplier, tx.Description)

	after, err := d.Gamification.UnlockedAchievements(ctx, user)
	if err != nil {
		return err
	}
	for _, ua := range after[:len(after)-len(before)] {
		fmt.Fprintf(out(cmd), "Achievement unlocked: %s (+%d)\n", ua.Achievement.Name, ua.Achievement.Points)
	}

	stats, err := d.Gamification.Stats(ctx, user)
	if err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "Total %d points, level %d, streak %d\n",
		stats.Profile.TotalPoints, stats.Profile.Level, stats.Profile.CurrentStreak)
	return nil
}
