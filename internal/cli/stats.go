package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show points, level, streak and recent activity",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	user, err := requireUser()
	if err != nil {
		return err
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	s, err := d.Gamification.Stats(context.Background(), user)
	if err != nil {
		return err
	}

	p := s.Profile
	w := out(cmd)
	fmt.Fprintf(w, "User:     %s\n", p.UserID)
	fmt.Fprintf(w, "Points:   %d\n", p.TotalPoints)
	fmt.Fprintf(w, "Level:    %d\n", p.Level)
	fmt.Fprintf(w, "          %s\n", levelBar(p.TotalPoints, s.NextLevelPoints, s.ProgressToNextLevel))
	fmt.Fprintf(w, "Streak:   %d (longest %d)\n", p.CurrentStreak, p.LongestStreak)
	if p.LastActivityDate != nil {
		fmt.Fprintf(w, "Last day: %s\n", *p.LastActivityDate)
	}

	if len(s.RecentAchievements) > 0 {
		fmt.Fprintln(w, "\nRecent achievements:")
		t := newTable(cmd)
		for _, ua := range s.RecentAchievements {
			fmt.Fprintf(t, "  %s\t+%d\t%s\n", ua.Achievement.Name, ua.Achievement.Points, formatTime(ua.UnlockedAt))
		}
		if err := t.Flush(); err != nil {
			return err
		}
	}

	if len(s.RecentTransactions) > 0 {
		fmt.Fprintln(w, "\nRecent points:")
		t := newTable(cmd)
		for _, tx := range s.RecentTransactions {
			fmt.Fprintf(t, "  %+d\t%s\t%s\n", tx.Points, tx.Description, formatTime(tx.CreatedAt))
		}
		return t.Flush()
	}
	return nil
}
