package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(leaderboardCmd)
}

var leaderboardCmd = &cobra.Command{
	Use:     "leaderboard",
	Aliases: []string{"top"},
	Short:   "Show the top users by total points and your rank",
	RunE:    runLeaderboard,
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	user, err := requireUser()
	if err != nil {
		return err
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	lb, err := d.Gamification.Leaderboard(context.Background(), user)
	if err != nil {
		return err
	}

	w := newTable(cmd)
	fmt.Fprintln(w, "#\tUSER\tPOINTS\tLEVEL\tSTREAK")
	for i, p := range lb.Leaderboard {
		marker := ""
		if p.UserID == user {
			marker = " *"
		}
		fmt.Fprintf(w, "%d\t%s%s\t%d\t%d\t%d\n", i+1, p.UserID, marker, p.TotalPoints, p.Level, p.CurrentStreak)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "\nYour rank: %d (%d points)\n", lb.UserRank, lb.UserProfile.TotalPoints)
	return nil
}
