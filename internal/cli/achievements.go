package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	achievementsCmd.Flags().BoolVar(&showAvailable, "available", false, "List achievements not yet unlocked")
	rootCmd.AddCommand(achievementsCmd)
}

var showAvailable bool

var achievementsCmd = &cobra.Command{
	Use:     "achievements",
	Aliases: []string{"ach"},
	Short:   "List unlocked (or still available) achievements",
	RunE:    runAchievements,
}

func runAchievements(cmd *cobra.Command, args []string) error {
	user, err := requireUser()
	if err != nil {
		return err
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()
	ctx := context.Background()

	if showAvailable {
		list, err := d.Gamification.AvailableAchievements(ctx, user)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(out(cmd), "Every achievement is unlocked.")
			return nil
		}
		w := newTable(cmd)
		fmt.Fprintln(w, "NAME\tTYPE\tREQUIRED\tPOINTS\tDESCRIPTION")
		for _, a := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", a.Name, a.Type, a.RequiredCount, a.Points, a.Description)
		}
		return w.Flush()
	}

	list, err := d.Gamification.UnlockedAchievements(ctx, user)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(out(cmd), "No achievements yet. Run 'stride achievements --available' to see what to aim for.")
		return nil
	}
	w := newTable(cmd)
	fmt.Fprintln(w, "NAME\tPOINTS\tUNLOCKED")
	for _, ua := range list {
		fmt.Fprintf(w, "%s\t%d\t%s\n", ua.Achievement.Name, ua.Achievement.Points, formatTime(ua.UnlockedAt))
	}
	return w.Flush()
}
