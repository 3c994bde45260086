package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stride-habits/stride/internal/app/engagement"
)

func init() {
	historyCmd.Flags().StringVar(&historyType, "type", "", "Only entries of this transaction type")
	historyCmd.Flags().IntVar(&historyDays, "days", 0, "Only entries from the last N days")
	rootCmd.AddCommand(historyCmd)
}

var (
	historyType string
	historyDays int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the points ledger, newest first",
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	user, err := requireUser()
	if err != nil {
		return err
	}
	var days string
	if cmd.Flags().Changed("days") {
		days = strconv.Itoa(historyDays)
	}
	filter, err := engagement.ParseHistoryFilter(historyType, days)
	if err != nil {
		return err
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	txs, err := d.Gamification.History(context.Background(), user, filter)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Fprintln(out(cmd), "No points recorded.")
		return nil
	}

	w := newTable(cmd)
	fmt.Fprintln(w, "WHEN\tTYPE\tPOINTS\tMULTIPLIER\tDESCRIPTION")
	for _, tx := range txs {
		fmt.Fprintf(w, "%s\t%s\t%+d\tx%.1f\t%s\n",
			formatTime(tx.CreatedAt), tx.Type, tx.Points, tx.StreakMultiplier, tx.Description)
	}
	return w.Flush()
}
