package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	forgetCmd.Flags().BoolVar(&forgetYes, "yes", false, "Confirm deletion")
	rootCmd.AddCommand(forgetCmd)
}

var forgetYes bool

var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Delete a user's profile, ledger, achievements and notifications",
	RunE:  runForget,
}

func runForget(cmd *cobra.Command, args []string) error {
	user, err := requireUser()
	if err != nil {
		return err
	}
	if !forgetYes {
		return fmt.Errorf("this permanently deletes all data for %q; rerun with --yes", user)
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Gamification.ForgetUser(context.Background(), user); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "Deleted all gamification data for %s.\n", user)
	return nil
}
