// Package cli implements the Stride command-line interface using Cobra.
// Every subcommand opens the local daemon state directly; only serve
// starts the HTTP API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var userID string

var rootCmd = &cobra.Command{
	Use:   "stride",
	Short: "Stride: points, streaks and achievements for habit tracking",
	Long: `Stride rewards completed standards, processes and goals with points.
Consecutive days of activity build a streak that multiplies every award,
and milestones unlock achievements.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv("STRIDE_USER"),
		"User id to act as (defaults to $STRIDE_USER)")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
