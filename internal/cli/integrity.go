package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stride-habits/stride/internal/domain"
)

func init() {
	integrityCmd.Flags().BoolVar(&integrityRepair, "repair", false, "Recompute drifted profiles from their ledgers")
	rootCmd.AddCommand(integrityCmd)
}

var integrityRepair bool

var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Check that every cached total equals its ledger sum",
	RunE:  runIntegrity,
}

func runIntegrity(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()
	ctx := context.Background()

	drifts, err := d.Reconciler.Verify(ctx)
	if err != nil && !errors.Is(err, domain.ErrLedgerDrift) {
		return err
	}
	if len(drifts) == 0 {
		fmt.Fprintln(out(cmd), "Ledger consistent.")
		return nil
	}

	w := newTable(cmd)
	fmt.Fprintln(w, "USER\tCACHED\tLEDGER\tCACHED LEVEL")
	for _, dr := range drifts {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", dr.UserID, dr.CachedTotal, dr.LedgerTotal, dr.CachedLevel)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !integrityRepair {
		return fmt.Errorf("%d profile(s) drifted, rerun with --repair: %w", len(drifts), domain.ErrLedgerDrift)
	}
	fixed, err := d.Reconciler.Repair(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "Repaired %d profile(s).\n", fixed)
	return nil
}
