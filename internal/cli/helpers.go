package cli

import (
	"errors"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stride-habits/stride/internal/daemon"
	"github.com/stride-habits/stride/internal/domain"
)

// openDaemon loads config and opens the store without serving.
func openDaemon() (*daemon.Daemon, error) {
	return daemon.New()
}

// requireUser returns the --user value or a usage error.
func requireUser() (string, error) {
	if userID == "" {
		return "", errors.Join(domain.ErrMissingUser, errors.New("pass --user or set STRIDE_USER"))
	}
	return userID, nil
}

func newTable(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(out(cmd), 0, 0, 2, ' ', 0)
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
