package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/xrloop/internal/config"
	"github.com/Iron-Ham/xrloop/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a driver is running",
	Long:  `Report the xrloop process that currently owns the runtime, if any.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := filepath.Join(config.StateDir(), session.LockFileName)

	lock, err := session.ReadDeviceLock(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(out, "No driver running")
			return nil
		}
		return fmt.Errorf("failed to read device lock: %w", err)
	}

	if !lock.Alive() {
		fmt.Fprintf(out, "No driver running (stale lock from PID %d, removed by the next run)\n", lock.PID)
		return nil
	}

	fmt.Fprintf(out, "Driver running\n")
	fmt.Fprintf(out, "  PID:     %d\n", lock.PID)
	fmt.Fprintf(out, "  Host:    %s\n", lock.Hostname)
	fmt.Fprintf(out, "  Runtime: %s\n", lock.Runtime)
	fmt.Fprintf(out, "  Started: %s (%s ago)\n",
		lock.StartedAt.Format("2006-01-02 15:04:05"),
		time.Since(lock.StartedAt).Round(time.Second))
	return nil
}
