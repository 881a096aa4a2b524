package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/xrloop/internal/config"
	"github.com/Iron-Ham/xrloop/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View driver logs",
	Long: `View and filter the driver's logs, including rotated backups.

Examples:
  # Show the last 50 entries
  xrloop logs

  # Everything one session logged, as CSV
  xrloop logs --session 3f2a... -n 0 --format csv

  # Follow frame-loop warnings in real time
  xrloop logs -f --phase frame --level warn

  # Show logs from the last hour matching a pattern
  xrloop logs --since 1h --grep "lost|failed"`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsDir       string
	logsSessionID string
	logsPhase     string
	logsTail      int
	logsFollow    bool
	logsLevel     string
	logsSince     string
	logsGrep      string
	logsFormat    string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsDir, "dir", "", "Log directory (default: logging.dir or the state directory)")
	logsCmd.Flags().StringVarP(&logsSessionID, "session", "s", "", "Only entries from this session ID")
	logsCmd.Flags().StringVar(&logsPhase, "phase", "", "Only entries from this phase (negotiate, events, frame, driver, render)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter entries whose message or attributes match pattern (regex)")
	logsCmd.Flags().StringVar(&logsFormat, "format", "text", "Output format (text, json, csv)")
}

// logQuery is the parsed form of the logs flags.
type logQuery struct {
	filter logging.LogFilter
	grep   *regexp.Regexp
}

func (q logQuery) matches(e logging.LogEntry) bool {
	if !q.filter.Matches(e) {
		return false
	}
	if q.grep == nil {
		return true
	}
	// Search in message and attributes
	searchText := e.Message
	for _, v := range e.Attrs {
		searchText += " " + fmt.Sprintf("%v", v)
	}
	return q.grep.MatchString(searchText)
}

func parseLogQuery(now time.Time) (logQuery, error) {
	q := logQuery{filter: logging.LogFilter{
		SessionID: logsSessionID,
		Phase:     logsPhase,
	}}
	if logsLevel != "" {
		q.filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return q, fmt.Errorf("invalid duration format: %w", err)
		}
		q.filter.StartTime = now.Add(-d)
	}
	if logsGrep != "" {
		re, err := regexp.Compile(logsGrep)
		if err != nil {
			return q, fmt.Errorf("invalid grep pattern: %w", err)
		}
		q.grep = re
	}
	return q, nil
}

func resolveLogDir() string {
	if logsDir != "" {
		return logsDir
	}
	cfg := config.Get()
	return cfg.Logging.ResolveDir()
}

func runLogs(cmd *cobra.Command, args []string) error {
	q, err := parseLogQuery(time.Now())
	if err != nil {
		return err
	}
	dir := resolveLogDir()
	out := cmd.OutOrStdout()

	if logsFollow {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return followLogs(ctx, out, filepath.Join(dir, logging.LogFileName), q)
	}

	entries, err := logging.AggregateLogs(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(out, "No logs found in %s\n", dir)
			return nil
		}
		return err
	}

	var matched []logging.LogEntry
	for _, e := range entries {
		if q.matches(e) {
			matched = append(matched, e)
		}
	}
	// Apply tail limit
	if logsTail > 0 && len(matched) > logsTail {
		matched = matched[len(matched)-logsTail:]
	}
	if len(matched) == 0 && logsFormat == "text" {
		fmt.Fprintln(out, "No matching log entries found.")
		return nil
	}
	return logging.WriteLogEntries(out, matched, logsFormat)
}

// followLogs implements tail -f behavior for the log file
func followLogs(ctx context.Context, out io.Writer, logPath string, q logQuery) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Seek to end of file
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	fmt.Fprintf(out, "Following %s... (Ctrl+C to stop)\n\n", logPath)

	reader := bufio.NewReader(file)
	var partial string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				return fmt.Errorf("error reading log file: %w", err)
			}
			// Keep a half-written line until its newline arrives
			partial += line
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		line = strings.TrimSpace(partial + line)
		partial = ""
		if line == "" {
			continue
		}
		entry, err := logging.ParseLogEntry(line)
		if err != nil {
			// If we can't parse as JSON, display raw line
			fmt.Fprintln(out, line)
			continue
		}
		if !q.matches(entry) {
			continue
		}
		if err := logging.WriteLogEntries(out, []logging.LogEntry{entry}, "text"); err != nil {
			return err
		}
	}
}
