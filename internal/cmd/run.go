package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Iron-Ham/xrloop/internal/config"
	"github.com/Iron-Ham/xrloop/internal/driver"
	"github.com/Iron-Ham/xrloop/internal/event"
	"github.com/Iron-Ham/xrloop/internal/logging"
	"github.com/Iron-Ham/xrloop/internal/render"
	"github.com/Iron-Ham/xrloop/internal/session"
	"github.com/Iron-Ham/xrloop/internal/tui"
	"github.com/Iron-Ham/xrloop/internal/xr/sim"
)

// simRuntimeName identifies the simulated runtime in the device lock.
const simRuntimeName = "simulated"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive an XR session",
	Long: `Bring up the runtime and drive frames until interrupted.

The headless renderer walks the full frame protocol for every eye, so the
whole lifecycle (bring-up, state changes, frame submission, loss and
rebuild) can be observed without a graphics context.

Examples:
  # Render 900 frames against the simulated runtime
  xrloop run --simulate --frames 900

  # Watch session state and frame statistics live
  xrloop run --simulate --monitor`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runFrames   uint64
	runMonitor  bool
	runSimulate bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Uint64Var(&runFrames, "frames", 0, "Stop after this many rendered frames (0 runs until interrupted)")
	runCmd.Flags().BoolVar(&runMonitor, "monitor", false, "Show the live monitor (requires a terminal)")
	runCmd.Flags().BoolVar(&runSimulate, "simulate", false, "Drive the built-in simulated runtime")
}

func runRun(cmd *cobra.Command, args []string) error {
	if !runSimulate {
		return errors.New("no runtime loader is linked into this build; pass --simulate")
	}
	if runMonitor && !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("--monitor needs an interactive terminal")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := openLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	lock, err := session.AcquireDeviceLock(config.StateDir(), simRuntimeName, logger)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	rt := sim.New()
	rt.Pace = true
	rt.HistoryLimit = 1024

	bus := event.NewBus()
	renderer := render.NewHeadless(cfg.Render.NearClip, cfg.Render.FarClip, logger)
	d, err := driver.New(rt, cfg, renderer, driver.Options{
		Logger:    logger,
		Bus:       bus,
		Anchor:    render.NewWalker(mgl64.Vec3{0, 64, 0}, 4),
		MaxFrames: runFrames,
	})
	if err != nil {
		return err
	}

	if path := viper.ConfigFileUsed(); path != "" {
		config.Watch(func(next *config.Config, e fsnotify.Event) {
			d.ApplyConfig(next, e.Name)
		}, func(err error) {
			logger.Warn("config reload rejected", "error", err.Error())
		})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runMonitor {
		err = runWithMonitor(ctx, d, bus, cfg.Monitor)
	} else {
		err = d.Run(ctx)
	}
	printRunSummary(cmd.OutOrStdout(), d.Stats(), renderer.Stats())
	return err
}

// runWithMonitor runs the driver and the TUI side by side. Whichever stops
// first stops the other.
func runWithMonitor(ctx context.Context, d *driver.Driver, bus *event.Bus, cfg config.MonitorConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := tui.New(d, bus, cfg)
	done := make(chan error, 1)
	go func() {
		err := d.Run(ctx)
		cancel()
		done <- err
	}()

	uiErr := app.Run(ctx)
	cancel()
	return errors.Join(<-done, uiErr)
}

func openLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	if !cfg.Enabled {
		return logging.NopLogger(), nil
	}
	logger, err := logging.NewLoggerWithRotation(cfg.ResolveDir(), cfg.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	return logger, nil
}

func printRunSummary(w io.Writer, stats driver.Stats, r render.Stats) {
	fmt.Fprintf(w, "Rendered %d frames (%d eye passes, %d cleared eyes), %d failed\n",
		stats.Rendered, r.Eyes, r.Clears, stats.Failed)
	fmt.Fprintf(w, "Sessions: %d initialized, %d torn down\n", stats.Initializations, stats.Teardowns)
	if stats.LastInitError != "" {
		fmt.Fprintf(w, "Last init error: %s\n", stats.LastInitError)
	}
}
