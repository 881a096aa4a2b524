// Package driver owns the XR lifecycle for the host: it brings the runtime
// connection up when a headset becomes available, pumps runtime events,
// renders frames while the session runs, and tears everything down and
// starts over when the runtime is lost.
//
// All methods except IsFocused, IsActive, Exited, ApplyConfig and Stats
// must be called from the render goroutine.
package driver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/xrloop/internal/config"
	xrerrors "github.com/Iron-Ham/xrloop/internal/errors"
	"github.com/Iron-Ham/xrloop/internal/event"
	"github.com/Iron-Ham/xrloop/internal/eventpump"
	"github.com/Iron-Ham/xrloop/internal/extension"
	"github.com/Iron-Ham/xrloop/internal/frame"
	"github.com/Iron-Ham/xrloop/internal/instance"
	"github.com/Iron-Ham/xrloop/internal/logging"
	"github.com/Iron-Ham/xrloop/internal/pose"
	"github.com/Iron-Ham/xrloop/internal/retry"
	"github.com/Iron-Ham/xrloop/internal/session"
	"github.com/Iron-Ham/xrloop/internal/xr"
)

// Options carries the host-side collaborators.
type Options struct {
	Logger      *logging.Logger
	Bus         *event.Bus
	Anchor      frame.AnchorSource
	Controllers frame.ControllerSource
	// MaxFrames stops Run after this many rendered frames; zero runs until
	// the context is canceled.
	MaxFrames uint64
}

// Stats is a snapshot of the driver's counters.
type Stats struct {
	Rendered        uint64
	Failed          uint64
	Initializations int
	Teardowns       int
	LastInitError   string
}

// Driver drives one runtime through repeated bring-up and teardown.
type Driver struct {
	logger *logging.Logger
	bus    *event.Bus

	negotiator *extension.Negotiator
	instances  *instance.Manager
	sessions   *session.Manager
	pump       *eventpump.Pump
	loop       *frame.Loop
	retries    *retry.Manager
	maxFrames  uint64

	mu           sync.Mutex
	retryDelay   time.Duration
	idleInterval time.Duration

	focused       atomic.Bool
	active        atomic.Bool
	exitRequested atomic.Bool
	exitScheduled atomic.Bool
	exited        atomic.Bool

	rendered        atomic.Uint64
	failed          atomic.Uint64
	initializations atomic.Int64
	teardowns       atomic.Int64
}

// New wires a driver for rt from cfg. Nothing touches the runtime until the
// first Tick.
func New(rt xr.Runtime, cfg *config.Config, renderer frame.Renderer, opts Options) (*Driver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	negotiator, err := extension.NewNegotiator(rt, cfg.Runtime.RequiredExtension, cfg.Runtime.OptionalExtensions, logger)
	if err != nil {
		return nil, fmt.Errorf("configure extension negotiation: %w", err)
	}

	instances := instance.NewManager(rt, InstanceOptions(cfg), logger, opts.Bus)
	sessions := session.NewManager(instances, SessionOptions(cfg), logger, opts.Bus)
	loop := frame.NewLoop(instances, sessions, renderer, frame.Options{
		BlendMode:   BlendMode(cfg.Render.BlendMode),
		Anchor:      opts.Anchor,
		Controllers: opts.Controllers,
		Logger:      logger,
		Bus:         opts.Bus,
	})

	d := &Driver{
		logger:     logger.WithPhase("driver"),
		bus:        opts.Bus,
		negotiator: negotiator,
		instances:  instances,
		sessions:   sessions,
		pump:       eventpump.New(instances, sessions, logger, opts.Bus),
		loop:       loop,
		retries:    retry.NewManager(),
		maxFrames:  opts.MaxFrames,
	}
	d.retries.GetOrCreateState(retry.OpInitialize, 0)
	d.retries.GetOrCreateState(retry.OpFrame, frameBudget(cfg.Loop))
	d.applyLive(cfg)
	return d, nil
}

// ApplyConfig re-applies the live-tunable settings: tracking offset, scale
// and yaw turn, immersive mode, retry pacing and the frame failure budget.
// Session-shape settings take effect at the next bring-up.
func (d *Driver) ApplyConfig(cfg *config.Config, path string) {
	d.applyLive(cfg)
	d.logger.Info("configuration reloaded",
		"path", path,
		"avatar_scale", cfg.Tracking.AvatarScale,
		"yaw_turn_degrees", cfg.Tracking.YawTurnDegrees,
		"immersive", cfg.Render.Immersive)
	d.bus.Publish(event.NewConfigReloadedEvent(path))
}

// frameBudget maps loop.max_frame_failures onto a retry limit. The retry
// manager reads zero as unlimited, but a zero budget here means the first
// frame-fatal error tears the session down.
func frameBudget(cfg config.LoopConfig) int {
	return max(cfg.MaxFrameFailures, 1)
}

func (d *Driver) applyLive(cfg *config.Config) {
	d.loop.SetTracking(Tracking(cfg.Tracking))
	d.loop.SetImmersive(cfg.Render.Immersive)
	d.retries.SetLimit(retry.OpFrame, frameBudget(cfg.Loop))

	d.mu.Lock()
	d.retryDelay = cfg.Loop.RetryDelay()
	d.idleInterval = cfg.Loop.IdleInterval()
	d.mu.Unlock()
}

func (d *Driver) pacing() (retryDelay, idle time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.retryDelay, d.idleInterval
}

// IsFocused reports whether the session is FOCUSED as of the last tick.
func (d *Driver) IsFocused() bool { return d.focused.Load() }

// IsActive reports whether a session is running as of the last tick.
func (d *Driver) IsActive() bool { return d.active.Load() }

// Rig returns the tracked poses.
func (d *Driver) Rig() *pose.Rig { return d.loop.Rig() }

// Loop returns the frame loop, which also serves as the projection
// selector's FovSource.
func (d *Driver) Loop() *frame.Loop { return d.loop }

// Stats returns the driver's counters.
func (d *Driver) Stats() Stats {
	s := Stats{
		Rendered:        d.rendered.Load(),
		Failed:          d.failed.Load(),
		Initializations: int(d.initializations.Load()),
		Teardowns:       int(d.teardowns.Load()),
	}
	if st, ok := d.retries.GetState(retry.OpInitialize); ok {
		s.LastInitError = st.LastError
	}
	return s
}

// TryInitialize brings up whatever is missing: extension negotiation and
// the instance if none is live, then the session with its spaces and
// swapchains. Unrecoverable setup errors are returned and nothing is
// retried. Recoverable failures tear down what was built, schedule the next
// attempt after the retry delay and return nil.
func (d *Driver) TryInitialize() error {
	if d.sessions.Current() != nil {
		return nil
	}

	err := d.initialize()
	if err == nil {
		d.retries.RecordSuccess(retry.OpInitialize)
		d.retries.Reset(retry.OpFrame)
		d.initializations.Add(1)
		d.syncState()
		return nil
	}

	class := xrerrors.Classify(err)
	d.teardown("initialization failed")
	if class == xrerrors.ClassUnrecoverableSetup {
		attempt, _ := d.retries.RecordFailure(retry.OpInitialize, err, 0)
		d.logger.Error("xr initialization failed", "error", err, "class", class.String())
		d.bus.Publish(event.NewInitFailedEvent(attempt, class.String(), err.Error(), 0))
		return err
	}

	delay, _ := d.pacing()
	attempt, _ := d.retries.RecordFailure(retry.OpInitialize, err, delay)
	d.logger.Warn("xr initialization failed, will retry",
		"error", err,
		"class", class.String(),
		"attempt", attempt,
		"retry_in", delay)
	d.bus.Publish(event.NewInitFailedEvent(attempt, class.String(), err.Error(), delay))
	return nil
}

func (d *Driver) initialize() error {
	inst := d.instances.Current()
	if inst == nil {
		set, err := d.negotiator.Negotiate()
		if err != nil {
			return err
		}
		inst, err = d.instances.Create(set)
		if err != nil {
			return err
		}
	}
	if _, err := d.sessions.Open(inst); err != nil {
		return err
	}
	return nil
}

// Tick advances the driver by one step: initialize if due, drain runtime
// events, and render one frame while the session runs. A returned error is
// an unrecoverable setup failure; everything else is handled internally.
func (d *Driver) Tick() error {
	defer d.syncState()

	if d.exited.Load() {
		return nil
	}
	if d.exitScheduled.CompareAndSwap(true, false) {
		if err := d.RequestExit(); err != nil {
			d.logger.Warn("scheduled exit dropped", "error", err)
		}
	}
	if d.sessions.Current() == nil {
		if !d.retries.Due(retry.OpInitialize) {
			return nil
		}
		if err := d.TryInitialize(); err != nil {
			return err
		}
		if d.sessions.Current() == nil {
			return nil
		}
	}

	teardown, err := d.pump.PollOnce()
	if err != nil {
		return d.runtimeFailure("poll events", err)
	}
	if teardown {
		// A lost instance is already closed by the pump.
		d.closeAll("session ended")
		d.teardowns.Add(1)
		if d.exitRequested.Load() {
			d.exited.Store(true)
			d.logger.Info("session exited on request")
		}
		return nil
	}

	if !d.sessions.IsRunning() {
		return nil
	}
	if _, err := d.loop.RenderFrame(); err != nil {
		return d.frameFailed(err)
	}
	d.rendered.Add(1)
	d.retries.RecordSuccess(retry.OpFrame)
	return nil
}

// frameFailed routes a frame error by class. Frame-fatal errors only abort
// the frame until the failure budget is spent.
func (d *Driver) frameFailed(err error) error {
	d.failed.Add(1)
	switch xrerrors.Classify(err) {
	case xrerrors.ClassUnrecoverableSetup:
		d.logger.Error("frame hit a configuration error", "error", err)
		d.teardown("configuration error")
		return err
	case xrerrors.ClassRecoverableRuntime:
		return d.runtimeFailure("render frame", err)
	}

	var fe *xrerrors.FrameError
	stage := ""
	var frameNo uint64
	if xrerrors.As(err, &fe) {
		stage = fe.Stage
		frameNo = fe.Frame
	}
	consecutive, exhausted := d.retries.RecordFailure(retry.OpFrame, err, 0)
	d.logger.Warn("frame aborted", "error", err, "stage", stage, "consecutive", consecutive)
	d.bus.Publish(event.NewFrameFailedEvent(frameNo, stage, err.Error(), consecutive))

	if exhausted {
		d.logger.Error("too many consecutive frame failures, rebuilding session", "consecutive", consecutive)
		d.teardown("frame failures")
		delay, _ := d.pacing()
		d.retries.RecordFailure(retry.OpInitialize, err, delay)
	}
	return nil
}

// runtimeFailure tears everything down after a retryable runtime error and
// schedules the next bring-up.
func (d *Driver) runtimeFailure(op string, err error) error {
	if xrerrors.Classify(err) == xrerrors.ClassUnrecoverableSetup {
		d.teardown(op + " failed")
		return err
	}
	delay, _ := d.pacing()
	d.logger.Warn("xr runtime failure, rebuilding", "op", op, "error", err, "retry_in", delay)
	d.teardown(op + " failed")
	d.retries.RecordFailure(retry.OpInitialize, err, delay)
	return nil
}

// teardown destroys the session then the instance. The next bring-up
// starts over at extension negotiation.
func (d *Driver) teardown(reason string) {
	if d.closeAll(reason) {
		d.teardowns.Add(1)
	}
}

// closeAll reports whether there was anything to close.
func (d *Driver) closeAll(reason string) bool {
	hadAny := d.sessions.Current() != nil || d.instances.Live()
	if err := d.sessions.Close(reason); err != nil {
		d.logger.Warn("session teardown reported errors", "reason", reason, "error", err)
	}
	if err := d.instances.Close(reason); err != nil {
		d.logger.Warn("instance teardown reported errors", "reason", reason, "error", err)
	}
	d.retries.Reset(retry.OpFrame)
	d.syncState()
	return hadAny
}

// RequestExit asks the runtime to end the running session. The session
// winds down through STOPPING and EXITING over the next ticks; once it is
// torn down the driver stays idle and Run returns.
func (d *Driver) RequestExit() error {
	if err := d.sessions.RequestExit(); err != nil {
		return fmt.Errorf("request session exit: %w", err)
	}
	d.exitRequested.Store(true)
	d.logger.Info("session exit requested")
	return nil
}

// ScheduleExit is RequestExit for callers outside the render goroutine.
// The request is issued at the start of the next Tick.
func (d *Driver) ScheduleExit() {
	d.exitScheduled.Store(true)
}

// Exited reports whether a requested exit has completed.
func (d *Driver) Exited() bool { return d.exited.Load() }

// Shutdown releases every runtime object.
func (d *Driver) Shutdown() {
	d.teardown("shutdown")
}

func (d *Driver) syncState() {
	d.focused.Store(d.sessions.IsFocused())
	d.active.Store(d.sessions.IsRunning())
}

// Run ticks until ctx is canceled, MaxFrames frames have been rendered or
// an unrecoverable setup error occurs. While a session runs, WaitFrame
// paces the loop; otherwise ticks are spaced by the idle interval.
// Everything is torn down before Run returns.
func (d *Driver) Run(ctx context.Context) error {
	defer d.Shutdown()

	_, idle := d.pacing()
	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	d.logger.Info("driver started", "idle_interval", idle, "max_frames", d.maxFrames)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := d.Tick(); err != nil {
			return err
		}
		if d.exited.Load() {
			return nil
		}
		if d.maxFrames > 0 && d.rendered.Load() >= d.maxFrames {
			d.logger.Info("frame limit reached", "frames", d.rendered.Load())
			return nil
		}
		if d.sessions.IsRunning() {
			continue
		}
		if _, next := d.pacing(); next != idle {
			idle = next
			ticker.Reset(idle)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
