// Package frame runs one frame of the wait/begin/render/end protocol per
// call: it samples tracking, drives the host renderer through the overlay
// and per-eye passes, and submits the projection layer.
package frame

import (
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	xrerrors "github.com/Iron-Ham/xrloop/internal/errors"
	"github.com/Iron-Ham/xrloop/internal/event"
	"github.com/Iron-Ham/xrloop/internal/instance"
	"github.com/Iron-Ham/xrloop/internal/logging"
	"github.com/Iron-Ham/xrloop/internal/pose"
	"github.com/Iron-Ham/xrloop/internal/session"
	"github.com/Iron-Ham/xrloop/internal/xr"
)

// Protocol stages reported in FrameError.Stage.
const (
	StageWait    = "wait"
	StageBegin   = "begin"
	StageLocate  = "locate"
	StageOverlay = "overlay"
	StageAcquire = "acquire"
	StageWaitImg = "wait-image"
	StageBind    = "bind"
	StageRender  = "render"
	StageRelease = "release"
	StageEnd     = "end"
)

// Options configures a Loop.
type Options struct {
	// ViewConfiguration defaults to the session manager's.
	ViewConfiguration xr.ViewConfigurationType
	// BlendMode defaults to opaque.
	BlendMode   xr.EnvironmentBlendMode
	Anchor      AnchorSource
	Controllers ControllerSource
	// Rig receives sampled poses. A new rig is created when nil.
	Rig    *pose.Rig
	Logger *logging.Logger
	Bus    *event.Bus
}

// Result summarizes one frame.
type Result struct {
	Frame       uint64
	Mode        event.FrameMode
	Eyes        int
	DisplayTime xr.Time
	Focused     bool
	Took        time.Duration
}

// Loop renders frames for the live session. RenderFrame and ActiveFov must
// be called from the render goroutine; tracking and immersive settings may
// be changed from any goroutine.
type Loop struct {
	rt        xr.Runtime
	instances *instance.Manager
	sessions  *session.Manager
	renderer  Renderer
	opts      Options
	rig       *pose.Rig
	logger    *logging.Logger
	bus       *event.Bus

	tracking  atomic.Pointer[Tracking]
	immersive atomic.Bool

	frame    uint64
	origin   mgl64.Vec3
	lastMode event.FrameMode
	active   *Context

	// Reused across frames and truncated after every EndFrame.
	views      []xr.View
	layerViews []xr.CompositionLayerProjectionView
	layer      xr.CompositionLayerProjection
}

// NewLoop returns a loop rendering through renderer. The loop starts in
// immersive mode with DefaultTracking.
func NewLoop(instances *instance.Manager, sessions *session.Manager, renderer Renderer, opts Options) *Loop {
	if opts.ViewConfiguration == 0 {
		opts.ViewConfiguration = sessions.Options().ViewConfiguration
	}
	if opts.BlendMode == 0 {
		opts.BlendMode = xr.EnvironmentBlendModeOpaque
	}
	if opts.Rig == nil {
		opts.Rig = pose.NewRig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	l := &Loop{
		rt:        instances.Runtime(),
		instances: instances,
		sessions:  sessions,
		renderer:  renderer,
		opts:      opts,
		rig:       opts.Rig,
		logger:    logger.WithPhase("frame"),
		bus:       opts.Bus,
	}
	t := DefaultTracking()
	l.tracking.Store(&t)
	l.immersive.Store(true)
	return l
}

// Rig returns the tracked poses the loop maintains.
func (l *Loop) Rig() *pose.Rig { return l.rig }

// Tracking returns the current tracking mapping.
func (l *Loop) Tracking() Tracking { return *l.tracking.Load() }

// SetTracking replaces the tracking mapping from the next frame on.
// A non-positive scale is treated as 1.
func (l *Loop) SetTracking(t Tracking) {
	if t.Scale <= 0 {
		t.Scale = 1
	}
	l.tracking.Store(&t)
}

// Immersive reports whether eye passes render the host's content.
func (l *Loop) Immersive() bool { return l.immersive.Load() }

// SetImmersive switches between full rendering and cleared eye images.
func (l *Loop) SetImmersive(on bool) { l.immersive.Store(on) }

// Frames returns the number of frames started.
func (l *Loop) Frames() uint64 { return l.frame }

// ActiveFov reports the field of view of the eye pass in progress, so a
// projection.Selector can be built on the loop.
func (l *Loop) ActiveFov() (xr.Fovf, bool) {
	if l.active == nil {
		return xr.Fovf{}, false
	}
	return l.active.ActiveFov()
}

// RenderFrame runs one frame. Once BeginFrame has succeeded, EndFrame is
// called exactly once on every path, including a panicking renderer, and
// every acquired swapchain image is released before it. A frame that fails
// after BeginFrame is ended with no layers.
func (l *Loop) RenderFrame() (res Result, err error) {
	s := l.sessions.Current()
	if s == nil {
		return Result{}, xrerrors.ErrNoSession
	}
	if !s.Running() {
		return Result{}, xrerrors.ErrSessionNotRunning
	}

	start := time.Now()
	l.frame++
	ctx := newContext(l.frame, start)
	ctx.Focused = l.sessions.IsFocused()
	res = Result{Frame: l.frame, Focused: ctx.Focused}

	state, r := l.rt.WaitFrame(s.Handle)
	if err := l.check(ctx, StageWait, "xrWaitFrame", r); err != nil {
		return res, err
	}
	ctx.State = state
	res.DisplayTime = state.PredictedDisplayTime

	if err := l.check(ctx, StageBegin, "xrBeginFrame", l.rt.BeginFrame(s.Handle)); err != nil {
		return res, err
	}

	l.active = ctx
	var layers []*xr.CompositionLayerProjection
	composed := false
	defer func() {
		endErr := l.check(ctx, StageEnd, "xrEndFrame", l.rt.EndFrame(s.Handle, xr.FrameEndInfo{
			DisplayTime:          state.PredictedDisplayTime,
			EnvironmentBlendMode: l.opts.BlendMode,
			Layers:               layers,
		}))
		l.views = l.views[:0]
		l.layerViews = l.layerViews[:0]
		l.layer = xr.CompositionLayerProjection{}
		l.active = nil
		if !composed {
			// Panicking renderer; the frame is closed, let the panic continue.
			return
		}
		switch {
		case err == nil:
			err = endErr
		case endErr != nil:
			err = xrerrors.Join(err, endErr)
		}
		if err != nil {
			return
		}
		res.Took = time.Since(start)
		l.completed(res, state)
	}()

	layers, err = l.compose(ctx, s, &res)
	composed = true
	if err != nil {
		layers = nil
	}
	return res, err
}

func (l *Loop) compose(ctx *Context, s *session.Session, res *Result) ([]*xr.CompositionLayerProjection, error) {
	if !ctx.State.ShouldRender {
		res.Mode = event.FrameModeSkipped
		return nil, nil
	}

	valid, err := l.locateViews(ctx, s)
	if err != nil {
		return nil, err
	}
	res.Mode = event.FrameModeBlank
	if !valid {
		// Nothing is submitted and no pose advances this frame.
		return nil, nil
	}
	if len(l.views) != s.ViewCount() {
		return nil, xrerrors.NewSetupError("runtime located a different number of views than were created", xrerrors.ErrViewCountMismatch).
			WithComponent("frame")
	}

	immersive := l.immersive.Load()
	tr := l.Tracking()
	if immersive {
		l.sampleTracking(ctx, s, tr)
		ctx.Pass = PassOverlay
		if err := l.renderer.RenderOverlay(ctx); err != nil {
			ctx.endPass()
			return nil, xrerrors.NewFrameError(StageOverlay, err).WithFrame(ctx.Frame)
		}
		ctx.endPass()
		res.Mode = event.FrameModeRendered
	}

	for eye := range l.views {
		if err := l.renderEye(ctx, s, eye, tr, immersive); err != nil {
			return nil, err
		}
		res.Eyes++
	}

	l.layer = xr.CompositionLayerProjection{Space: s.PrimarySpace, Views: l.layerViews}
	return []*xr.CompositionLayerProjection{&l.layer}, nil
}

// locateViews fills l.views and reports whether both position and
// orientation are valid for the frame.
func (l *Loop) locateViews(ctx *Context, s *session.Session) (bool, error) {
	vs, views, r := l.rt.LocateViews(s.Handle, xr.ViewLocateInfo{
		ViewConfigurationType: l.opts.ViewConfiguration,
		DisplayTime:           ctx.State.PredictedDisplayTime,
		Space:                 s.PrimarySpace,
	})
	if err := l.check(ctx, StageLocate, "xrLocateViews", r); err != nil {
		return false, err
	}
	if !vs.Valid() {
		return false, nil
	}
	l.views = append(l.views[:0], views...)
	return true, nil
}

// sampleTracking refreshes the rig. Hands are only sampled while focused and
// only for active controllers; a point whose location is not fully valid
// keeps its previous pose.
func (l *Loop) sampleTracking(ctx *Context, s *session.Session, tr Tracking) {
	t := ctx.State.PredictedDisplayTime
	if ctx.Focused && l.opts.Controllers != nil {
		for hand := pose.LeftHand; hand <= pose.RightHand; hand++ {
			grip, aim, active := l.opts.Controllers.HandSpaces(hand)
			if !active {
				continue
			}
			if p, ok := l.locate(grip, s.PrimarySpace, t); ok {
				l.rig.UpdateGrip(hand, p, tr.YawTurn)
			}
			if p, ok := l.locate(aim, s.PrimarySpace, t); ok {
				l.rig.UpdateAim(hand, p, tr.YawTurn)
			}
		}
	}
	if p, ok := l.locate(s.ViewSpace, s.PrimarySpace, t); ok {
		l.rig.UpdateHead(p, tr.YawTurn)
	}

	switch {
	case l.opts.Anchor == nil:
		l.origin = tr.Offset
	default:
		if prev, cur, delta, ok := l.opts.Anchor.Anchor(); ok {
			l.origin = pose.Lerp(prev, cur, delta).Add(tr.Offset)
		}
	}
	l.rig.UpdateGame(l.origin, tr.Scale)
	ctx.Origin = l.origin
	ctx.Scale = tr.Scale
}

func (l *Loop) locate(space, base xr.Space, t xr.Time) (xr.Posef, bool) {
	loc, r := l.rt.LocateSpace(space, base, t)
	if r != xr.Success {
		if r.Failed() {
			l.logger.Debug("locate space failed", "space", uint64(space), "result", int32(r))
		}
		return xr.Posef{}, false
	}
	if !loc.Valid() {
		return xr.Posef{}, false
	}
	return loc.Pose, true
}

// renderEye runs one eye's acquire/wait/render/release sequence and appends
// its projection view. The image is released on every path once acquired.
func (l *Loop) renderEye(ctx *Context, s *session.Session, eye int, tr Tracking, immersive bool) (err error) {
	sc := s.Swapchains[eye]
	fb := sc.Framebuffer
	view := l.views[eye]

	idx, r := l.rt.AcquireSwapchainImage(sc.Handle)
	if err := l.checkEye(ctx, eye, StageAcquire, "xrAcquireSwapchainImage", r); err != nil {
		return err
	}
	defer func() {
		fb.Unbind()
		ctx.endPass()
		relErr := l.checkEye(ctx, eye, StageRelease, "xrReleaseSwapchainImage", l.rt.ReleaseSwapchainImage(sc.Handle))
		if err == nil {
			err = relErr
		}
	}()

	if err := l.checkEye(ctx, eye, StageWaitImg, "xrWaitSwapchainImage", l.rt.WaitSwapchainImage(sc.Handle, xr.InfiniteDuration)); err != nil {
		return err
	}
	if err := fb.Bind(idx); err != nil {
		return xrerrors.NewFrameError(StageBind, err).WithFrame(ctx.Frame).WithEye(eye)
	}
	ctx.beginEye(eye, view.Fov, fb)

	if immersive {
		eyePose := l.rig.UpdateEye(view.Pose, tr.YawTurn, ctx.Origin, ctx.Scale)
		err = l.renderer.RenderEye(ctx, eye, eyePose, view.Fov)
	} else if blank, ok := l.renderer.(BlankRenderer); ok {
		err = blank.ClearEye(ctx, eye, fb)
	}
	if err != nil {
		return xrerrors.NewFrameError(StageRender, err).WithFrame(ctx.Frame).WithEye(eye)
	}

	l.layerViews = append(l.layerViews, xr.CompositionLayerProjectionView{
		Pose: view.Pose,
		Fov:  view.Fov,
		SubImage: xr.SwapchainSubImage{
			Swapchain: sc.Handle,
			ImageRect: xr.Rect2Di{Extent: xr.Extent2Di{Width: fb.Width, Height: fb.Height}},
		},
	})
	return nil
}

func (l *Loop) check(ctx *Context, stage, op string, r xr.Result) error {
	if err := l.instances.Check(op, r); err != nil {
		return xrerrors.NewFrameError(stage, err).WithFrame(ctx.Frame)
	}
	return nil
}

func (l *Loop) checkEye(ctx *Context, eye int, stage, op string, r xr.Result) error {
	if err := l.instances.Check(op, r); err != nil {
		return xrerrors.NewFrameError(stage, err).WithFrame(ctx.Frame).WithEye(eye)
	}
	return nil
}

func (l *Loop) completed(res Result, state xr.FrameState) {
	if res.Mode != l.lastMode {
		l.logger.Info("frame mode changed", "from", string(l.lastMode), "to", string(res.Mode), "frame", res.Frame)
		l.lastMode = res.Mode
	}
	l.bus.Publish(event.NewFrameCompletedEvent(
		res.Frame,
		int64(res.DisplayTime),
		time.Duration(state.PredictedDisplayPeriod),
		res.Mode,
		res.Eyes,
		res.Focused,
		res.Took,
	))
}
