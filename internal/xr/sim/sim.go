// Package sim is a deterministic in-process XR runtime.
//
// It implements xr.Runtime with scripted extension lists, fault injection,
// a session state machine that advances on its own (AutoStart), recorded
// call history, and synthetic head motion derived from the predicted display
// time. It enforces the swapchain acquire/wait/release order and the
// begin/end frame bracket, answering violations with
// xr.ErrorCallOrderInvalid so tests can observe them.
package sim

import (
	"math"
	"sync"
	"time"

	"github.com/Iron-Ham/xrloop/internal/xr"
)

// Operation names used for fault injection and the call log.
const (
	OpEnumerateExtensions   = "xrEnumerateInstanceExtensionProperties"
	OpCreateInstance        = "xrCreateInstance"
	OpDestroyInstance       = "xrDestroyInstance"
	OpPollEvent             = "xrPollEvent"
	OpGetSystem             = "xrGetSystem"
	OpEnumerateViews        = "xrEnumerateViewConfigurationViews"
	OpCreateSession         = "xrCreateSession"
	OpDestroySession        = "xrDestroySession"
	OpBeginSession          = "xrBeginSession"
	OpEndSession            = "xrEndSession"
	OpRequestExitSession    = "xrRequestExitSession"
	OpCreateReferenceSpace  = "xrCreateReferenceSpace"
	OpDestroySpace          = "xrDestroySpace"
	OpLocateSpace           = "xrLocateSpace"
	OpEnumerateFormats      = "xrEnumerateSwapchainFormats"
	OpCreateSwapchain       = "xrCreateSwapchain"
	OpDestroySwapchain      = "xrDestroySwapchain"
	OpEnumerateImages       = "xrEnumerateSwapchainImages"
	OpAcquireSwapchainImage = "xrAcquireSwapchainImage"
	OpWaitSwapchainImage    = "xrWaitSwapchainImage"
	OpReleaseSwapchainImage = "xrReleaseSwapchainImage"
	OpWaitFrame             = "xrWaitFrame"
	OpBeginFrame            = "xrBeginFrame"
	OpEndFrame              = "xrEndFrame"
	OpLocateViews           = "xrLocateViews"
)

// GLSRGB8Alpha8 is the GL_SRGB8_ALPHA8 internal format.
const GLSRGB8Alpha8 int64 = 0x8C43

// GLRGBA8 is the GL_RGBA8 internal format.
const GLRGBA8 int64 = 0x8058

// Call is one recorded runtime call.
type Call struct {
	Op        string
	Result    xr.Result
	Swapchain xr.Swapchain
	Layers    int
	Views     int
}

type spaceRecord struct {
	session xr.Session
	kind    xr.ReferenceSpaceType
	offset  xr.Posef
	tracked bool
}

type swapchainRecord struct {
	session  xr.Session
	info     xr.SwapchainCreateInfo
	images   []xr.SwapchainImage
	next     uint32
	acquired bool
	waited   bool
}

type sessionRecord struct {
	system  xr.SystemID
	state   xr.SessionState
	running bool
	inFrame bool
	waited  bool
}

// Runtime is the simulated runtime. The exported fields are the script;
// set them before handing the runtime to the driver.
type Runtime struct {
	// Extensions is what EnumerateInstanceExtensionProperties reports.
	Extensions []xr.ExtensionProperties
	// ViewCount is the number of views per frame. Defaults to 2.
	ViewCount int
	// ViewWidth and ViewHeight are the recommended per-view image size.
	ViewWidth  uint32
	ViewHeight uint32
	// ImageCount is the number of images per swapchain. Defaults to 3.
	ImageCount int
	// Formats is what EnumerateSwapchainFormats reports.
	Formats []int64
	// Period is the predicted display period.
	Period xr.Duration
	// ViewFlags is reported by every LocateViews call.
	ViewFlags xr.ViewStateFlags
	// ShouldRender is reported by every WaitFrame call.
	ShouldRender bool
	// AutoStart queues the state events a real runtime would emit when a
	// session is created, begun, asked to exit and ended.
	AutoStart bool
	// Pace makes WaitFrame sleep for one period.
	Pace bool
	// HistoryLimit caps the recorded call and end-frame logs. Zero keeps
	// everything.
	HistoryLimit int

	mu sync.Mutex

	nextHandle uint64
	instance   xr.Instance
	sessions   map[xr.Session]*sessionRecord
	spaces     map[xr.Space]*spaceRecord
	swapchains map[xr.Swapchain]*swapchainRecord
	spaceFlags map[xr.Space]xr.SpaceLocationFlags

	events      []xr.Event
	faults      map[string][]xr.Result
	stickyFault map[string]xr.Result
	calls       []Call
	endFrames   []xr.FrameEndInfo

	displayTime xr.Time
	lastWake    time.Time
}

// New returns a runtime that advertises OpenGL interop, renders two
// 1440x1600 views at 90 Hz, reports fully valid tracking, and advances its
// session state machine automatically.
func New() *Runtime {
	return &Runtime{
		Extensions: []xr.ExtensionProperties{
			{Name: xr.KHROpenGLEnable, Version: 10},
			{Name: "XR_EXT_debug_utils", Version: 4},
			{Name: "XR_EXT_hp_mixed_reality_controller", Version: 1},
			{Name: "XR_EXT_samsung_odyssey_controller", Version: 1},
		},
		ViewCount:    2,
		ViewWidth:    1440,
		ViewHeight:   1600,
		ImageCount:   3,
		Formats:      []int64{GLSRGB8Alpha8, GLRGBA8},
		Period:       xr.Duration(time.Second / 90),
		ViewFlags:    xr.ViewStatePositionValid | xr.ViewStateOrientationValid | xr.ViewStatePositionTracked | xr.ViewStateOrientationTracked,
		ShouldRender: true,
		AutoStart:    true,
		sessions:     make(map[xr.Session]*sessionRecord),
		spaces:       make(map[xr.Space]*spaceRecord),
		swapchains:   make(map[xr.Swapchain]*swapchainRecord),
		spaceFlags:   make(map[xr.Space]xr.SpaceLocationFlags),
		faults:       make(map[string][]xr.Result),
		stickyFault:  make(map[string]xr.Result),
		displayTime:  xr.Time(time.Second),
	}
}

// -----------------------------------------------------------------------------
// Script helpers
// -----------------------------------------------------------------------------

// FailNext makes the next call of op return r. Calls queue up in order.
func (r *Runtime) FailNext(op string, result xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults[op] = append(r.faults[op], result)
}

// FailAlways makes every call of op return result until ClearFaults.
func (r *Runtime) FailAlways(op string, result xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stickyFault[op] = result
}

// ClearFaults removes every scripted failure.
func (r *Runtime) ClearFaults() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults = make(map[string][]xr.Result)
	r.stickyFault = make(map[string]xr.Result)
}

// PushEvent appends an event to the runtime queue.
func (r *Runtime) PushEvent(ev xr.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// PendingEvents returns the number of undelivered events.
func (r *Runtime) PendingEvents() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// SetSessionState queues state change events for the live session.
func (r *Runtime) SetSessionState(states ...xr.SessionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for s := range r.sessions {
		r.queueStatesLocked(s, states...)
	}
}

// NewTrackedSpace creates a space whose pose is offset from the session's
// primary space, standing in for a controller action space.
func (r *Runtime) NewTrackedSpace(session xr.Session, offset xr.Posef) xr.Space {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := xr.Space(r.allocLocked())
	r.spaces[h] = &spaceRecord{session: session, offset: offset, tracked: true}
	return h
}

// SetSpaceFlags overrides the location flags reported for a space.
func (r *Runtime) SetSpaceFlags(space xr.Space, flags xr.SpaceLocationFlags) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spaceFlags[space] = flags
}

// SetSpaceOffset moves a tracked space.
func (r *Runtime) SetSpaceOffset(space xr.Space, offset xr.Posef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.spaces[space]; ok {
		rec.offset = offset
	}
}

// Calls returns a copy of the call log.
func (r *Runtime) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CountCalls returns how many times op was called, failed calls included.
func (r *Runtime) CountCalls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log and the recorded frame submissions.
func (r *Runtime) ResetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.endFrames = nil
}

// EndFrames returns every FrameEndInfo accepted by EndFrame.
func (r *Runtime) EndFrames() []xr.FrameEndInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]xr.FrameEndInfo, len(r.endFrames))
	copy(out, r.endFrames)
	return out
}

// LiveInstance returns the current instance handle, or zero.
func (r *Runtime) LiveInstance() xr.Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instance
}

// LiveSessions returns the number of undestroyed sessions.
func (r *Runtime) LiveSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// HeldImages returns the number of swapchains with an unreleased image.
func (r *Runtime) HeldImages() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, sc := range r.swapchains {
		if sc.acquired {
			n++
		}
	}
	return n
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func (r *Runtime) allocLocked() uint64 {
	r.nextHandle++
	return r.nextHandle
}

// faultLocked returns a scripted failure for op, if any.
func (r *Runtime) faultLocked(op string) (xr.Result, bool) {
	if q := r.faults[op]; len(q) > 0 {
		r.faults[op] = q[1:]
		return q[0], true
	}
	if res, ok := r.stickyFault[op]; ok {
		return res, true
	}
	return xr.Success, false
}

func (r *Runtime) recordLocked(c Call) xr.Result {
	r.calls = append(r.calls, c)
	if r.HistoryLimit > 0 && len(r.calls) > r.HistoryLimit {
		r.calls = append(r.calls[:0], r.calls[len(r.calls)-r.HistoryLimit:]...)
	}
	return c.Result
}

func (r *Runtime) queueStatesLocked(s xr.Session, states ...xr.SessionState) {
	for _, st := range states {
		r.events = append(r.events, xr.EventSessionStateChanged{Session: s, State: st, Time: r.displayTime})
	}
}

// headPose returns the synthetic head pose at t: standing height with a slow
// yaw sway.
func headPose(t xr.Time) xr.Posef {
	sec := float64(t) / float64(time.Second)
	yaw := 0.25 * math.Sin(sec*0.5)
	half := yaw / 2
	return xr.Posef{
		Orientation: xr.Quaternionf{Y: float32(math.Sin(half)), W: float32(math.Cos(half))},
		Position:    xr.Vector3f{X: float32(0.05 * math.Sin(sec)), Y: 1.7, Z: 0},
	}
}

// compose applies offset in the frame of base.
func compose(base, offset xr.Posef) xr.Posef {
	q := base.Orientation
	v := offset.Position
	// rotate v by q: v' = v + 2w(q×v) + 2q×(q×v)
	cx := q.Y*v.Z - q.Z*v.Y
	cy := q.Z*v.X - q.X*v.Z
	cz := q.X*v.Y - q.Y*v.X
	ccx := q.Y*cz - q.Z*cy
	ccy := q.Z*cx - q.X*cz
	ccz := q.X*cy - q.Y*cx
	rot := xr.Vector3f{
		X: v.X + 2*(q.W*cx+ccx),
		Y: v.Y + 2*(q.W*cy+ccy),
		Z: v.Z + 2*(q.W*cz+ccz),
	}
	o := offset.Orientation
	return xr.Posef{
		Orientation: xr.Quaternionf{
			W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
			X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
			Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
			Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		},
		Position: xr.Vector3f{
			X: base.Position.X + rot.X,
			Y: base.Position.Y + rot.Y,
			Z: base.Position.Z + rot.Z,
		},
	}
}
