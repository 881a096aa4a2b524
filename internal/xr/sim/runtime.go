package sim

import (
	"math"
	"time"

	"github.com/Iron-Ham/xrloop/internal/xr"
)

var _ xr.Runtime = (*Runtime)(nil)

func (r *Runtime) EnumerateInstanceExtensionProperties() ([]xr.ExtensionProperties, xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpEnumerateExtensions); ok {
		return nil, r.recordLocked(Call{Op: OpEnumerateExtensions, Result: res})
	}
	out := make([]xr.ExtensionProperties, len(r.Extensions))
	copy(out, r.Extensions)
	return out, r.recordLocked(Call{Op: OpEnumerateExtensions})
}

func (r *Runtime) CreateInstance(info xr.InstanceCreateInfo) (xr.Instance, xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpCreateInstance); ok {
		return 0, r.recordLocked(Call{Op: OpCreateInstance, Result: res})
	}
	if r.instance != 0 {
		return 0, r.recordLocked(Call{Op: OpCreateInstance, Result: xr.ErrorLimitReached})
	}
	for _, name := range info.EnabledExtensionNames {
		if !r.advertisedLocked(name) {
			return 0, r.recordLocked(Call{Op: OpCreateInstance, Result: xr.ErrorExtensionNotPresent})
		}
	}
	r.instance = xr.Instance(r.allocLocked())
	r.events = nil
	return r.instance, r.recordLocked(Call{Op: OpCreateInstance})
}

func (r *Runtime) advertisedLocked(name string) bool {
	for _, e := range r.Extensions {
		if e.Name == name {
			return true
		}
	}
	return false
}

func (r *Runtime) DestroyInstance(inst xr.Instance) xr.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpDestroyInstance); ok {
		return r.recordLocked(Call{Op: OpDestroyInstance, Result: res})
	}
	if inst == 0 || inst != r.instance {
		return r.recordLocked(Call{Op: OpDestroyInstance, Result: xr.ErrorHandleInvalid})
	}
	// Destroying the instance destroys every child.
	r.instance = 0
	r.sessions = make(map[xr.Session]*sessionRecord)
	r.spaces = make(map[xr.Space]*spaceRecord)
	r.swapchains = make(map[xr.Swapchain]*swapchainRecord)
	r.spaceFlags = make(map[xr.Space]xr.SpaceLocationFlags)
	r.events = nil
	return r.recordLocked(Call{Op: OpDestroyInstance})
}

func (r *Runtime) ResultToString(inst xr.Instance, res xr.Result) (string, xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst == 0 || inst != r.instance {
		return "", xr.ErrorHandleInvalid
	}
	return res.String(), xr.Success
}

func (r *Runtime) PollEvent(inst xr.Instance) (xr.Event, xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpPollEvent); ok {
		return nil, r.recordLocked(Call{Op: OpPollEvent, Result: res})
	}
	if inst == 0 || inst != r.instance {
		return nil, r.recordLocked(Call{Op: OpPollEvent, Result: xr.ErrorHandleInvalid})
	}
	if len(r.events) == 0 {
		return nil, r.recordLocked(Call{Op: OpPollEvent, Result: xr.EventUnavailable})
	}
	ev := r.events[0]
	r.events = r.events[1:]
	return ev, r.recordLocked(Call{Op: OpPollEvent})
}

func (r *Runtime) GetSystem(inst xr.Instance, formFactor xr.FormFactor) (xr.SystemID, xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpGetSystem); ok {
		return 0, r.recordLocked(Call{Op: OpGetSystem, Result: res})
	}
	if inst == 0 || inst != r.instance {
		return 0, r.recordLocked(Call{Op: OpGetSystem, Result: xr.ErrorHandleInvalid})
	}
	if formFactor != xr.FormFactorHeadMountedDisplay {
		return 0, r.recordLocked(Call{Op: OpGetSystem, Result: xr.ErrorFormFactorUnsupported})
	}
	return xr.SystemID(1), r.recordLocked(Call{Op: OpGetSystem})
}

func (r *Runtime) EnumerateViewConfigurationViews(inst xr.Instance, system xr.SystemID, viewConfig xr.ViewConfigurationType) ([]xr.ViewConfigurationView, xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpEnumerateViews); ok {
		return nil, r.recordLocked(Call{Op: OpEnumerateViews, Result: res})
	}
	if inst == 0 || inst != r.instance || system == 0 {
		return nil, r.recordLocked(Call{Op: OpEnumerateViews, Result: xr.ErrorHandleInvalid})
	}
	n := r.ViewCount
	if viewConfig == xr.ViewConfigurationPrimaryMono {
		n = 1
	}
	views := make([]xr.ViewConfigurationView, n)
	for i := range views {
		views[i] = xr.ViewConfigurationView{
			RecommendedImageRectWidth:       r.ViewWidth,
			MaxImageRectWidth:               r.ViewWidth * 2,
			RecommendedImageRectHeight:      r.ViewHeight,
			MaxImageRectHeight:              r.ViewHeight * 2,
			RecommendedSwapchainSampleCount: 1,
			MaxSwapchainSampleCount:         4,
		}
	}
	return views, r.recordLocked(Call{Op: OpEnumerateViews})
}

func (r *Runtime) CreateSession(inst xr.Instance, info xr.SessionCreateInfo) (xr.Session, xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpCreateSession); ok {
		return 0, r.recordLocked(Call{Op: OpCreateSession, Result: res})
	}
	if inst == 0 || inst != r.instance {
		return 0, r.recordLocked(Call{Op: OpCreateSession, Result: xr.ErrorHandleInvalid})
	}
	if info.SystemID == 0 {
		return 0, r.recordLocked(Call{Op: OpCreateSession, Result: xr.ErrorSystemInvalid})
	}
	s := xr.Session(r.allocLocked())
	r.sessions[s] = &sessionRecord{system: info.SystemID, state: xr.SessionStateIdle}
	if r.AutoStart {
		r.queueStatesLocked(s, xr.SessionStateIdle, xr.SessionStateReady)
	}
	return s, r.recordLocked(Call{Op: OpCreateSession})
}

func (r *Runtime) DestroySession(s xr.Session) xr.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpDestroySession); ok {
		return r.recordLocked(Call{Op: OpDestroySession, Result: res})
	}
	if _, ok := r.sessions[s]; !ok {
		return r.recordLocked(Call{Op: OpDestroySession, Result: xr.ErrorHandleInvalid})
	}
	delete(r.sessions, s)
	for h, sp := range r.spaces {
		if sp.session == s {
			delete(r.spaces, h)
			delete(r.spaceFlags, h)
		}
	}
	for h, sc := range r.swapchains {
		if sc.session == s {
			delete(r.swapchains, h)
		}
	}
	return r.recordLocked(Call{Op: OpDestroySession})
}

func (r *Runtime) BeginSession(s xr.Session, viewConfig xr.ViewConfigurationType) xr.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpBeginSession); ok {
		return r.recordLocked(Call{Op: OpBeginSession, Result: res})
	}
	rec, ok := r.sessions[s]
	if !ok {
		return r.recordLocked(Call{Op: OpBeginSession, Result: xr.ErrorHandleInvalid})
	}
	if rec.running {
		return r.recordLocked(Call{Op: OpBeginSession, Result: xr.ErrorSessionRunning})
	}
	rec.running = true
	if r.AutoStart {
		r.queueStatesLocked(s, xr.SessionStateSynchronized, xr.SessionStateVisible, xr.SessionStateFocused)
	}
	return r.recordLocked(Call{Op: OpBeginSession})
}

func (r *Runtime) EndSession(s xr.Session) xr.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpEndSession); ok {
		return r.recordLocked(Call{Op: OpEndSession, Result: res})
	}
	rec, ok := r.sessions[s]
	if !ok {
		return r.recordLocked(Call{Op: OpEndSession, Result: xr.ErrorHandleInvalid})
	}
	if !rec.running {
		return r.recordLocked(Call{Op: OpEndSession, Result: xr.ErrorSessionNotRunning})
	}
	rec.running = false
	rec.inFrame = false
	rec.waited = false
	if r.AutoStart {
		r.queueStatesLocked(s, xr.SessionStateIdle, xr.SessionStateExiting)
	}
	return r.recordLocked(Call{Op: OpEndSession})
}

func (r *Runtime) RequestExitSession(s xr.Session) xr.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpRequestExitSession); ok {
		return r.recordLocked(Call{Op: OpRequestExitSession, Result: res})
	}
	rec, ok := r.sessions[s]
	if !ok {
		return r.recordLocked(Call{Op: OpRequestExitSession, Result: xr.ErrorHandleInvalid})
	}
	if !rec.running {
		return r.recordLocked(Call{Op: OpRequestExitSession, Result: xr.ErrorSessionNotRunning})
	}
	if r.AutoStart {
		r.queueStatesLocked(s, xr.SessionStateVisible, xr.SessionStateSynchronized, xr.SessionStateStopping)
	}
	return r.recordLocked(Call{Op: OpRequestExitSession})
}

func (r *Runtime) CreateReferenceSpace(s xr.Session, info xr.ReferenceSpaceCreateInfo) (xr.Space, xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpCreateReferenceSpace); ok {
		return 0, r.recordLocked(Call{Op: OpCreateReferenceSpace, Result: res})
	}
	if _, ok := r.sessions[s]; !ok {
		return 0, r.recordLocked(Call{Op: OpCreateReferenceSpace, Result: xr.ErrorHandleInvalid})
	}
	switch info.Type {
	case xr.ReferenceSpaceView, xr.ReferenceSpaceLocal, xr.ReferenceSpaceStage:
	default:
		return 0, r.recordLocked(Call{Op: OpCreateReferenceSpace, Result: xr.ErrorReferenceSpaceUnsupported})
	}
	h := xr.Space(r.allocLocked())
	r.spaces[h] = &spaceRecord{session: s, kind: info.Type, offset: info.PoseInReferenceSpace}
	return h, r.recordLocked(Call{Op: OpCreateReferenceSpace})
}

func (r *Runtime) DestroySpace(space xr.Space) xr.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpDestroySpace); ok {
		return r.recordLocked(Call{Op: OpDestroySpace, Result: res})
	}
	if _, ok := r.spaces[space]; !ok {
		return r.recordLocked(Call{Op: OpDestroySpace, Result: xr.ErrorHandleInvalid})
	}
	delete(r.spaces, space)
	delete(r.spaceFlags, space)
	return r.recordLocked(Call{Op: OpDestroySpace})
}

func (r *Runtime) LocateSpace(space, base xr.Space, t xr.Time) (xr.SpaceLocation, xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpLocateSpace); ok {
		return xr.SpaceLocation{}, r.recordLocked(Call{Op: OpLocateSpace, Result: res})
	}
	sp, ok := r.spaces[space]
	if !ok {
		return xr.SpaceLocation{}, r.recordLocked(Call{Op: OpLocateSpace, Result: xr.ErrorHandleInvalid})
	}
	if _, ok := r.spaces[base]; !ok {
		return xr.SpaceLocation{}, r.recordLocked(Call{Op: OpLocateSpace, Result: xr.ErrorHandleInvalid})
	}
	if t <= 0 {
		return xr.SpaceLocation{}, r.recordLocked(Call{Op: OpLocateSpace, Result: xr.ErrorTimeInvalid})
	}

	flags, scripted := r.spaceFlags[space]
	if !scripted {
		flags = xr.SpaceLocationPositionValid | xr.SpaceLocationOrientationValid |
			xr.SpaceLocationPositionTracked | xr.SpaceLocationOrientationTracked
	}

	var pose xr.Posef
	switch {
	case sp.kind == xr.ReferenceSpaceView:
		pose = headPose(t)
	case sp.tracked:
		pose = compose(xr.IdentityPose, sp.offset)
	default:
		pose = sp.offset
	}
	return xr.SpaceLocation{Flags: flags, Pose: pose}, r.recordLocked(Call{Op: OpLocateSpace})
}

func (r *Runtime) EnumerateSwapchainFormats(s xr.Session) ([]int64, xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpEnumerateFormats); ok {
		return nil, r.recordLocked(Call{Op: OpEnumerateFormats, Result: res})
	}
	if _, ok := r.sessions[s]; !ok {
		return nil, r.recordLocked(Call{Op: OpEnumerateFormats, Result: xr.ErrorHandleInvalid})
	}
	out := make([]int64, len(r.Formats))
	copy(out, r.Formats)
	return out, r.recordLocked(Call{Op: OpEnumerateFormats})
}

func (r *Runtime) CreateSwapchain(s xr.Session, info xr.SwapchainCreateInfo) (xr.Swapchain, xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpCreateSwapchain); ok {
		return 0, r.recordLocked(Call{Op: OpCreateSwapchain, Result: res})
	}
	if _, ok := r.sessions[s]; !ok {
		return 0, r.recordLocked(Call{Op: OpCreateSwapchain, Result: xr.ErrorHandleInvalid})
	}
	supported := false
	for _, f := range r.Formats {
		if f == info.Format {
			supported = true
			break
		}
	}
	if !supported {
		return 0, r.recordLocked(Call{Op: OpCreateSwapchain, Result: xr.ErrorSwapchainFormatUnsupported})
	}
	h := xr.Swapchain(r.allocLocked())
	rec := &swapchainRecord{session: s, info: info}
	for i := 0; i < r.ImageCount; i++ {
		rec.images = append(rec.images, xr.SwapchainImage{Image: uint32(h)*100 + uint32(i) + 1})
	}
	r.swapchains[h] = rec
	return h, r.recordLocked(Call{Op: OpCreateSwapchain, Swapchain: h})
}

func (r *Runtime) DestroySwapchain(sc xr.Swapchain) xr.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpDestroySwapchain); ok {
		return r.recordLocked(Call{Op: OpDestroySwapchain, Result: res, Swapchain: sc})
	}
	if _, ok := r.swapchains[sc]; !ok {
		return r.recordLocked(Call{Op: OpDestroySwapchain, Result: xr.ErrorHandleInvalid, Swapchain: sc})
	}
	delete(r.swapchains, sc)
	return r.recordLocked(Call{Op: OpDestroySwapchain, Swapchain: sc})
}

func (r *Runtime) EnumerateSwapchainImages(sc xr.Swapchain) ([]xr.SwapchainImage, xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpEnumerateImages); ok {
		return nil, r.recordLocked(Call{Op: OpEnumerateImages, Result: res, Swapchain: sc})
	}
	rec, ok := r.swapchains[sc]
	if !ok {
		return nil, r.recordLocked(Call{Op: OpEnumerateImages, Result: xr.ErrorHandleInvalid, Swapchain: sc})
	}
	out := make([]xr.SwapchainImage, len(rec.images))
	copy(out, rec.images)
	return out, r.recordLocked(Call{Op: OpEnumerateImages, Swapchain: sc})
}

func (r *Runtime) AcquireSwapchainImage(sc xr.Swapchain) (uint32, xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpAcquireSwapchainImage); ok {
		return 0, r.recordLocked(Call{Op: OpAcquireSwapchainImage, Result: res, Swapchain: sc})
	}
	rec, ok := r.swapchains[sc]
	if !ok {
		return 0, r.recordLocked(Call{Op: OpAcquireSwapchainImage, Result: xr.ErrorHandleInvalid, Swapchain: sc})
	}
	if rec.acquired {
		return 0, r.recordLocked(Call{Op: OpAcquireSwapchainImage, Result: xr.ErrorCallOrderInvalid, Swapchain: sc})
	}
	idx := rec.next
	rec.next = (rec.next + 1) % uint32(len(rec.images))
	rec.acquired = true
	rec.waited = false
	return idx, r.recordLocked(Call{Op: OpAcquireSwapchainImage, Swapchain: sc})
}

func (r *Runtime) WaitSwapchainImage(sc xr.Swapchain, timeout xr.Duration) xr.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpWaitSwapchainImage); ok {
		return r.recordLocked(Call{Op: OpWaitSwapchainImage, Result: res, Swapchain: sc})
	}
	rec, ok := r.swapchains[sc]
	if !ok {
		return r.recordLocked(Call{Op: OpWaitSwapchainImage, Result: xr.ErrorHandleInvalid, Swapchain: sc})
	}
	if !rec.acquired || rec.waited {
		return r.recordLocked(Call{Op: OpWaitSwapchainImage, Result: xr.ErrorCallOrderInvalid, Swapchain: sc})
	}
	rec.waited = true
	return r.recordLocked(Call{Op: OpWaitSwapchainImage, Swapchain: sc})
}

// ReleaseSwapchainImage accepts a release after an acquire even when the
// wait failed; the runtime still owns the slot and must get it back.
func (r *Runtime) ReleaseSwapchainImage(sc xr.Swapchain) xr.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.swapchains[sc]
	if !ok {
		return r.recordLocked(Call{Op: OpReleaseSwapchainImage, Result: xr.ErrorHandleInvalid, Swapchain: sc})
	}
	if !rec.acquired {
		return r.recordLocked(Call{Op: OpReleaseSwapchainImage, Result: xr.ErrorCallOrderInvalid, Swapchain: sc})
	}
	rec.acquired = false
	rec.waited = false
	if res, ok := r.faultLocked(OpReleaseSwapchainImage); ok {
		return r.recordLocked(Call{Op: OpReleaseSwapchainImage, Result: res, Swapchain: sc})
	}
	return r.recordLocked(Call{Op: OpReleaseSwapchainImage, Swapchain: sc})
}

func (r *Runtime) WaitFrame(s xr.Session) (xr.FrameState, xr.Result) {
	r.mu.Lock()
	if res, ok := r.faultLocked(OpWaitFrame); ok {
		defer r.mu.Unlock()
		return xr.FrameState{}, r.recordLocked(Call{Op: OpWaitFrame, Result: res})
	}
	rec, ok := r.sessions[s]
	if !ok {
		defer r.mu.Unlock()
		return xr.FrameState{}, r.recordLocked(Call{Op: OpWaitFrame, Result: xr.ErrorHandleInvalid})
	}
	if !rec.running {
		defer r.mu.Unlock()
		return xr.FrameState{}, r.recordLocked(Call{Op: OpWaitFrame, Result: xr.ErrorSessionNotRunning})
	}
	r.displayTime += xr.Time(r.Period)
	rec.waited = true
	state := xr.FrameState{
		PredictedDisplayTime:   r.displayTime,
		PredictedDisplayPeriod: r.Period,
		ShouldRender:           r.ShouldRender,
	}
	res := r.recordLocked(Call{Op: OpWaitFrame})
	pace := r.Pace
	period := time.Duration(r.Period)
	r.mu.Unlock()

	if pace {
		r.sleepUntilNext(period)
	}
	return state, res
}

// sleepUntilNext blocks until one period after the previous wake.
func (r *Runtime) sleepUntilNext(period time.Duration) {
	r.mu.Lock()
	last := r.lastWake
	r.mu.Unlock()

	now := time.Now()
	next := last.Add(period)
	if last.IsZero() || next.Before(now) {
		next = now
	}
	time.Sleep(time.Until(next))

	r.mu.Lock()
	r.lastWake = next
	r.mu.Unlock()
}

func (r *Runtime) BeginFrame(s xr.Session) xr.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpBeginFrame); ok {
		return r.recordLocked(Call{Op: OpBeginFrame, Result: res})
	}
	rec, ok := r.sessions[s]
	if !ok {
		return r.recordLocked(Call{Op: OpBeginFrame, Result: xr.ErrorHandleInvalid})
	}
	if !rec.running {
		return r.recordLocked(Call{Op: OpBeginFrame, Result: xr.ErrorSessionNotRunning})
	}
	if !rec.waited {
		return r.recordLocked(Call{Op: OpBeginFrame, Result: xr.ErrorCallOrderInvalid})
	}
	rec.waited = false
	if rec.inFrame {
		// The previous frame was never ended; the runtime discards it.
		return r.recordLocked(Call{Op: OpBeginFrame, Result: xr.FrameDiscarded})
	}
	rec.inFrame = true
	return r.recordLocked(Call{Op: OpBeginFrame})
}

func (r *Runtime) EndFrame(s xr.Session, info xr.FrameEndInfo) xr.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	views := 0
	for _, l := range info.Layers {
		if l != nil {
			views += len(l.Views)
		}
	}
	call := Call{Op: OpEndFrame, Layers: len(info.Layers), Views: views}

	if res, ok := r.faultLocked(OpEndFrame); ok {
		call.Result = res
		if rec, ok := r.sessions[s]; ok {
			rec.inFrame = false
		}
		return r.recordLocked(call)
	}
	rec, ok := r.sessions[s]
	if !ok {
		call.Result = xr.ErrorHandleInvalid
		return r.recordLocked(call)
	}
	if !rec.inFrame {
		call.Result = xr.ErrorCallOrderInvalid
		return r.recordLocked(call)
	}
	rec.inFrame = false
	if info.DisplayTime <= 0 {
		call.Result = xr.ErrorTimeInvalid
		return r.recordLocked(call)
	}
	for _, l := range info.Layers {
		if l == nil {
			call.Result = xr.ErrorLayerInvalid
			return r.recordLocked(call)
		}
		for _, v := range l.Views {
			sc, ok := r.swapchains[v.SubImage.Swapchain]
			if !ok {
				call.Result = xr.ErrorHandleInvalid
				return r.recordLocked(call)
			}
			if sc.acquired {
				// Images must be released before they are submitted.
				call.Result = xr.ErrorCallOrderInvalid
				return r.recordLocked(call)
			}
		}
	}
	r.endFrames = append(r.endFrames, copyFrameEndInfo(info))
	if r.HistoryLimit > 0 && len(r.endFrames) > r.HistoryLimit {
		r.endFrames = append(r.endFrames[:0], r.endFrames[len(r.endFrames)-r.HistoryLimit:]...)
	}
	return r.recordLocked(call)
}

func (r *Runtime) LocateViews(s xr.Session, info xr.ViewLocateInfo) (xr.ViewState, []xr.View, xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.faultLocked(OpLocateViews); ok {
		return xr.ViewState{}, nil, r.recordLocked(Call{Op: OpLocateViews, Result: res})
	}
	rec, ok := r.sessions[s]
	if !ok {
		return xr.ViewState{}, nil, r.recordLocked(Call{Op: OpLocateViews, Result: xr.ErrorHandleInvalid})
	}
	if !rec.running {
		return xr.ViewState{}, nil, r.recordLocked(Call{Op: OpLocateViews, Result: xr.ErrorSessionNotRunning})
	}
	if _, ok := r.spaces[info.Space]; !ok {
		return xr.ViewState{}, nil, r.recordLocked(Call{Op: OpLocateViews, Result: xr.ErrorHandleInvalid})
	}

	n := r.ViewCount
	if info.ViewConfigurationType == xr.ViewConfigurationPrimaryMono {
		n = 1
	}
	head := headPose(info.DisplayTime)
	const ipd = 0.064
	fov := xr.Fovf{
		AngleLeft:  -float32(math.Pi / 4),
		AngleRight: float32(math.Pi / 4),
		AngleUp:    float32(math.Pi / 4),
		AngleDown:  -float32(math.Pi / 4),
	}
	views := make([]xr.View, n)
	for i := range views {
		eyeX := float32(0)
		if n > 1 {
			eyeX = -ipd/2 + ipd*float32(i)/float32(n-1)
		}
		offset := xr.Posef{Orientation: xr.Quaternionf{W: 1}, Position: xr.Vector3f{X: eyeX}}
		views[i] = xr.View{Pose: compose(head, offset), Fov: fov}
	}
	return xr.ViewState{Flags: r.ViewFlags}, views, r.recordLocked(Call{Op: OpLocateViews, Views: n})
}

func copyFrameEndInfo(info xr.FrameEndInfo) xr.FrameEndInfo {
	out := xr.FrameEndInfo{
		DisplayTime:          info.DisplayTime,
		EnvironmentBlendMode: info.EnvironmentBlendMode,
	}
	for _, l := range info.Layers {
		cp := &xr.CompositionLayerProjection{Space: l.Space, Views: make([]xr.CompositionLayerProjectionView, len(l.Views))}
		copy(cp.Views, l.Views)
		out.Layers = append(out.Layers, cp)
	}
	return out
}
