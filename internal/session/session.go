// Package session brings up a rendering session on a live instance: the
// session handle, its reference spaces and one swapchain per view. It also
// follows the runtime-driven session state machine.
package session

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	xrerrors "github.com/Iron-Ham/xrloop/internal/errors"
	"github.com/Iron-Ham/xrloop/internal/event"
	"github.com/Iron-Ham/xrloop/internal/instance"
	"github.com/Iron-Ham/xrloop/internal/logging"
	"github.com/Iron-Ham/xrloop/internal/xr"
)

// Swapchain image formats, as OpenGL internal format enums.
const (
	FormatSRGB8Alpha8 int64 = 0x8C43
	FormatRGBA8       int64 = 0x8058
)

// Options configures session bring-up.
type Options struct {
	FormFactor        xr.FormFactor
	ViewConfiguration xr.ViewConfigurationType
	PrimarySpace      xr.ReferenceSpaceType
	// Formats lists acceptable swapchain formats, most preferred first.
	Formats     []int64
	SampleCount uint32
	Graphics    xr.GraphicsBinding
}

// DefaultOptions returns stereo HMD options on a stage space with an sRGB
// swapchain.
func DefaultOptions() Options {
	return Options{
		FormFactor:        xr.FormFactorHeadMountedDisplay,
		ViewConfiguration: xr.ViewConfigurationPrimaryStereo,
		PrimarySpace:      xr.ReferenceSpaceStage,
		Formats:           []int64{FormatSRGB8Alpha8, FormatRGBA8},
		SampleCount:       1,
	}
}

// Framebuffer is the render target wrapping one swapchain's images.
// ColorAttachment is the image bound for the eye pass in progress.
type Framebuffer struct {
	Width           int32
	Height          int32
	Images          []xr.SwapchainImage
	ColorAttachment uint32
}

// Bind attaches the image at index as the color target.
func (f *Framebuffer) Bind(index uint32) error {
	if int(index) >= len(f.Images) {
		return fmt.Errorf("swapchain image index %d out of range (%d images)", index, len(f.Images))
	}
	f.ColorAttachment = f.Images[index].Image
	return nil
}

// Unbind clears the color target.
func (f *Framebuffer) Unbind() { f.ColorAttachment = 0 }

// Swapchain is one view's image ring.
type Swapchain struct {
	Handle      xr.Swapchain
	Format      int64
	Framebuffer *Framebuffer
}

// Session is a live rendering session.
type Session struct {
	// ID distinguishes rebuilt sessions in logs and events.
	ID           string
	Handle       xr.Session
	System       xr.SystemID
	PrimarySpace xr.Space
	ViewSpace    xr.Space
	Views        []xr.ViewConfigurationView
	Swapchains   []*Swapchain

	state   xr.SessionState
	running bool
}

// State returns the last state reported by the runtime.
func (s *Session) State() xr.SessionState { return s.state }

// Running reports whether the session has been begun and not yet ended.
func (s *Session) Running() bool { return s.running }

// ViewCount returns the number of swapchains, which equals the number of
// views the session was created with.
func (s *Session) ViewCount() int { return len(s.Swapchains) }

// Manager owns the single Session. Like instance.Manager it belongs to the
// render goroutine.
type Manager struct {
	instances *instance.Manager
	rt        xr.Runtime
	opts      Options
	current   *Session
	logger    *logging.Logger
	bus       *event.Bus
}

// NewManager returns a Manager with no session. bus may be nil.
func NewManager(instances *instance.Manager, opts Options, logger *logging.Logger, bus *event.Bus) *Manager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if len(opts.Formats) == 0 {
		opts.Formats = DefaultOptions().Formats
	}
	if opts.SampleCount == 0 {
		opts.SampleCount = 1
	}
	return &Manager{
		instances: instances,
		rt:        instances.Runtime(),
		opts:      opts,
		logger:    logger,
		bus:       bus,
	}
}

// Current returns the live session or nil.
func (m *Manager) Current() *Session { return m.current }

// Options returns the bring-up options.
func (m *Manager) Options() Options { return m.opts }

// IsRunning reports whether a session exists and has been begun.
func (m *Manager) IsRunning() bool { return m.current != nil && m.current.running }

// IsFocused reports whether the session is FOCUSED, the only state in which
// controller poses are authoritative.
func (m *Manager) IsFocused() bool {
	return m.current != nil && m.current.state == xr.SessionStateFocused
}

// Open runs the full bring-up: Create, CreateReferenceSpaces,
// CreateSwapchains. On any failure everything built so far is released and
// the error is returned.
func (m *Manager) Open(inst *instance.Instance) (*Session, error) {
	if _, err := m.Create(inst, m.opts.FormFactor); err != nil {
		return nil, err
	}
	if err := m.CreateReferenceSpaces(); err != nil {
		m.abort(err)
		return nil, err
	}
	if err := m.CreateSwapchains(); err != nil {
		m.abort(err)
		return nil, err
	}

	s := m.current
	sc := s.Swapchains[0].Framebuffer
	m.logger.WithSession(s.ID).Info("session ready",
		"views", s.ViewCount(),
		"width", sc.Width,
		"height", sc.Height,
		"format", fmt.Sprintf("0x%X", s.Swapchains[0].Format))
	m.bus.Publish(event.NewSessionCreatedEvent(s.ID, s.ViewCount(), int(sc.Width), int(sc.Height)))
	return s, nil
}

func (m *Manager) abort(cause error) {
	if err := m.Close("bring-up failed"); err != nil {
		m.logger.Warn("release after failed bring-up", "error", err, "cause", cause)
	}
}

// Create resolves the system for formFactor and creates the session handle.
func (m *Manager) Create(inst *instance.Instance, formFactor xr.FormFactor) (*Session, error) {
	if inst == nil {
		return nil, xrerrors.ErrNoInstance
	}
	if m.current != nil {
		return nil, xrerrors.NewSessionError("session already exists", nil).
			WithSessionID(m.current.ID).
			WithState(m.current.state.String())
	}

	system, err := m.instances.System(formFactor)
	if err != nil {
		return nil, fmt.Errorf("get system for %s: %w", formFactor, err)
	}

	handle, res := m.rt.CreateSession(inst.Handle, xr.SessionCreateInfo{
		SystemID: system,
		Graphics: m.opts.Graphics,
	})
	if err := m.instances.Check("xrCreateSession", res); err != nil {
		return nil, xrerrors.NewSessionError("create session", err)
	}

	m.current = &Session{
		ID:     uuid.NewString(),
		Handle: handle,
		System: system,
		state:  xr.SessionStateUnknown,
	}
	m.logger.WithSession(m.current.ID).Debug("session created", "system", uint64(system))
	return m.current, nil
}

// CreateReferenceSpaces creates the primary application space and the view
// space used for head tracking.
func (m *Manager) CreateReferenceSpaces() error {
	s := m.current
	if s == nil {
		return xrerrors.ErrNoSession
	}

	primary, res := m.rt.CreateReferenceSpace(s.Handle, xr.ReferenceSpaceCreateInfo{
		Type:                 m.opts.PrimarySpace,
		PoseInReferenceSpace: xr.IdentityPose,
	})
	if err := m.instances.Check("xrCreateReferenceSpace", res); err != nil {
		return xrerrors.NewSessionError(fmt.Sprintf("create %s space", m.opts.PrimarySpace), err).WithSessionID(s.ID)
	}
	s.PrimarySpace = primary

	view, res := m.rt.CreateReferenceSpace(s.Handle, xr.ReferenceSpaceCreateInfo{
		Type:                 xr.ReferenceSpaceView,
		PoseInReferenceSpace: xr.IdentityPose,
	})
	if err := m.instances.Check("xrCreateReferenceSpace", res); err != nil {
		return xrerrors.NewSessionError("create view space", err).WithSessionID(s.ID)
	}
	s.ViewSpace = view
	return nil
}

// CreateSwapchains creates one swapchain per view at the runtime's
// recommended size and wraps each in a Framebuffer.
func (m *Manager) CreateSwapchains() error {
	s := m.current
	if s == nil {
		return xrerrors.ErrNoSession
	}
	inst := m.instances.Current()
	if inst == nil {
		return xrerrors.ErrNoInstance
	}

	views, res := m.rt.EnumerateViewConfigurationViews(inst.Handle, s.System, m.opts.ViewConfiguration)
	if err := m.instances.Check("xrEnumerateViewConfigurationViews", res); err != nil {
		return xrerrors.NewSessionError("enumerate views", err).WithSessionID(s.ID)
	}
	if len(views) == 0 {
		return xrerrors.NewSetupError("runtime reported no views", xrerrors.ErrViewCountMismatch).WithComponent("session")
	}
	s.Views = views

	format, err := m.selectFormat(s)
	if err != nil {
		return err
	}

	for i, v := range views {
		samples := min(max(m.opts.SampleCount, 1), max(v.MaxSwapchainSampleCount, 1))
		info := xr.SwapchainCreateInfo{
			UsageFlags:  xr.SwapchainUsageColorAttachment | xr.SwapchainUsageSampled,
			Format:      format,
			SampleCount: samples,
			Width:       v.RecommendedImageRectWidth,
			Height:      v.RecommendedImageRectHeight,
			FaceCount:   1,
			ArraySize:   1,
			MipCount:    1,
		}
		handle, res := m.rt.CreateSwapchain(s.Handle, info)
		if err := m.instances.Check("xrCreateSwapchain", res); err != nil {
			return xrerrors.NewSessionError(fmt.Sprintf("create swapchain for view %d", i), err).WithSessionID(s.ID)
		}
		sc := &Swapchain{Handle: handle, Format: format}
		// Track the handle before enumerating so Close releases it on failure.
		s.Swapchains = append(s.Swapchains, sc)

		images, res := m.rt.EnumerateSwapchainImages(handle)
		if err := m.instances.Check("xrEnumerateSwapchainImages", res); err != nil {
			return xrerrors.NewSessionError(fmt.Sprintf("enumerate images for view %d", i), err).WithSessionID(s.ID)
		}
		sc.Framebuffer = &Framebuffer{
			Width:  int32(v.RecommendedImageRectWidth),
			Height: int32(v.RecommendedImageRectHeight),
			Images: images,
		}
	}
	return nil
}

// selectFormat picks the first configured format the runtime supports.
func (m *Manager) selectFormat(s *Session) (int64, error) {
	supported, res := m.rt.EnumerateSwapchainFormats(s.Handle)
	if err := m.instances.Check("xrEnumerateSwapchainFormats", res); err != nil {
		return 0, xrerrors.NewSessionError("enumerate swapchain formats", err).WithSessionID(s.ID)
	}
	for _, f := range m.opts.Formats {
		if slices.Contains(supported, f) {
			return f, nil
		}
	}
	return 0, xrerrors.NewSetupError(
		fmt.Sprintf("runtime supports none of the configured swapchain formats (%d offered)", len(supported)),
		xrerrors.ErrMissingCapability,
	).WithComponent("session")
}

// Close destroys the swapchains, spaces and session handle. It is a no-op
// without a session. Every handle is released even if an earlier release
// fails; the failures are joined.
func (m *Manager) Close(reason string) error {
	s := m.current
	if s == nil {
		return nil
	}
	m.current = nil

	var errs []error
	for _, sc := range s.Swapchains {
		if res := m.rt.DestroySwapchain(sc.Handle); res.Failed() {
			errs = append(errs, res.Err("xrDestroySwapchain"))
		}
	}
	for _, sp := range []xr.Space{s.ViewSpace, s.PrimarySpace} {
		if sp == xr.NullHandle {
			continue
		}
		if res := m.rt.DestroySpace(sp); res.Failed() {
			errs = append(errs, res.Err("xrDestroySpace"))
		}
	}
	if res := m.rt.DestroySession(s.Handle); res.Failed() {
		errs = append(errs, res.Err("xrDestroySession"))
	}

	m.logger.WithSession(s.ID).Info("session destroyed", "reason", reason, "state", s.state.String())
	m.bus.Publish(event.NewSessionDestroyedEvent(s.ID, reason))
	return xrerrors.Join(errs...)
}

// RequestExit asks the runtime to wind the session down. The session ends
// when the resulting STOPPING event is handled.
func (m *Manager) RequestExit() error {
	s := m.current
	if s == nil {
		return xrerrors.ErrNoSession
	}
	if !s.running {
		return xrerrors.ErrSessionNotRunning
	}
	return m.instances.Check("xrRequestExitSession", m.rt.RequestExitSession(s.Handle))
}
