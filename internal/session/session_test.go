package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xrerrors "github.com/Iron-Ham/xrloop/internal/errors"
	"github.com/Iron-Ham/xrloop/internal/event"
	"github.com/Iron-Ham/xrloop/internal/extension"
	"github.com/Iron-Ham/xrloop/internal/instance"
	"github.com/Iron-Ham/xrloop/internal/xr"
	"github.com/Iron-Ham/xrloop/internal/xr/sim"
)

type fixture struct {
	rt   *sim.Runtime
	bus  *event.Bus
	im   *instance.Manager
	sm   *Manager
	inst *instance.Instance
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	rt := sim.New()
	bus := event.NewBus()
	im := instance.NewManager(rt, instance.Options{ApplicationName: "test"}, nil, bus)
	inst, err := im.Create(extension.NewSet(xr.KHROpenGLEnable))
	require.NoError(t, err)
	return &fixture{rt: rt, bus: bus, im: im, sm: NewManager(im, opts, nil, bus), inst: inst}
}

// drain feeds every queued state event to the manager and reports whether
// any of them asked for teardown.
func (f *fixture) drain(t *testing.T) bool {
	t.Helper()
	teardown := false
	for {
		ev, ok, err := f.im.NextEvent()
		require.NoError(t, err)
		if !ok {
			return teardown
		}
		if sc, isState := ev.(xr.EventSessionStateChanged); isState {
			td, err := f.sm.HandleStateChanged(sc)
			require.NoError(t, err)
			teardown = teardown || td
		}
	}
}

func TestOpen(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	var created []event.SessionCreatedEvent
	f.bus.Subscribe(event.TypeSessionCreated, func(e event.Event) {
		created = append(created, e.(event.SessionCreatedEvent))
	})

	s, err := f.sm.Open(f.inst)
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.NotZero(t, s.PrimarySpace)
	assert.NotZero(t, s.ViewSpace)
	assert.NotEqual(t, s.PrimarySpace, s.ViewSpace)
	require.Equal(t, 2, s.ViewCount())
	for _, sc := range s.Swapchains {
		assert.Equal(t, FormatSRGB8Alpha8, sc.Format)
		assert.Equal(t, int32(1440), sc.Framebuffer.Width)
		assert.Equal(t, int32(1600), sc.Framebuffer.Height)
		assert.Len(t, sc.Framebuffer.Images, 3)
	}
	assert.False(t, f.sm.IsRunning(), "not running until READY is handled")

	require.Len(t, created, 1)
	assert.Equal(t, s.ID, created[0].SessionID)
	assert.Equal(t, 2, created[0].Views)
}

func TestOpen_FormatPreference(t *testing.T) {
	opts := DefaultOptions()
	opts.Formats = []int64{FormatRGBA8, FormatSRGB8Alpha8}
	f := newFixture(t, opts)

	s, err := f.sm.Open(f.inst)
	require.NoError(t, err)
	assert.Equal(t, FormatRGBA8, s.Swapchains[0].Format)
}

func TestOpen_NoSupportedFormat(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.rt.Formats = []int64{0x881A}

	_, err := f.sm.Open(f.inst)
	require.Error(t, err)
	assert.ErrorIs(t, err, xrerrors.ErrMissingCapability)
	assert.Equal(t, xrerrors.ClassUnrecoverableSetup, xrerrors.Classify(err))
	assert.Nil(t, f.sm.Current())
	assert.Zero(t, f.rt.LiveSessions())
}

func TestOpen_ReleasesOnPartialFailure(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	var destroyed []string
	f.bus.Subscribe(event.TypeSessionDestroyed, func(e event.Event) {
		destroyed = append(destroyed, e.(event.SessionDestroyedEvent).Reason)
	})
	f.rt.FailNext(sim.OpEnumerateImages, xr.ErrorOutOfMemory)

	_, err := f.sm.Open(f.inst)
	require.Error(t, err)
	assert.Equal(t, xrerrors.ClassFrameFatal, xrerrors.Classify(err))
	assert.Nil(t, f.sm.Current())
	assert.Zero(t, f.rt.LiveSessions())
	assert.Equal(t, 1, f.rt.CountCalls(sim.OpDestroySwapchain), "the created swapchain is released")
	assert.Equal(t, 2, f.rt.CountCalls(sim.OpDestroySpace))
	assert.Equal(t, []string{"bring-up failed"}, destroyed)
}

func TestOpen_SessionLostIsRetryable(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.rt.FailNext(sim.OpCreateReferenceSpace, xr.ErrorSessionLost)

	_, err := f.sm.Open(f.inst)
	require.Error(t, err)
	assert.ErrorIs(t, err, xrerrors.ErrSessionLost)
	assert.Equal(t, xrerrors.ClassRecoverableRuntime, xrerrors.Classify(err))
	assert.Zero(t, f.rt.LiveSessions())
}

func TestCreate_RequiresInstance(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	_, err := f.sm.Create(nil, xr.FormFactorHeadMountedDisplay)
	assert.ErrorIs(t, err, xrerrors.ErrNoInstance)
}

func TestCreate_UnsupportedFormFactor(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	_, err := f.sm.Create(f.inst, xr.FormFactorHandheldDisplay)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handheld_display")
	assert.Nil(t, f.sm.Current())
}

func TestClose_Idempotent(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	assert.NoError(t, f.sm.Close("nothing"))

	_, err := f.sm.Open(f.inst)
	require.NoError(t, err)
	require.NoError(t, f.sm.Close("shutdown"))
	require.NoError(t, f.sm.Close("shutdown"))

	assert.Zero(t, f.rt.LiveSessions())
	assert.Equal(t, 2, f.rt.CountCalls(sim.OpDestroySwapchain))
	assert.Equal(t, 1, f.rt.CountCalls(sim.OpDestroySession))
}

func TestStateMachine_Lifecycle(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	var changes []event.SessionStateChangedEvent
	f.bus.Subscribe(event.TypeSessionStateChanged, func(e event.Event) {
		changes = append(changes, e.(event.SessionStateChangedEvent))
	})

	_, err := f.sm.Open(f.inst)
	require.NoError(t, err)

	// IDLE, READY -> begin, which queues SYNCHRONIZED, VISIBLE, FOCUSED.
	assert.False(t, f.drain(t))
	assert.True(t, f.sm.IsRunning())
	assert.True(t, f.sm.IsFocused())
	assert.Equal(t, 1, f.rt.CountCalls(sim.OpBeginSession))

	// VISIBLE, SYNCHRONIZED, STOPPING -> end, which queues IDLE, EXITING.
	require.NoError(t, f.sm.RequestExit())
	assert.True(t, f.drain(t), "EXITING requests teardown")
	assert.False(t, f.sm.IsRunning())
	assert.False(t, f.sm.IsFocused())
	assert.Equal(t, 1, f.rt.CountCalls(sim.OpEndSession))
	assert.Equal(t, xr.SessionStateExiting, f.sm.Current().State())

	for _, c := range changes {
		assert.True(t, c.Expected, "%s -> %s should be expected", c.Previous, c.Current)
	}
	assert.Len(t, changes, 10)
}

func TestStateMachine_UnexpectedTransitionAccepted(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.rt.AutoStart = false
	var changes []event.SessionStateChangedEvent
	f.bus.Subscribe(event.TypeSessionStateChanged, func(e event.Event) {
		changes = append(changes, e.(event.SessionStateChangedEvent))
	})
	s, err := f.sm.Open(f.inst)
	require.NoError(t, err)

	teardown, err := f.sm.HandleStateChanged(xr.EventSessionStateChanged{Session: s.Handle, State: xr.SessionStateFocused})
	require.NoError(t, err)
	assert.False(t, teardown)
	assert.True(t, f.sm.IsFocused(), "runtime is authoritative")
	require.Len(t, changes, 1)
	assert.False(t, changes[0].Expected)
}

func TestStateMachine_LossPending(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	s, err := f.sm.Open(f.inst)
	require.NoError(t, err)

	teardown, err := f.sm.HandleStateChanged(xr.EventSessionStateChanged{Session: s.Handle, State: xr.SessionStateLossPending})
	require.NoError(t, err)
	assert.True(t, teardown)
}

func TestStateMachine_ForeignSessionIgnored(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	s, err := f.sm.Open(f.inst)
	require.NoError(t, err)

	teardown, err := f.sm.HandleStateChanged(xr.EventSessionStateChanged{Session: s.Handle + 100, State: xr.SessionStateExiting})
	require.NoError(t, err)
	assert.False(t, teardown)
	assert.Equal(t, xr.SessionStateUnknown, s.State())
}

func TestStateMachine_BeginFailure(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.rt.FailNext(sim.OpBeginSession, xr.ErrorSessionLost)
	s, err := f.sm.Open(f.inst)
	require.NoError(t, err)

	_, err = f.sm.HandleStateChanged(xr.EventSessionStateChanged{Session: s.Handle, State: xr.SessionStateReady})
	require.Error(t, err)
	assert.False(t, f.sm.IsRunning())
	assert.True(t, xrerrors.IsRetryable(err))

	var sessErr *xrerrors.SessionError
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, s.ID, sessErr.SessionID)
	assert.Equal(t, "ready", sessErr.State)
}

func TestRequestExit_NotRunning(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	assert.ErrorIs(t, f.sm.RequestExit(), xrerrors.ErrNoSession)

	_, err := f.sm.Open(f.inst)
	require.NoError(t, err)
	assert.ErrorIs(t, f.sm.RequestExit(), xrerrors.ErrSessionNotRunning)
}

func TestExpectedTransition(t *testing.T) {
	tests := []struct {
		from, to xr.SessionState
		want     bool
	}{
		{xr.SessionStateUnknown, xr.SessionStateIdle, true},
		{xr.SessionStateIdle, xr.SessionStateReady, true},
		{xr.SessionStateReady, xr.SessionStateSynchronized, true},
		{xr.SessionStateSynchronized, xr.SessionStateVisible, true},
		{xr.SessionStateVisible, xr.SessionStateFocused, true},
		{xr.SessionStateFocused, xr.SessionStateVisible, true},
		{xr.SessionStateVisible, xr.SessionStateSynchronized, true},
		{xr.SessionStateSynchronized, xr.SessionStateStopping, true},
		{xr.SessionStateStopping, xr.SessionStateIdle, true},
		{xr.SessionStateIdle, xr.SessionStateExiting, true},
		{xr.SessionStateFocused, xr.SessionStateLossPending, true},
		{xr.SessionStateIdle, xr.SessionStateFocused, false},
		{xr.SessionStateFocused, xr.SessionStateStopping, false},
		{xr.SessionStateExiting, xr.SessionStateIdle, false},
	}
	for _, tt := range tests {
		got := ExpectedTransition(tt.from, tt.to)
		assert.Equal(t, tt.want, got, "%s -> %s", tt.from, tt.to)
	}
}

func TestFramebuffer_Bind(t *testing.T) {
	fb := &Framebuffer{Images: []xr.SwapchainImage{{Image: 11}, {Image: 12}}}
	require.NoError(t, fb.Bind(1))
	assert.Equal(t, uint32(12), fb.ColorAttachment)
	assert.Error(t, fb.Bind(2))
	assert.Equal(t, uint32(12), fb.ColorAttachment)
	fb.Unbind()
	assert.Zero(t, fb.ColorAttachment)
}
