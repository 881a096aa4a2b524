package xr

import (
	"fmt"
	"math"
)

// Handles are opaque runtime-owned identifiers. The zero value is the null handle.
type (
	Instance  uint64
	Session   uint64
	Space     uint64
	Swapchain uint64
	SystemID  uint64
)

// NullHandle is the shared zero value of every handle type.
const NullHandle = 0

// Time is a runtime timestamp in nanoseconds on the runtime's monotonic clock.
type Time int64

// Duration is a runtime duration in nanoseconds.
type Duration int64

// InfiniteDuration waits without bound.
const InfiniteDuration Duration = math.MaxInt64

// Version packs major.minor.patch the way the runtime expects it.
type Version uint64

// MakeVersion builds a Version from its parts.
func MakeVersion(major, minor, patch uint32) Version {
	return Version(uint64(major)<<48 | uint64(minor&0xffff)<<32 | uint64(patch))
}

// Major returns the major component.
func (v Version) Major() uint32 { return uint32(v >> 48) }

// Minor returns the minor component.
func (v Version) Minor() uint32 { return uint32((v >> 32) & 0xffff) }

// Patch returns the patch component.
func (v Version) Patch() uint32 { return uint32(v & 0xffffffff) }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

// CurrentAPIVersion is the API version requested at instance creation.
var CurrentAPIVersion = MakeVersion(1, 0, 34)

// KHROpenGLEnable is the OpenGL interop extension the renderer depends on.
const KHROpenGLEnable = "XR_KHR_opengl_enable"

// FormFactor selects the kind of device a system is requested for.
type FormFactor int32

const (
	FormFactorHeadMountedDisplay FormFactor = 1
	FormFactorHandheldDisplay    FormFactor = 2
)

func (f FormFactor) String() string {
	switch f {
	case FormFactorHeadMountedDisplay:
		return "head_mounted_display"
	case FormFactorHandheldDisplay:
		return "handheld_display"
	default:
		return fmt.Sprintf("form_factor(%d)", int32(f))
	}
}

// ViewConfigurationType selects mono or stereo rendering.
type ViewConfigurationType int32

const (
	ViewConfigurationPrimaryMono   ViewConfigurationType = 1
	ViewConfigurationPrimaryStereo ViewConfigurationType = 2
)

// ReferenceSpaceType names a well-known tracking frame.
type ReferenceSpaceType int32

const (
	ReferenceSpaceView  ReferenceSpaceType = 1
	ReferenceSpaceLocal ReferenceSpaceType = 2
	ReferenceSpaceStage ReferenceSpaceType = 3
)

func (r ReferenceSpaceType) String() string {
	switch r {
	case ReferenceSpaceView:
		return "view"
	case ReferenceSpaceLocal:
		return "local"
	case ReferenceSpaceStage:
		return "stage"
	default:
		return fmt.Sprintf("reference_space(%d)", int32(r))
	}
}

// EnvironmentBlendMode controls how the compositor blends with the real world.
type EnvironmentBlendMode int32

const (
	EnvironmentBlendModeOpaque     EnvironmentBlendMode = 1
	EnvironmentBlendModeAdditive   EnvironmentBlendMode = 2
	EnvironmentBlendModeAlphaBlend EnvironmentBlendMode = 3
)

// SessionState is the runtime-driven lifecycle state of a session.
type SessionState int32

const (
	SessionStateUnknown      SessionState = 0
	SessionStateIdle         SessionState = 1
	SessionStateReady        SessionState = 2
	SessionStateSynchronized SessionState = 3
	SessionStateVisible      SessionState = 4
	SessionStateFocused      SessionState = 5
	SessionStateStopping     SessionState = 6
	SessionStateLossPending  SessionState = 7
	SessionStateExiting      SessionState = 8
)

func (s SessionState) String() string {
	switch s {
	case SessionStateIdle:
		return "idle"
	case SessionStateReady:
		return "ready"
	case SessionStateSynchronized:
		return "synchronized"
	case SessionStateVisible:
		return "visible"
	case SessionStateFocused:
		return "focused"
	case SessionStateStopping:
		return "stopping"
	case SessionStateLossPending:
		return "loss_pending"
	case SessionStateExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// Vector3f is a position or direction in meters.
type Vector3f struct {
	X, Y, Z float32
}

// Quaternionf is a unit rotation.
type Quaternionf struct {
	X, Y, Z, W float32
}

// Posef is a rigid transform: orientation followed by position.
type Posef struct {
	Orientation Quaternionf
	Position    Vector3f
}

// IdentityPose has no rotation and sits at the origin.
var IdentityPose = Posef{Orientation: Quaternionf{W: 1}}

// Fovf holds the four edge angles of a view frustum in radians.
// Left and Down are normally negative.
type Fovf struct {
	AngleLeft  float32
	AngleRight float32
	AngleUp    float32
	AngleDown  float32
}

// View is one eye's located pose and field of view.
type View struct {
	Pose Posef
	Fov  Fovf
}

// ViewStateFlags carries the validity bits of a LocateViews call.
type ViewStateFlags uint64

const (
	ViewStateOrientationValid   ViewStateFlags = 0x1
	ViewStatePositionValid      ViewStateFlags = 0x2
	ViewStateOrientationTracked ViewStateFlags = 0x4
	ViewStatePositionTracked    ViewStateFlags = 0x8
)

// ViewState is the frame-wide validity of a LocateViews call.
type ViewState struct {
	Flags ViewStateFlags
}

// Valid reports whether both position and orientation are valid.
func (v ViewState) Valid() bool {
	return v.Flags&ViewStatePositionValid != 0 && v.Flags&ViewStateOrientationValid != 0
}

// SpaceLocationFlags carries the validity bits of a LocateSpace call.
type SpaceLocationFlags uint64

const (
	SpaceLocationOrientationValid   SpaceLocationFlags = 0x1
	SpaceLocationPositionValid      SpaceLocationFlags = 0x2
	SpaceLocationOrientationTracked SpaceLocationFlags = 0x4
	SpaceLocationPositionTracked    SpaceLocationFlags = 0x8
)

// SpaceLocation is the result of locating one space in another.
type SpaceLocation struct {
	Flags SpaceLocationFlags
	Pose  Posef
}

// Valid reports whether both position and orientation are valid.
func (l SpaceLocation) Valid() bool {
	return l.Flags&SpaceLocationPositionValid != 0 && l.Flags&SpaceLocationOrientationValid != 0
}

// FrameState is produced by WaitFrame and lives for one frame.
type FrameState struct {
	PredictedDisplayTime   Time
	PredictedDisplayPeriod Duration
	ShouldRender           bool
}

// ExtensionProperties describes one runtime-advertised extension.
type ExtensionProperties struct {
	Name    string
	Version uint32
}

// ApplicationInfo identifies the application to the runtime.
type ApplicationInfo struct {
	ApplicationName    string
	ApplicationVersion uint32
	EngineName         string
	EngineVersion      uint32
	APIVersion         Version
}

// InstanceCreateInfo is the instance creation descriptor.
type InstanceCreateInfo struct {
	Application           ApplicationInfo
	EnabledAPILayerNames  []string
	EnabledExtensionNames []string
}

// GraphicsBinding ties a session to the host's OpenGL context.
type GraphicsBinding struct {
	Display  uintptr
	Drawable uintptr
	Context  uintptr
}

// SessionCreateInfo is the session creation descriptor.
type SessionCreateInfo struct {
	SystemID SystemID
	Graphics GraphicsBinding
}

// ReferenceSpaceCreateInfo requests a reference space.
type ReferenceSpaceCreateInfo struct {
	Type                 ReferenceSpaceType
	PoseInReferenceSpace Posef
}

// ViewConfigurationView is the runtime's recommendation for one view.
type ViewConfigurationView struct {
	RecommendedImageRectWidth       uint32
	MaxImageRectWidth               uint32
	RecommendedImageRectHeight      uint32
	MaxImageRectHeight              uint32
	RecommendedSwapchainSampleCount uint32
	MaxSwapchainSampleCount         uint32
}

// SwapchainUsageFlags describes how swapchain images are used.
type SwapchainUsageFlags uint64

const (
	SwapchainUsageColorAttachment SwapchainUsageFlags = 0x1
	SwapchainUsageSampled         SwapchainUsageFlags = 0x20
)

// SwapchainCreateInfo is the swapchain creation descriptor.
type SwapchainCreateInfo struct {
	UsageFlags  SwapchainUsageFlags
	Format      int64
	SampleCount uint32
	Width       uint32
	Height      uint32
	FaceCount   uint32
	ArraySize   uint32
	MipCount    uint32
}

// SwapchainImage is one OpenGL texture backing a swapchain slot.
type SwapchainImage struct {
	Image uint32
}

// Offset2Di is an integer 2D offset.
type Offset2Di struct {
	X, Y int32
}

// Extent2Di is an integer 2D size.
type Extent2Di struct {
	Width, Height int32
}

// Rect2Di is an integer rectangle.
type Rect2Di struct {
	Offset Offset2Di
	Extent Extent2Di
}

// SwapchainSubImage references a region of a swapchain image.
type SwapchainSubImage struct {
	Swapchain       Swapchain
	ImageRect       Rect2Di
	ImageArrayIndex uint32
}

// CompositionLayerProjectionView is one eye of a projection layer.
type CompositionLayerProjectionView struct {
	Pose     Posef
	Fov      Fovf
	SubImage SwapchainSubImage
}

// CompositionLayerProjection is a stereo projection layer.
type CompositionLayerProjection struct {
	Space Space
	Views []CompositionLayerProjectionView
}

// FrameEndInfo is handed to EndFrame.
type FrameEndInfo struct {
	DisplayTime          Time
	EnvironmentBlendMode EnvironmentBlendMode
	Layers               []*CompositionLayerProjection
}

// ViewLocateInfo parameterizes LocateViews.
type ViewLocateInfo struct {
	ViewConfigurationType ViewConfigurationType
	DisplayTime           Time
	Space                 Space
}
