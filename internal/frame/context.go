package frame

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Iron-Ham/xrloop/internal/pose"
	"github.com/Iron-Ham/xrloop/internal/session"
	"github.com/Iron-Ham/xrloop/internal/xr"
)

// Pass identifies what the renderer is drawing.
type Pass int

const (
	PassNone Pass = iota
	PassOverlay
	PassEye
)

func (p Pass) String() string {
	switch p {
	case PassOverlay:
		return "overlay"
	case PassEye:
		return "eye"
	default:
		return "none"
	}
}

// Context is threaded through one frame from wait to end. It replaces the
// process-wide "current eye / current fov" state a renderer would otherwise
// consult. A Context must not be retained after the render call returns.
type Context struct {
	Frame     uint64
	State     xr.FrameState
	StartTime time.Time
	Pass      Pass
	// Eye is the view index of the eye pass in progress, -1 otherwise.
	Eye int
	// Framebuffer is the bound swapchain target during an eye pass.
	Framebuffer *session.Framebuffer
	Origin      mgl64.Vec3
	Scale       float64
	Focused     bool

	fov       xr.Fovf
	fovActive bool
}

func newContext(frame uint64, start time.Time) *Context {
	return &Context{Frame: frame, StartTime: start, Eye: -1, Scale: 1}
}

// ActiveFov returns the field of view of the eye pass in progress.
func (c *Context) ActiveFov() (xr.Fovf, bool) {
	return c.fov, c.fovActive
}

func (c *Context) beginEye(eye int, fov xr.Fovf, fb *session.Framebuffer) {
	c.Pass = PassEye
	c.Eye = eye
	c.fov = fov
	c.fovActive = true
	c.Framebuffer = fb
}

func (c *Context) endPass() {
	c.Pass = PassNone
	c.Eye = -1
	c.fov = xr.Fovf{}
	c.fovActive = false
	c.Framebuffer = nil
}

// Renderer draws the host's content. RenderOverlay runs once per rendered
// frame before the eye passes; RenderEye runs once per view with the eye's
// game-frame pose. An error aborts the frame.
type Renderer interface {
	RenderOverlay(ctx *Context) error
	RenderEye(ctx *Context, eye int, eyePose pose.Pose, fov xr.Fovf) error
}

// BlankRenderer is implemented by renderers that can clear an eye image
// while the host is not in immersive mode.
type BlankRenderer interface {
	ClearEye(ctx *Context, eye int, fb *session.Framebuffer) error
}

// AnchorSource supplies the position the tracking origin follows: the
// focused entity's position at the last two simulation ticks and how far
// between them this frame falls. ok is false when nothing is focused.
type AnchorSource interface {
	Anchor() (prev, cur mgl64.Vec3, tickDelta float64, ok bool)
}

// ControllerSource supplies each hand's grip and aim spaces. active is false
// for a hand whose controller is not tracked.
type ControllerSource interface {
	HandSpaces(hand int) (grip, aim xr.Space, active bool)
}

// Tracking holds the live-tunable mapping from tracking space into the game.
type Tracking struct {
	Offset mgl64.Vec3
	// Scale is the uniform avatar scale.
	Scale float64
	// YawTurn recenters the physical frame, in radians.
	YawTurn float64
}

// DefaultTracking has no offset, unit scale and no turn.
func DefaultTracking() Tracking {
	return Tracking{Scale: 1}
}
