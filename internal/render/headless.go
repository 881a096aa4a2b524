// Package render holds renderers that need no graphics context. Headless
// walks the full frame protocol, building each eye's projection, so the
// driver can be exercised end to end against a simulated or real runtime.
package render

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Iron-Ham/xrloop/internal/frame"
	"github.com/Iron-Ham/xrloop/internal/logging"
	"github.com/Iron-Ham/xrloop/internal/pose"
	"github.com/Iron-Ham/xrloop/internal/projection"
	"github.com/Iron-Ham/xrloop/internal/session"
	"github.com/Iron-Ham/xrloop/internal/xr"
)

// defaultFovY is the host's own vertical field of view, used when no eye
// pass is active.
const defaultFovY = 70 * math.Pi / 180

// Stats counts passes.
type Stats struct {
	Overlays uint64
	Eyes     uint64
	Clears   uint64
	// LastEye is the last eye's game-frame pose.
	LastEye pose.Pose
	// LastProjection is the last eye's projection matrix.
	LastProjection mgl32.Mat4
}

// Headless implements frame.Renderer and frame.BlankRenderer.
type Headless struct {
	near, far float32
	logger    *logging.Logger

	mu    sync.Mutex
	stats Stats
}

// NewHeadless returns a renderer using the given clip planes.
func NewHeadless(near, far float64, logger *logging.Logger) *Headless {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Headless{near: float32(near), far: float32(far), logger: logger.WithPhase("render")}
}

// RenderOverlay counts the GUI pass.
func (h *Headless) RenderOverlay(ctx *frame.Context) error {
	h.mu.Lock()
	h.stats.Overlays++
	h.mu.Unlock()
	return nil
}

// RenderEye builds the eye's projection the way a rasterizer would.
func (h *Headless) RenderEye(ctx *frame.Context, eye int, eyePose pose.Pose, fov xr.Fovf) error {
	proj := projection.NewSelector(ctx, nil).Projection(defaultFovY, aspect(ctx.Framebuffer), h.near, h.far)

	h.mu.Lock()
	h.stats.Eyes++
	h.stats.LastEye = eyePose
	h.stats.LastProjection = proj
	h.mu.Unlock()

	if h.logger.Enabled(logging.LevelDebug) && ctx.Frame%90 == 0 {
		h.logger.Debug("eye rendered",
			"frame", ctx.Frame,
			"eye", eye,
			"image", ctx.Framebuffer.ColorAttachment,
			"position", vecAttr(eyePose.Position))
	}
	return nil
}

// ClearEye counts a cleared image.
func (h *Headless) ClearEye(ctx *frame.Context, eye int, fb *session.Framebuffer) error {
	h.mu.Lock()
	h.stats.Clears++
	h.mu.Unlock()
	return nil
}

// Stats returns a snapshot of the counters.
func (h *Headless) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func aspect(fb *session.Framebuffer) float32 {
	if fb == nil || fb.Height == 0 {
		return 1
	}
	return float32(fb.Width) / float32(fb.Height)
}

func vecAttr(v mgl64.Vec3) []float64 {
	return []float64{v[0], v[1], v[2]}
}
