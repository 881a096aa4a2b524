// Package projection builds the per-eye projection matrix from a runtime
// field of view and decides when it replaces the host's own projection.
package projection

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Iron-Ham/xrloop/internal/xr"
)

// BuildStereoProjection returns the off-center perspective matrix for fov,
// using the tangent convention of the OpenXR reference: right-handed eye
// space looking down -Z, clip depth in [-1, 1], w-row (0, 0, -1, 0).
//
// Requires fov.AngleRight > fov.AngleLeft, fov.AngleUp > fov.AngleDown and
// 0 < near < far.
func BuildStereoProjection(fov xr.Fovf, near, far float32) mgl32.Mat4 {
	tanLeft := float32(math.Tan(float64(fov.AngleLeft)))
	tanRight := float32(math.Tan(float64(fov.AngleRight)))
	tanDown := float32(math.Tan(float64(fov.AngleDown)))
	tanUp := float32(math.Tan(float64(fov.AngleUp)))
	width := tanRight - tanLeft
	height := tanUp - tanDown

	var m mgl32.Mat4
	m.Set(0, 0, 2/width)
	m.Set(1, 1, 2/height)
	m.Set(0, 2, (tanRight+tanLeft)/width)
	m.Set(1, 2, (tanUp+tanDown)/height)
	m.Set(2, 2, -(far+near)/(far-near))
	m.Set(3, 2, -1)
	m.Set(2, 3, -(far*(near+near))/(far-near))
	return m
}

// Default builds the host's own projection when no eye pass is active.
type Default func(fovY, aspect, near, far float32) mgl32.Mat4

// Perspective is the symmetric projection used when the host supplies no
// default of its own.
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	return mgl32.Perspective(fovY, aspect, near, far)
}

// FovSource reports the field of view of the eye pass in progress.
// ok is false outside an eye pass.
type FovSource interface {
	ActiveFov() (fov xr.Fovf, ok bool)
}

// Selector chooses between the stereo projection and the host default.
type Selector struct {
	source   FovSource
	fallback Default
}

// NewSelector returns a Selector. A nil fallback selects Perspective.
func NewSelector(source FovSource, fallback Default) *Selector {
	if fallback == nil {
		fallback = Perspective
	}
	return &Selector{source: source, fallback: fallback}
}

// Projection returns the stereo projection for the active eye, or the
// host's default projection unchanged when no eye pass is active.
func (s *Selector) Projection(fovY, aspect, near, far float32) mgl32.Mat4 {
	if s.source != nil {
		if fov, ok := s.source.ActiveFov(); ok {
			return BuildStereoProjection(fov, near, far)
		}
	}
	return s.fallback(fovY, aspect, near, far)
}
