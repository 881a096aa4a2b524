package pose

import (
	"math"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"

	"github.com/Iron-Ham/xrloop/internal/xr"
)

const eps = 1e-5

func assertVec(t *testing.T, want, got mgl64.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, eps), "want %v, got %v", want, got)
}

func TestFromXR_RoundTrip(t *testing.T) {
	in := xr.Posef{
		Orientation: xr.Quaternionf{X: 0, Y: 0.38268343, Z: 0, W: 0.9238795},
		Position:    xr.Vector3f{X: 1, Y: 1.7, Z: -2},
	}
	assert.Equal(t, in, FromXR(in).XR())
}

func TestUpdatePhysical_NoTurn(t *testing.T) {
	tp := NewTrackedPose()
	assert.False(t, tp.Valid())

	tp.UpdatePhysical(xr.Posef{Orientation: xr.Quaternionf{W: 1}, Position: xr.Vector3f{X: 0.1, Y: 1.6, Z: -0.3}}, 0)
	assert.True(t, tp.Valid())
	assertVec(t, mgl64.Vec3{0.1, 1.6, -0.3}, tp.Physical().Position)
}

func TestUpdatePhysical_YawTurn(t *testing.T) {
	tp := NewTrackedPose()
	// A quarter turn left maps -Z (forward) onto -X.
	tp.UpdatePhysical(xr.Posef{Orientation: xr.Quaternionf{W: 1}, Position: xr.Vector3f{Z: -1}}, math.Pi/2)

	assertVec(t, mgl64.Vec3{-1, 0, 0}, tp.Physical().Position)
	assertVec(t, mgl64.Vec3{-1, 0, 0}, tp.Physical().Forward())
}

func TestUpdateGame(t *testing.T) {
	tp := NewTrackedPose()
	tp.UpdatePhysical(xr.Posef{Orientation: xr.Quaternionf{W: 1}, Position: xr.Vector3f{X: 1, Y: 2, Z: 3}}, 0)
	tp.UpdateGame(mgl64.Vec3{10, 64, -5}, 0.5)

	assertVec(t, mgl64.Vec3{10.5, 65, -3.5}, tp.Game().Position)
	assert.Equal(t, tp.Physical().Orientation, tp.Game().Orientation)
}

func TestLerp(t *testing.T) {
	a := mgl64.Vec3{0, 64, 0}
	b := mgl64.Vec3{2, 66, -4}

	assertVec(t, a, Lerp(a, b, 0))
	assertVec(t, b, Lerp(a, b, 1))
	assertVec(t, mgl64.Vec3{0.5, 64.5, -1}, Lerp(a, b, 0.25))
}

func TestRig_ReturnsCopies(t *testing.T) {
	r := NewRig()
	r.UpdateGrip(RightHand, xr.Posef{Orientation: xr.Quaternionf{W: 1}, Position: xr.Vector3f{X: 0.3}}, 0)

	grip := r.Grip(RightHand)
	grip.UpdatePhysical(xr.Posef{Orientation: xr.Quaternionf{W: 1}}, 0)

	assertVec(t, mgl64.Vec3{0.3, 0, 0}, r.Grip(RightHand).Physical().Position)
	assert.False(t, r.Grip(LeftHand).Valid())
	assert.False(t, r.Aim(RightHand).Valid())
}

func TestRig_UpdateGame(t *testing.T) {
	r := NewRig()
	r.UpdateHead(xr.Posef{Orientation: xr.Quaternionf{W: 1}, Position: xr.Vector3f{Y: 1.7}}, 0)
	r.UpdateAim(LeftHand, xr.Posef{Orientation: xr.Quaternionf{W: 1}, Position: xr.Vector3f{X: -0.2, Y: 1.2}}, 0)

	r.UpdateGame(mgl64.Vec3{100, 0, 100}, 2)

	assertVec(t, mgl64.Vec3{100, 3.4, 100}, r.Head().Game().Position)
	assertVec(t, mgl64.Vec3{99.6, 2.4, 100}, r.Aim(LeftHand).Game().Position)
	// Unlocated points sit at the origin.
	assertVec(t, mgl64.Vec3{100, 0, 100}, r.Grip(LeftHand).Game().Position)
}

func TestRig_UpdateEye(t *testing.T) {
	r := NewRig()
	game := r.UpdateEye(xr.Posef{Orientation: xr.Quaternionf{W: 1}, Position: xr.Vector3f{X: 0.032, Y: 1.7}}, 0, mgl64.Vec3{1, 1, 1}, 1)

	assertVec(t, mgl64.Vec3{1.032, 2.7, 1}, game.Position)
	assert.Equal(t, game, r.Eye().Game())
}

func TestRig_ConcurrentReaders(t *testing.T) {
	r := NewRig()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.Head().Game()
				_ = r.Grip(j % 2).Physical()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		r.UpdateHead(xr.Posef{Orientation: xr.Quaternionf{W: 1}, Position: xr.Vector3f{Y: float32(j)}}, 0)
		r.UpdateGame(mgl64.Vec3{}, 1)
	}
	wg.Wait()
}
