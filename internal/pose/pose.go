// Package pose holds tracked poses in two frames: the physical frame reported
// by the runtime (with yaw recentering applied) and the game frame the host
// renders in (origin translation and avatar scale applied).
package pose

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Iron-Ham/xrloop/internal/xr"
)

// Pose is a position and orientation in meters.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// Identity returns a pose at the origin with no rotation.
func Identity() Pose {
	return Pose{Orientation: mgl64.QuatIdent()}
}

// FromXR converts a runtime pose.
func FromXR(p xr.Posef) Pose {
	return Pose{
		Position: mgl64.Vec3{float64(p.Position.X), float64(p.Position.Y), float64(p.Position.Z)},
		Orientation: mgl64.Quat{
			W: float64(p.Orientation.W),
			V: mgl64.Vec3{float64(p.Orientation.X), float64(p.Orientation.Y), float64(p.Orientation.Z)},
		},
	}
}

// XR converts back to the runtime representation.
func (p Pose) XR() xr.Posef {
	return xr.Posef{
		Orientation: xr.Quaternionf{
			X: float32(p.Orientation.V[0]),
			Y: float32(p.Orientation.V[1]),
			Z: float32(p.Orientation.V[2]),
			W: float32(p.Orientation.W),
		},
		Position: xr.Vector3f{
			X: float32(p.Position[0]),
			Y: float32(p.Position[1]),
			Z: float32(p.Position[2]),
		},
	}
}

// Forward returns the -Z axis rotated by the orientation.
func (p Pose) Forward() mgl64.Vec3 {
	return p.Orientation.Rotate(mgl64.Vec3{0, 0, -1})
}

// Lerp interpolates between a and b. t=0 yields a, t=1 yields b.
func Lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// TrackedPose is one tracked point. The zero value holds identity poses and
// is not yet valid.
type TrackedPose struct {
	physical Pose
	game     Pose
	valid    bool
}

// NewTrackedPose returns a point with identity poses.
func NewTrackedPose() TrackedPose {
	return TrackedPose{physical: Identity(), game: Identity()}
}

// UpdatePhysical stores a freshly located pose rotated by yawTurn radians
// about the vertical axis. Callers only pass poses whose position and
// orientation were both reported valid; otherwise they skip the call and
// the previous pose is held.
func (t *TrackedPose) UpdatePhysical(p xr.Posef, yawTurn float64) {
	raw := FromXR(p)
	turn := mgl64.QuatRotate(yawTurn, mgl64.Vec3{0, 1, 0})
	t.physical = Pose{
		Position:    turn.Rotate(raw.Position),
		Orientation: turn.Mul(raw.Orientation).Normalize(),
	}
	t.valid = true
}

// UpdateGame maps the physical pose into the game frame: scaled about the
// tracking origin, then translated to origin.
func (t *TrackedPose) UpdateGame(origin mgl64.Vec3, scale float64) {
	t.game = Pose{
		Position:    t.physical.Position.Mul(scale).Add(origin),
		Orientation: t.physical.Orientation,
	}
}

// Physical returns the pose in tracking space.
func (t TrackedPose) Physical() Pose { return t.physical }

// Game returns the pose in the host's world.
func (t TrackedPose) Game() Pose { return t.game }

// Valid reports whether the point has ever been located.
func (t TrackedPose) Valid() bool { return t.valid }

// Hand indices.
const (
	LeftHand  = 0
	RightHand = 1
)

// Rig is the full set of tracked points the frame loop maintains: head
// (view space), the eye currently being rendered, and grip and aim for each
// hand. The render goroutine writes it; any goroutine may read it.
type Rig struct {
	mu   sync.RWMutex
	head TrackedPose
	eye  TrackedPose
	grip [2]TrackedPose
	aim  [2]TrackedPose
}

// NewRig returns a rig with every point at identity.
func NewRig() *Rig {
	r := &Rig{head: NewTrackedPose(), eye: NewTrackedPose()}
	for i := range r.grip {
		r.grip[i] = NewTrackedPose()
		r.aim[i] = NewTrackedPose()
	}
	return r
}

// Head returns a copy of the head pose.
func (r *Rig) Head() TrackedPose {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.head
}

// Eye returns a copy of the pose of the eye last rendered.
func (r *Rig) Eye() TrackedPose {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.eye
}

// Grip returns a copy of a hand's grip pose.
func (r *Rig) Grip(hand int) TrackedPose {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.grip[hand]
}

// Aim returns a copy of a hand's aim pose.
func (r *Rig) Aim(hand int) TrackedPose {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.aim[hand]
}

// UpdateHead sets the head's physical pose.
func (r *Rig) UpdateHead(p xr.Posef, yawTurn float64) {
	r.mu.Lock()
	r.head.UpdatePhysical(p, yawTurn)
	r.mu.Unlock()
}

// UpdateGrip sets a hand's grip physical pose.
func (r *Rig) UpdateGrip(hand int, p xr.Posef, yawTurn float64) {
	r.mu.Lock()
	r.grip[hand].UpdatePhysical(p, yawTurn)
	r.mu.Unlock()
}

// UpdateAim sets a hand's aim physical pose.
func (r *Rig) UpdateAim(hand int, p xr.Posef, yawTurn float64) {
	r.mu.Lock()
	r.aim[hand].UpdatePhysical(p, yawTurn)
	r.mu.Unlock()
}

// UpdateGame recomputes the game pose of the head and both hands.
func (r *Rig) UpdateGame(origin mgl64.Vec3, scale float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head.UpdateGame(origin, scale)
	for i := range r.grip {
		r.grip[i].UpdateGame(origin, scale)
		r.aim[i].UpdateGame(origin, scale)
	}
}

// UpdateEye sets the eye pose for an eye pass and returns its game pose.
func (r *Rig) UpdateEye(p xr.Posef, yawTurn float64, origin mgl64.Vec3, scale float64) Pose {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eye.UpdatePhysical(p, yawTurn)
	r.eye.UpdateGame(origin, scale)
	return r.eye.game
}
