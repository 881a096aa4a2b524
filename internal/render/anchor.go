package render

import (
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Walker is a stand-in for a host's focused entity: it walks a circle at a
// fixed simulation tick rate and reports the last two tick positions plus
// the fraction of a tick elapsed, as a game loop would.
type Walker struct {
	center mgl64.Vec3
	radius float64
	tick   time.Duration
	now    func() time.Time

	mu    sync.Mutex
	start time.Time
}

// NewWalker returns a walker around center with a 20 Hz tick.
func NewWalker(center mgl64.Vec3, radius float64) *Walker {
	return &Walker{center: center, radius: radius, tick: 50 * time.Millisecond, now: time.Now}
}

// Anchor implements frame.AnchorSource.
func (w *Walker) Anchor() (prev, cur mgl64.Vec3, tickDelta float64, ok bool) {
	w.mu.Lock()
	if w.start.IsZero() {
		w.start = w.now()
	}
	elapsed := w.now().Sub(w.start)
	w.mu.Unlock()

	ticks := int64(elapsed / w.tick)
	tickDelta = float64(elapsed%w.tick) / float64(w.tick)
	return w.at(ticks - 1), w.at(ticks), tickDelta, true
}

func (w *Walker) at(tick int64) mgl64.Vec3 {
	if tick < 0 {
		tick = 0
	}
	// One lap every 400 ticks.
	angle := float64(tick) * 2 * math.Pi / 400
	return w.center.Add(mgl64.Vec3{w.radius * math.Cos(angle), 0, w.radius * math.Sin(angle)})
}
