// Package internal contains integration tests that verify the driver,
// renderer and event bus work together against the simulated runtime.
package internal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Iron-Ham/xrloop/internal/config"
	"github.com/Iron-Ham/xrloop/internal/driver"
	"github.com/Iron-Ham/xrloop/internal/event"
	"github.com/Iron-Ham/xrloop/internal/render"
	"github.com/Iron-Ham/xrloop/internal/xr"
	"github.com/Iron-Ham/xrloop/internal/xr/sim"
)

// recorder collects event types in publish order.
type recorder struct {
	mu     sync.Mutex
	types  []string
	states []string
}

func (r *recorder) handle(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.EventType())
	if sc, ok := e.(event.SessionStateChangedEvent); ok {
		r.states = append(r.states, sc.Current)
	}
}

func (r *recorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...), append([]string(nil), r.states...)
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func newDriver(t *testing.T, rt *sim.Runtime, bus *event.Bus, maxFrames uint64) (*driver.Driver, *render.Headless) {
	t.Helper()
	cfg := config.Default()
	h := render.NewHeadless(cfg.Render.NearClip, cfg.Render.FarClip, nil)
	d, err := driver.New(rt, cfg, h, driver.Options{
		Bus:       bus,
		Anchor:    render.NewWalker(mgl64.Vec3{0, 64, 0}, 4),
		MaxFrames: maxFrames,
	})
	if err != nil {
		t.Fatalf("driver.New() error = %v", err)
	}
	return d, h
}

// TestSessionLifecycleEvents follows one session from bring-up through a
// requested exit and checks the bus saw the lifecycle in order.
func TestSessionLifecycleEvents(t *testing.T) {
	bus := event.NewBus()
	rec := &recorder{}
	bus.SubscribeAll(rec.handle)

	rt := sim.New()
	d, h := newDriver(t, rt, bus, 0)

	for i := 0; i < 3; i++ {
		if err := d.Tick(); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
	}
	if !d.IsFocused() {
		t.Fatal("session should be focused after bring-up")
	}

	d.ScheduleExit()
	for i := 0; i < 5 && !d.Exited(); i++ {
		if err := d.Tick(); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
	}
	if !d.Exited() {
		t.Fatal("driver did not exit after the scheduled exit")
	}
	if rt.LiveSessions() != 0 || rt.LiveInstance() != 0 {
		t.Error("runtime objects left open after exit")
	}

	types, states := rec.snapshot()
	created := indexOf(types, event.TypeInstanceCreated)
	session := indexOf(types, event.TypeSessionCreated)
	firstFrame := indexOf(types, event.TypeFrameCompleted)
	destroyed := indexOf(types, event.TypeSessionDestroyed)
	if created < 0 || session < 0 || firstFrame < 0 || destroyed < 0 {
		t.Fatalf("missing lifecycle events: %v", types)
	}
	if !(created < session && session < firstFrame && firstFrame < destroyed) {
		t.Errorf("lifecycle out of order: %v", types)
	}

	for _, want := range []string{"ready", "focused", "stopping"} {
		if indexOf(states, want) < 0 {
			t.Errorf("state %q never observed in %v", want, states)
		}
	}
	if indexOf(states, "ready") > indexOf(states, "focused") {
		t.Errorf("focused before ready: %v", states)
	}

	if h.Stats().Eyes == 0 {
		t.Error("no eyes rendered")
	}
}

// TestRunWithChannelSubscriber runs the driver loop on its own goroutine
// while a channel subscriber drains frame events, the way the monitor does.
func TestRunWithChannelSubscriber(t *testing.T) {
	bus := event.NewBus()
	events, id := bus.SubscribeChan(1024)
	defer bus.Unsubscribe(id)

	rt := sim.New()
	d, _ := newDriver(t, rt, bus, 20)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	var frames int
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			// Drain what was published before Run returned.
			for {
				select {
				case e := <-events:
					if e.EventType() == event.TypeFrameCompleted {
						frames++
					}
				default:
					if frames != 20 {
						t.Errorf("frame events = %d, want 20", frames)
					}
					if got := d.Stats().Rendered; got != 20 {
						t.Errorf("Stats().Rendered = %d, want 20", got)
					}
					if rt.LiveSessions() != 0 {
						t.Error("session left open after Run")
					}
					return
				}
			}
		case e := <-events:
			if e.EventType() == event.TypeFrameCompleted {
				frames++
			}
		case <-ctx.Done():
			t.Fatal("driver did not reach the frame limit")
		}
	}
}

// TestInstanceLossRebuild loses the instance mid-session and checks the
// driver builds a fresh one on a later tick.
func TestInstanceLossRebuild(t *testing.T) {
	bus := event.NewBus()
	rec := &recorder{}
	bus.SubscribeAll(rec.handle)

	rt := sim.New()
	cfg := config.Default()
	cfg.Loop.RetryDelayMs = 0
	h := render.NewHeadless(cfg.Render.NearClip, cfg.Render.FarClip, nil)
	d, err := driver.New(rt, cfg, h, driver.Options{Bus: bus})
	if err != nil {
		t.Fatal(err)
	}

	if err := d.Tick(); err != nil {
		t.Fatal(err)
	}
	first := rt.LiveInstance()

	rt.PushEvent(xr.EventInstanceLossPending{LossTime: 1})
	for i := 0; i < 5; i++ {
		if err := d.Tick(); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
	}

	if got := rt.LiveInstance(); got == 0 || got == first {
		t.Errorf("instance not rebuilt: first %v, now %v", first, got)
	}
	if stats := d.Stats(); stats.Initializations < 2 || stats.Teardowns < 1 {
		t.Errorf("stats = %+v, want a teardown and a second bring-up", stats)
	}
	types, _ := rec.snapshot()
	if indexOf(types, event.TypeInstanceLossPending) < 0 {
		t.Errorf("loss pending not published: %v", types)
	}
}
