// Package eventpump drains the runtime event queue once per tick and routes
// each event to the component that owns it.
package eventpump

import (
	"github.com/Iron-Ham/xrloop/internal/event"
	"github.com/Iron-Ham/xrloop/internal/instance"
	"github.com/Iron-Ham/xrloop/internal/logging"
	"github.com/Iron-Ham/xrloop/internal/session"
	"github.com/Iron-Ham/xrloop/internal/xr"
)

// Pump dispatches runtime events. It must be called from the goroutine that
// owns the instance and session managers.
type Pump struct {
	instances *instance.Manager
	sessions  *session.Manager
	logger    *logging.Logger
	bus       *event.Bus
}

// New returns a Pump. bus may be nil.
func New(instances *instance.Manager, sessions *session.Manager, logger *logging.Logger, bus *event.Bus) *Pump {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Pump{
		instances: instances,
		sessions:  sessions,
		logger:    logger.WithPhase("events"),
		bus:       bus,
	}
}

// PollOnce drains pending events until the queue is empty or an event asks
// for teardown. teardown=true means the session and instance are gone (loss
// pending) or must be destroyed by the caller (session exiting); the next
// initialization starts over from extension negotiation. Without a live
// instance PollOnce is a no-op.
func (p *Pump) PollOnce() (teardown bool, err error) {
	if !p.instances.Live() {
		return false, nil
	}
	for {
		ev, ok, err := p.instances.NextEvent()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		teardown, err := p.dispatch(ev)
		if err != nil || teardown {
			return teardown, err
		}
	}
}

func (p *Pump) dispatch(ev xr.Event) (bool, error) {
	sessionID := ""
	if s := p.sessions.Current(); s != nil {
		sessionID = s.ID
	}

	switch e := ev.(type) {
	case xr.EventInstanceLossPending:
		inst := p.instances.Current()
		p.logger.Warn("instance loss pending", "loss_time", int64(e.LossTime))
		p.bus.Publish(event.NewInstanceLossPendingEvent(uint64(inst.Handle), int64(e.LossTime)))
		if err := p.sessions.Close("instance loss pending"); err != nil {
			p.logger.Warn("session release during instance loss", "error", err)
		}
		if err := p.instances.Close("instance loss pending"); err != nil {
			p.logger.Warn("instance release during instance loss", "error", err)
		}
		return true, nil

	case xr.EventSessionStateChanged:
		return p.sessions.HandleStateChanged(e)

	case xr.EventInteractionProfileChanged:
		p.logger.Info("interaction profile changed", "session_id", sessionID)
		p.bus.Publish(event.NewInteractionProfileChangedEvent(sessionID))

	case xr.EventReferenceSpaceChangePending:
		p.logger.Debug("reference space change pending",
			"space", e.ReferenceSpaceType.String(),
			"change_time", int64(e.ChangeTime),
			"pose_valid", e.PoseValid)
		p.bus.Publish(event.NewReferenceSpaceChangingEvent(sessionID, e.ReferenceSpaceType.String(), int64(e.ChangeTime)))

	case xr.EventEventsLost:
		p.logger.Debug("runtime event queue overflowed", "lost", e.LostEventCount)

	default:
		p.logger.Debug("ignoring event", "type", int32(ev.Type()))
	}
	return false, nil
}
