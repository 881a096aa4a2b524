package session

import (
	xrerrors "github.com/Iron-Ham/xrloop/internal/errors"
	"github.com/Iron-Ham/xrloop/internal/event"
	"github.com/Iron-Ham/xrloop/internal/xr"
)

// transitions lists the documented successors of each state. LOSS_PENDING
// may follow any state and is handled separately.
var transitions = map[xr.SessionState][]xr.SessionState{
	xr.SessionStateUnknown:      {xr.SessionStateIdle},
	xr.SessionStateIdle:         {xr.SessionStateReady, xr.SessionStateExiting},
	xr.SessionStateReady:        {xr.SessionStateSynchronized},
	xr.SessionStateSynchronized: {xr.SessionStateVisible, xr.SessionStateStopping},
	xr.SessionStateVisible:      {xr.SessionStateFocused, xr.SessionStateSynchronized},
	xr.SessionStateFocused:      {xr.SessionStateVisible},
	xr.SessionStateStopping:     {xr.SessionStateIdle},
}

// ExpectedTransition reports whether from→to follows the documented
// lifecycle.
func ExpectedTransition(from, to xr.SessionState) bool {
	if to == xr.SessionStateLossPending {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// HandleStateChanged applies a state change reported by the runtime.
// The runtime is authoritative, so unexpected transitions are logged and
// accepted.
//
//   - READY begins the session with the configured view configuration.
//   - STOPPING ends it.
//   - EXITING and LOSS_PENDING return teardown=true; the caller destroys the
//     session and instance.
//
// Events for a session other than the current one are ignored.
func (m *Manager) HandleStateChanged(ev xr.EventSessionStateChanged) (teardown bool, err error) {
	s := m.current
	if s == nil || ev.Session != s.Handle {
		m.logger.Debug("state change for unknown session ignored",
			"session", uint64(ev.Session),
			"state", ev.State.String())
		return false, nil
	}

	log := m.logger.WithSession(s.ID)
	prev := s.state
	expected := ExpectedTransition(prev, ev.State)
	s.state = ev.State

	if expected {
		log.Info("session state changed", "from", prev.String(), "to", ev.State.String())
	} else {
		log.Warn("unexpected session state transition", "from", prev.String(), "to", ev.State.String())
	}
	m.bus.Publish(event.NewSessionStateChangedEvent(s.ID, prev.String(), ev.State.String(), expected))

	switch ev.State {
	case xr.SessionStateReady:
		if s.running {
			return false, nil
		}
		if err := m.instances.Check("xrBeginSession", m.rt.BeginSession(s.Handle, m.opts.ViewConfiguration)); err != nil {
			return false, xrerrors.NewSessionError("begin session", err).
				WithSessionID(s.ID).
				WithState(ev.State.String())
		}
		s.running = true
		log.Debug("session begun")

	case xr.SessionStateStopping:
		if !s.running {
			return false, nil
		}
		// The session is no longer running even if the end call fails.
		s.running = false
		if err := m.instances.Check("xrEndSession", m.rt.EndSession(s.Handle)); err != nil {
			return false, xrerrors.NewSessionError("end session", err).
				WithSessionID(s.ID).
				WithState(ev.State.String())
		}
		log.Debug("session ended")

	case xr.SessionStateExiting, xr.SessionStateLossPending:
		return true, nil
	}
	return false, nil
}
