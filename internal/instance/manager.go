// Package instance owns the runtime connection: creation from a negotiated
// extension set, result-code translation, event polling and teardown.
package instance

import (
	"fmt"

	xrerrors "github.com/Iron-Ham/xrloop/internal/errors"
	"github.com/Iron-Ham/xrloop/internal/event"
	"github.com/Iron-Ham/xrloop/internal/extension"
	"github.com/Iron-Ham/xrloop/internal/logging"
	"github.com/Iron-Ham/xrloop/internal/xr"
)

// Options is the application descriptor sent at creation.
type Options struct {
	ApplicationName    string
	ApplicationVersion uint32
	EngineName         string
	EngineVersion      uint32
	APIVersion         xr.Version
}

// Instance is a live runtime connection.
type Instance struct {
	Handle     xr.Instance
	Extensions extension.Set
	Info       xr.InstanceCreateInfo
}

// Manager creates and destroys the single Instance. It is not safe for
// concurrent use; the render goroutine owns it.
type Manager struct {
	rt      xr.Runtime
	opts    Options
	current *Instance
	logger  *logging.Logger
	bus     *event.Bus
}

// NewManager returns a Manager with no live instance. bus may be nil.
func NewManager(rt xr.Runtime, opts Options, logger *logging.Logger, bus *event.Bus) *Manager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if opts.APIVersion == 0 {
		opts.APIVersion = xr.CurrentAPIVersion
	}
	return &Manager{rt: rt, opts: opts, logger: logger, bus: bus}
}

// Runtime returns the runtime this manager talks to.
func (m *Manager) Runtime() xr.Runtime { return m.rt }

// Current returns the live instance or nil.
func (m *Manager) Current() *Instance { return m.current }

// Live reports whether an instance exists.
func (m *Manager) Live() bool { return m.current != nil }

// Create opens a runtime connection with the given extensions. If an
// instance is already live it is returned unchanged.
//
// Failures map onto the error taxonomy through the result's sentinel:
// runtime failure and unavailability are retryable (ErrRuntimeUnavailable),
// instance loss is retryable from scratch (ErrInstanceLost), a rejected
// descriptor is a setup error, anything else is a plain RuntimeError.
func (m *Manager) Create(set extension.Set) (*Instance, error) {
	if m.current != nil {
		return m.current, nil
	}

	info := xr.InstanceCreateInfo{
		Application: xr.ApplicationInfo{
			ApplicationName:    m.opts.ApplicationName,
			ApplicationVersion: m.opts.ApplicationVersion,
			EngineName:         m.opts.EngineName,
			EngineVersion:      m.opts.EngineVersion,
			APIVersion:         m.opts.APIVersion,
		},
		EnabledExtensionNames: set.Names(),
	}

	handle, res := m.rt.CreateInstance(info)
	if res.Failed() {
		err := xr.NewError("xrCreateInstance", res, createFailureMessage(res))
		if xrerrors.Is(err, xrerrors.ErrMalformedDescriptor) {
			return nil, xrerrors.NewSetupError("instance descriptor rejected", err).WithComponent("instance")
		}
		m.logger.Warn("instance creation failed", "result", res.String(), "retryable", xrerrors.IsRetryable(err))
		return nil, err
	}

	m.current = &Instance{Handle: handle, Extensions: set, Info: info}
	m.logger.WithInstance(uint64(handle)).Info("instance created",
		"extensions", set.Names(),
		"api_version", m.opts.APIVersion.String())
	m.bus.Publish(event.NewInstanceCreatedEvent(uint64(handle), set.Names()))
	return m.current, nil
}

func createFailureMessage(res xr.Result) string {
	switch res {
	case xr.ErrorRuntimeFailure:
		return "runtime failure, is the headset plugged in?"
	case xr.ErrorRuntimeUnavailable:
		return "no runtime installed or active"
	case xr.ErrorInstanceLost:
		return "instance lost, the runtime may be updating"
	default:
		return fmt.Sprintf("XR method returned %d", int32(res))
	}
}

// Close destroys the instance, which implicitly destroys every session and
// space created from it. Closing without a live instance is a no-op.
func (m *Manager) Close(reason string) error {
	if m.current == nil {
		return nil
	}
	handle := m.current.Handle
	m.current = nil

	res := m.rt.DestroyInstance(handle)
	m.logger.WithInstance(uint64(handle)).Info("instance destroyed", "reason", reason)
	m.bus.Publish(event.NewInstanceDestroyedEvent(uint64(handle), reason))
	if res.Failed() {
		// The handle is gone either way; report but do not retry.
		return xr.NewError("xrDestroyInstance", res, res.String())
	}
	return nil
}

// Check converts a result into an error. With a live instance the runtime's
// own name for the code is used; otherwise the message falls back to the
// numeric form. Success codes return nil.
func (m *Manager) Check(op string, res xr.Result) error {
	if res.Succeeded() {
		return nil
	}
	if m.current != nil {
		if name, r := m.rt.ResultToString(m.current.Handle, res); r.Succeeded() && name != "" {
			return xr.NewError(op, res, name)
		}
	}
	return res.Err(op)
}

// NextEvent polls one event. ok is false when the queue is empty.
func (m *Manager) NextEvent() (ev xr.Event, ok bool, err error) {
	if m.current == nil {
		return nil, false, xrerrors.ErrNoInstance
	}
	ev, res := m.rt.PollEvent(m.current.Handle)
	if res == xr.EventUnavailable {
		return nil, false, nil
	}
	if err := m.Check("xrPollEvent", res); err != nil {
		return nil, false, err
	}
	return ev, true, nil
}

// System resolves the device for a form factor.
func (m *Manager) System(formFactor xr.FormFactor) (xr.SystemID, error) {
	if m.current == nil {
		return 0, xrerrors.ErrNoInstance
	}
	id, res := m.rt.GetSystem(m.current.Handle, formFactor)
	if err := m.Check("xrGetSystem", res); err != nil {
		return 0, err
	}
	return id, nil
}

// Logger returns the manager's logger tagged with the live instance.
func (m *Manager) Logger() *logging.Logger {
	if m.current == nil {
		return m.logger
	}
	return m.logger.WithInstance(uint64(m.current.Handle))
}
