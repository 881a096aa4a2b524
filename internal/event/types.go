package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier, e.g. "frame.completed".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Event type identifiers.
const (
	TypeInstanceCreated           = "instance.created"
	TypeInstanceDestroyed         = "instance.destroyed"
	TypeInstanceLossPending       = "instance.loss_pending"
	TypeSessionCreated            = "session.created"
	TypeSessionStateChanged       = "session.state_changed"
	TypeSessionDestroyed          = "session.destroyed"
	TypeInteractionProfileChanged = "session.interaction_profile_changed"
	TypeReferenceSpaceChanging    = "session.reference_space_changing"
	TypeFrameCompleted            = "frame.completed"
	TypeFrameFailed               = "frame.failed"
	TypeInitFailed                = "driver.init_failed"
	TypeConfigReloaded            = "config.reloaded"
)

// -----------------------------------------------------------------------------
// Instance Events
// -----------------------------------------------------------------------------

// InstanceCreatedEvent is emitted after a runtime instance is opened.
type InstanceCreatedEvent struct {
	baseEvent
	Instance   uint64
	Extensions []string
}

// NewInstanceCreatedEvent creates an InstanceCreatedEvent.
func NewInstanceCreatedEvent(instance uint64, extensions []string) InstanceCreatedEvent {
	return InstanceCreatedEvent{
		baseEvent:  newBaseEvent(TypeInstanceCreated),
		Instance:   instance,
		Extensions: extensions,
	}
}

// InstanceDestroyedEvent is emitted when an instance is torn down.
type InstanceDestroyedEvent struct {
	baseEvent
	Instance uint64
	Reason   string
}

// NewInstanceDestroyedEvent creates an InstanceDestroyedEvent.
func NewInstanceDestroyedEvent(instance uint64, reason string) InstanceDestroyedEvent {
	return InstanceDestroyedEvent{
		baseEvent: newBaseEvent(TypeInstanceDestroyed),
		Instance:  instance,
		Reason:    reason,
	}
}

// InstanceLossPendingEvent relays the runtime's loss warning.
type InstanceLossPendingEvent struct {
	baseEvent
	Instance uint64
	LossTime int64 // runtime nanoseconds
}

// NewInstanceLossPendingEvent creates an InstanceLossPendingEvent.
func NewInstanceLossPendingEvent(instance uint64, lossTime int64) InstanceLossPendingEvent {
	return InstanceLossPendingEvent{
		baseEvent: newBaseEvent(TypeInstanceLossPending),
		Instance:  instance,
		LossTime:  lossTime,
	}
}

// -----------------------------------------------------------------------------
// Session Events
// -----------------------------------------------------------------------------

// SessionCreatedEvent is emitted once a session has its spaces and swapchains.
type SessionCreatedEvent struct {
	baseEvent
	SessionID string
	Views     int
	Width     int
	Height    int
}

// NewSessionCreatedEvent creates a SessionCreatedEvent.
func NewSessionCreatedEvent(sessionID string, views, width, height int) SessionCreatedEvent {
	return SessionCreatedEvent{
		baseEvent: newBaseEvent(TypeSessionCreated),
		SessionID: sessionID,
		Views:     views,
		Width:     width,
		Height:    height,
	}
}

// SessionStateChangedEvent is emitted for every runtime state transition.
type SessionStateChangedEvent struct {
	baseEvent
	SessionID string
	Previous  string
	Current   string
	Expected  bool // false when the transition skipped the documented order
}

// NewSessionStateChangedEvent creates a SessionStateChangedEvent.
func NewSessionStateChangedEvent(sessionID, previous, current string, expected bool) SessionStateChangedEvent {
	return SessionStateChangedEvent{
		baseEvent: newBaseEvent(TypeSessionStateChanged),
		SessionID: sessionID,
		Previous:  previous,
		Current:   current,
		Expected:  expected,
	}
}

// SessionDestroyedEvent is emitted when a session is torn down.
type SessionDestroyedEvent struct {
	baseEvent
	SessionID string
	Reason    string
}

// NewSessionDestroyedEvent creates a SessionDestroyedEvent.
func NewSessionDestroyedEvent(sessionID, reason string) SessionDestroyedEvent {
	return SessionDestroyedEvent{
		baseEvent: newBaseEvent(TypeSessionDestroyed),
		SessionID: sessionID,
		Reason:    reason,
	}
}

// InteractionProfileChangedEvent is informational.
type InteractionProfileChangedEvent struct {
	baseEvent
	SessionID string
}

// NewInteractionProfileChangedEvent creates an InteractionProfileChangedEvent.
func NewInteractionProfileChangedEvent(sessionID string) InteractionProfileChangedEvent {
	return InteractionProfileChangedEvent{
		baseEvent: newBaseEvent(TypeInteractionProfileChanged),
		SessionID: sessionID,
	}
}

// ReferenceSpaceChangingEvent announces a recenter or boundary change.
type ReferenceSpaceChangingEvent struct {
	baseEvent
	SessionID  string
	Space      string
	ChangeTime int64
}

// NewReferenceSpaceChangingEvent creates a ReferenceSpaceChangingEvent.
func NewReferenceSpaceChangingEvent(sessionID, space string, changeTime int64) ReferenceSpaceChangingEvent {
	return ReferenceSpaceChangingEvent{
		baseEvent:  newBaseEvent(TypeReferenceSpaceChanging),
		SessionID:  sessionID,
		Space:      space,
		ChangeTime: changeTime,
	}
}

// -----------------------------------------------------------------------------
// Frame Events
// -----------------------------------------------------------------------------

// FrameMode says which path a frame took.
type FrameMode string

const (
	FrameModeSkipped  FrameMode = "skipped"  // shouldRender was false
	FrameModeBlank    FrameMode = "blank"    // views invalid or not immersive
	FrameModeRendered FrameMode = "rendered" // full stereo pass
)

// FrameCompletedEvent carries per-frame statistics.
type FrameCompletedEvent struct {
	baseEvent
	Frame       uint64
	DisplayTime int64
	Period      time.Duration
	Mode        FrameMode
	Eyes        int
	Focused     bool
	Duration    time.Duration
}

// NewFrameCompletedEvent creates a FrameCompletedEvent.
func NewFrameCompletedEvent(frame uint64, displayTime int64, period time.Duration, mode FrameMode, eyes int, focused bool, took time.Duration) FrameCompletedEvent {
	return FrameCompletedEvent{
		baseEvent:   newBaseEvent(TypeFrameCompleted),
		Frame:       frame,
		DisplayTime: displayTime,
		Period:      period,
		Mode:        mode,
		Eyes:        eyes,
		Focused:     focused,
		Duration:    took,
	}
}

// FrameFailedEvent is emitted when a frame aborts with a frame-fatal error.
type FrameFailedEvent struct {
	baseEvent
	Frame       uint64
	Stage       string
	Error       string
	Consecutive int
}

// NewFrameFailedEvent creates a FrameFailedEvent.
func NewFrameFailedEvent(frame uint64, stage, errMsg string, consecutive int) FrameFailedEvent {
	return FrameFailedEvent{
		baseEvent:   newBaseEvent(TypeFrameFailed),
		Frame:       frame,
		Stage:       stage,
		Error:       errMsg,
		Consecutive: consecutive,
	}
}

// -----------------------------------------------------------------------------
// Driver Events
// -----------------------------------------------------------------------------

// InitFailedEvent is emitted when an initialization attempt fails.
type InitFailedEvent struct {
	baseEvent
	Attempt int
	Class   string
	Error   string
	RetryIn time.Duration // zero when no retry is scheduled
}

// NewInitFailedEvent creates an InitFailedEvent.
func NewInitFailedEvent(attempt int, class, errMsg string, retryIn time.Duration) InitFailedEvent {
	return InitFailedEvent{
		baseEvent: newBaseEvent(TypeInitFailed),
		Attempt:   attempt,
		Class:     class,
		Error:     errMsg,
		RetryIn:   retryIn,
	}
}

// ConfigReloadedEvent is emitted after live settings were re-applied.
type ConfigReloadedEvent struct {
	baseEvent
	Path string
}

// NewConfigReloadedEvent creates a ConfigReloadedEvent.
func NewConfigReloadedEvent(path string) ConfigReloadedEvent {
	return ConfigReloadedEvent{
		baseEvent: newBaseEvent(TypeConfigReloaded),
		Path:      path,
	}
}
