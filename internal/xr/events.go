package xr

// EventType identifies the concrete type of a runtime event.
type EventType int32

const (
	EventTypeEventsLost                  EventType = 16
	EventTypeInstanceLossPending         EventType = 17
	EventTypeSessionStateChanged         EventType = 18
	EventTypeReferenceSpaceChangePending EventType = 46
	EventTypeInteractionProfileChanged   EventType = 52
)

// Event is a record drained from the runtime's event queue.
type Event interface {
	Type() EventType
}

// EventInstanceLossPending announces that the instance will be lost at LossTime.
type EventInstanceLossPending struct {
	LossTime Time
}

func (EventInstanceLossPending) Type() EventType { return EventTypeInstanceLossPending }

// EventSessionStateChanged reports a session state transition.
type EventSessionStateChanged struct {
	Session Session
	State   SessionState
	Time    Time
}

func (EventSessionStateChanged) Type() EventType { return EventTypeSessionStateChanged }

// EventInteractionProfileChanged reports that the active input profile changed.
type EventInteractionProfileChanged struct {
	Session Session
}

func (EventInteractionProfileChanged) Type() EventType { return EventTypeInteractionProfileChanged }

// EventReferenceSpaceChangePending reports an upcoming recenter or boundary change.
type EventReferenceSpaceChangePending struct {
	Session             Session
	ReferenceSpaceType  ReferenceSpaceType
	ChangeTime          Time
	PoseValid           bool
	PoseInPreviousSpace Posef
}

func (EventReferenceSpaceChangePending) Type() EventType {
	return EventTypeReferenceSpaceChangePending
}

// EventEventsLost reports that the runtime queue overflowed.
type EventEventsLost struct {
	LostEventCount uint32
}

func (EventEventsLost) Type() EventType { return EventTypeEventsLost }
