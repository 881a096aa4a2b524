// Package event provides a pub-sub event bus that carries driver, session
// and frame notifications to observers such as the monitor TUI and the
// structured logger.
//
// # Main Types
//
//   - [Event]: Interface that all events implement (EventType, Timestamp)
//   - [Bus]: Synchronous dispatcher, safe for concurrent use
//   - [Handler]: func(Event)
//
// # Thread Safety
//
// Handlers run synchronously on the publishing goroutine and are protected
// against panics. Observers on other goroutines should use
// [Bus.SubscribeChan], which copies events into a bounded channel and drops
// them when the consumer falls behind.
//
// # Basic Usage
//
//	bus := event.NewBus()
//	bus.Subscribe(event.TypeFrameFailed, func(e event.Event) {
//	    f := e.(event.FrameFailedEvent)
//	    log.Printf("frame %d failed at %s", f.Frame, f.Stage)
//	})
//
//	ch, id := bus.SubscribeChan(256)
//	defer bus.Unsubscribe(id)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - instance.created, instance.destroyed, instance.loss_pending
//   - session.created, session.state_changed, session.destroyed
//   - frame.completed, frame.failed
//   - driver.init_failed, config.reloaded
package event
