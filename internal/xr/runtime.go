// Package xr is the boundary between xrloop and a native XR runtime.
//
// The Runtime interface has one method per native entry point the session
// driver calls. Every method returns a Result; negative results are failures
// and the caller converts them into errors at the call site (see
// instance.Manager.Check). Implementations are not required to be safe for
// concurrent use: the driver calls them from a single render goroutine.
//
// The sim subpackage provides a deterministic in-process implementation used
// for tests and headless runs. A binding to a hardware runtime implements the
// same interface.
package xr

// Runtime is the native API surface used by the session driver.
type Runtime interface {
	// EnumerateInstanceExtensionProperties lists every extension the runtime advertises.
	EnumerateInstanceExtensionProperties() ([]ExtensionProperties, Result)
	// CreateInstance opens a runtime connection.
	CreateInstance(info InstanceCreateInfo) (Instance, Result)
	// DestroyInstance closes a runtime connection and everything created from it.
	DestroyInstance(inst Instance) Result
	// ResultToString formats a result code using the runtime's own names.
	ResultToString(inst Instance, r Result) (string, Result)
	// PollEvent returns the next queued event, or EventUnavailable when the queue is empty.
	PollEvent(inst Instance) (Event, Result)

	// GetSystem resolves the physical device for a form factor.
	GetSystem(inst Instance, formFactor FormFactor) (SystemID, Result)
	// EnumerateViewConfigurationViews returns one recommendation per view.
	EnumerateViewConfigurationViews(inst Instance, system SystemID, viewConfig ViewConfigurationType) ([]ViewConfigurationView, Result)

	// CreateSession binds a session to a system and graphics context.
	CreateSession(inst Instance, info SessionCreateInfo) (Session, Result)
	// DestroySession releases a session and its spaces and swapchains.
	DestroySession(s Session) Result
	// BeginSession starts the frame loop for a ready session.
	BeginSession(s Session, viewConfig ViewConfigurationType) Result
	// EndSession stops the frame loop for a stopping session.
	EndSession(s Session) Result
	// RequestExitSession asks the runtime to move the session towards exiting.
	RequestExitSession(s Session) Result

	// CreateReferenceSpace creates a reference space in a session.
	CreateReferenceSpace(s Session, info ReferenceSpaceCreateInfo) (Space, Result)
	// DestroySpace releases a space.
	DestroySpace(space Space) Result
	// LocateSpace locates space relative to base at the given time.
	LocateSpace(space, base Space, t Time) (SpaceLocation, Result)

	// EnumerateSwapchainFormats lists the image formats the runtime accepts, in preference order.
	EnumerateSwapchainFormats(s Session) ([]int64, Result)
	// CreateSwapchain creates an image ring.
	CreateSwapchain(s Session, info SwapchainCreateInfo) (Swapchain, Result)
	// DestroySwapchain releases an image ring.
	DestroySwapchain(sc Swapchain) Result
	// EnumerateSwapchainImages lists the images backing a ring.
	EnumerateSwapchainImages(sc Swapchain) ([]SwapchainImage, Result)
	// AcquireSwapchainImage reserves the next image index.
	AcquireSwapchainImage(sc Swapchain) (uint32, Result)
	// WaitSwapchainImage blocks until the acquired image is writable.
	WaitSwapchainImage(sc Swapchain, timeout Duration) Result
	// ReleaseSwapchainImage hands the acquired image back to the runtime.
	ReleaseSwapchainImage(sc Swapchain) Result

	// WaitFrame blocks until the compositor has a frame slot.
	WaitFrame(s Session) (FrameState, Result)
	// BeginFrame announces the start of rendering.
	BeginFrame(s Session) Result
	// EndFrame submits layers and closes the begin/end bracket.
	EndFrame(s Session, info FrameEndInfo) Result
	// LocateViews returns per-view poses and fields of view plus frame-wide validity.
	LocateViews(s Session, info ViewLocateInfo) (ViewState, []View, Result)
}
