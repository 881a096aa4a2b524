package xr

import (
	"fmt"

	xrerrors "github.com/Iron-Ham/xrloop/internal/errors"
)

// Result is a native runtime return code. Negative values are failures,
// zero and positive values are success codes (some of them qualified).
type Result int32

// Result codes, numerically identical to the OpenXR 1.0 core codes.
const (
	Success                Result = 0
	TimeoutExpired         Result = 1
	SessionLossPending     Result = 3
	EventUnavailable       Result = 4
	SpaceBoundsUnavailable Result = 7
	SessionNotFocused      Result = 8
	FrameDiscarded         Result = 9

	ErrorValidationFailure               Result = -1
	ErrorRuntimeFailure                  Result = -2
	ErrorOutOfMemory                     Result = -3
	ErrorAPIVersionUnsupported           Result = -4
	ErrorInitializationFailed            Result = -6
	ErrorFunctionUnsupported             Result = -7
	ErrorFeatureUnsupported              Result = -8
	ErrorExtensionNotPresent             Result = -9
	ErrorLimitReached                    Result = -10
	ErrorSizeInsufficient                Result = -11
	ErrorHandleInvalid                   Result = -12
	ErrorInstanceLost                    Result = -13
	ErrorSessionRunning                  Result = -14
	ErrorSessionNotRunning               Result = -16
	ErrorSessionLost                     Result = -17
	ErrorSystemInvalid                   Result = -18
	ErrorPathInvalid                     Result = -19
	ErrorLayerInvalid                    Result = -23
	ErrorLayerLimitExceeded              Result = -24
	ErrorSwapchainRectInvalid            Result = -25
	ErrorSwapchainFormatUnsupported      Result = -26
	ErrorSessionNotReady                 Result = -28
	ErrorSessionNotStopping              Result = -29
	ErrorTimeInvalid                     Result = -30
	ErrorReferenceSpaceUnsupported       Result = -31
	ErrorFormFactorUnsupported           Result = -34
	ErrorFormFactorUnavailable           Result = -35
	ErrorCallOrderInvalid                Result = -37
	ErrorGraphicsDeviceInvalid           Result = -38
	ErrorPoseInvalid                     Result = -39
	ErrorViewConfigurationUnsupported    Result = -41
	ErrorEnvironmentBlendModeUnsupported Result = -42
	ErrorGraphicsRequirementsCallMissing Result = -50
	ErrorRuntimeUnavailable              Result = -51
)

var resultNames = map[Result]string{
	Success:                              "XR_SUCCESS",
	TimeoutExpired:                       "XR_TIMEOUT_EXPIRED",
	SessionLossPending:                   "XR_SESSION_LOSS_PENDING",
	EventUnavailable:                     "XR_EVENT_UNAVAILABLE",
	SpaceBoundsUnavailable:               "XR_SPACE_BOUNDS_UNAVAILABLE",
	SessionNotFocused:                    "XR_SESSION_NOT_FOCUSED",
	FrameDiscarded:                       "XR_FRAME_DISCARDED",
	ErrorValidationFailure:               "XR_ERROR_VALIDATION_FAILURE",
	ErrorRuntimeFailure:                  "XR_ERROR_RUNTIME_FAILURE",
	ErrorOutOfMemory:                     "XR_ERROR_OUT_OF_MEMORY",
	ErrorAPIVersionUnsupported:           "XR_ERROR_API_VERSION_UNSUPPORTED",
	ErrorInitializationFailed:            "XR_ERROR_INITIALIZATION_FAILED",
	ErrorFunctionUnsupported:             "XR_ERROR_FUNCTION_UNSUPPORTED",
	ErrorFeatureUnsupported:              "XR_ERROR_FEATURE_UNSUPPORTED",
	ErrorExtensionNotPresent:             "XR_ERROR_EXTENSION_NOT_PRESENT",
	ErrorLimitReached:                    "XR_ERROR_LIMIT_REACHED",
	ErrorSizeInsufficient:                "XR_ERROR_SIZE_INSUFFICIENT",
	ErrorHandleInvalid:                   "XR_ERROR_HANDLE_INVALID",
	ErrorInstanceLost:                    "XR_ERROR_INSTANCE_LOST",
	ErrorSessionRunning:                  "XR_ERROR_SESSION_RUNNING",
	ErrorSessionNotRunning:               "XR_ERROR_SESSION_NOT_RUNNING",
	ErrorSessionLost:                     "XR_ERROR_SESSION_LOST",
	ErrorSystemInvalid:                   "XR_ERROR_SYSTEM_INVALID",
	ErrorPathInvalid:                     "XR_ERROR_PATH_INVALID",
	ErrorLayerInvalid:                    "XR_ERROR_LAYER_INVALID",
	ErrorLayerLimitExceeded:              "XR_ERROR_LAYER_LIMIT_EXCEEDED",
	ErrorSwapchainRectInvalid:            "XR_ERROR_SWAPCHAIN_RECT_INVALID",
	ErrorSwapchainFormatUnsupported:      "XR_ERROR_SWAPCHAIN_FORMAT_UNSUPPORTED",
	ErrorSessionNotReady:                 "XR_ERROR_SESSION_NOT_READY",
	ErrorSessionNotStopping:              "XR_ERROR_SESSION_NOT_STOPPING",
	ErrorTimeInvalid:                     "XR_ERROR_TIME_INVALID",
	ErrorReferenceSpaceUnsupported:       "XR_ERROR_REFERENCE_SPACE_UNSUPPORTED",
	ErrorFormFactorUnsupported:           "XR_ERROR_FORM_FACTOR_UNSUPPORTED",
	ErrorFormFactorUnavailable:           "XR_ERROR_FORM_FACTOR_UNAVAILABLE",
	ErrorCallOrderInvalid:                "XR_ERROR_CALL_ORDER_INVALID",
	ErrorGraphicsDeviceInvalid:           "XR_ERROR_GRAPHICS_DEVICE_INVALID",
	ErrorPoseInvalid:                     "XR_ERROR_POSE_INVALID",
	ErrorViewConfigurationUnsupported:    "XR_ERROR_VIEW_CONFIGURATION_TYPE_UNSUPPORTED",
	ErrorEnvironmentBlendModeUnsupported: "XR_ERROR_ENVIRONMENT_BLEND_MODE_UNSUPPORTED",
	ErrorGraphicsRequirementsCallMissing: "XR_ERROR_GRAPHICS_REQUIREMENTS_CALL_MISSING",
	ErrorRuntimeUnavailable:              "XR_ERROR_RUNTIME_UNAVAILABLE",
}

// String returns the canonical XR_* name, or a numeric form for codes
// this package does not know.
func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	if r < 0 {
		return fmt.Sprintf("XR_UNKNOWN_FAILURE_%d", int32(-r))
	}
	return fmt.Sprintf("XR_UNKNOWN_SUCCESS_%d", int32(r))
}

// Succeeded reports whether r is a success code.
func (r Result) Succeeded() bool { return r >= 0 }

// Failed reports whether r is a failure code.
func (r Result) Failed() bool { return r < 0 }

// Sentinel maps failure codes that carry recovery meaning onto the error
// taxonomy. It returns nil for codes with no special meaning.
func (r Result) Sentinel() error {
	switch r {
	case ErrorRuntimeFailure, ErrorRuntimeUnavailable, ErrorFormFactorUnavailable:
		return xrerrors.ErrRuntimeUnavailable
	case ErrorInstanceLost:
		return xrerrors.ErrInstanceLost
	case ErrorSessionLost:
		return xrerrors.ErrSessionLost
	case ErrorValidationFailure, ErrorAPIVersionUnsupported, ErrorExtensionNotPresent:
		return xrerrors.ErrMalformedDescriptor
	default:
		return nil
	}
}

// NewError builds the error for a failed call. message is the runtime's
// own description of r when one is available.
func NewError(op string, r Result, message string) *xrerrors.RuntimeError {
	return xrerrors.NewRuntimeError(op, int32(r), message).WithCause(r.Sentinel())
}

// Err converts a failed result into an error using the numeric fallback
// message. Success codes return nil.
func (r Result) Err(op string) error {
	if r.Succeeded() {
		return nil
	}
	return NewError(op, r, fmt.Sprintf("XR method returned %d", int32(r)))
}
