// Package errors provides centralized error definitions and error handling utilities
// for xrloop. It defines the runtime failure taxonomy, domain error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures from specific subsystems:
//   - SetupError: unrecoverable initialization failures (missing capability,
//     malformed descriptor). Never retried.
//   - RuntimeError: a native runtime call returned a negative result code.
//   - SessionError: errors related to session bring-up and state handling.
//   - FrameError: a failure inside one frame of the wait/begin/render/end protocol.
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or state
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewSetupError("runtime lacks OpenGL interop", errors.ErrMissingCapability)
//	err := errors.NewRuntimeError("xrWaitFrame", -17, "XR_ERROR_SESSION_LOST").WithCause(errors.ErrSessionLost)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrInstanceLost) { ... }
//
//	switch errors.Classify(err) {
//	case errors.ClassRecoverableRuntime:
//	    // tear down and retry later
//	}
//
// # Error Classification
//
// Errors are classified by how the caller must react:
//   - ClassUnrecoverableSetup: abort initialization, surface to the user
//   - ClassRecoverableRuntime: destroy instance/session, retry from scratch later
//   - ClassFrameFatal: abort the current frame only
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Class describes how a caller has to react to an error.
type Class int

const (
	// ClassUnknown is returned for nil errors and errors outside the taxonomy.
	ClassUnknown Class = iota
	// ClassUnrecoverableSetup aborts initialization with no retry.
	ClassUnrecoverableSetup
	// ClassRecoverableRuntime destroys the instance and session; a later attempt may succeed.
	ClassRecoverableRuntime
	// ClassFrameFatal aborts the current frame only.
	ClassFrameFatal
)

// String returns the string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassUnrecoverableSetup:
		return "unrecoverable-setup"
	case ClassRecoverableRuntime:
		return "recoverable-runtime"
	case ClassFrameFatal:
		return "frame-fatal"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Setup sentinel errors
var (
	// ErrMissingCapability indicates the runtime does not advertise a required extension.
	ErrMissingCapability = New("required runtime capability missing")
	// ErrMalformedDescriptor indicates a creation descriptor the runtime rejected as invalid.
	ErrMalformedDescriptor = New("malformed creation descriptor")
	// ErrViewCountMismatch indicates the runtime reported a view count that differs from the swapchain count.
	ErrViewCountMismatch = New("view count does not match swapchain count")
)

// Runtime sentinel errors
var (
	// ErrRuntimeUnavailable indicates the runtime or headset is not reachable right now.
	ErrRuntimeUnavailable = New("xr runtime unavailable")
	// ErrInstanceLost indicates the runtime instance was lost and must be rebuilt.
	ErrInstanceLost = New("xr instance lost")
	// ErrSessionLost indicates the session was lost and must be rebuilt.
	ErrSessionLost = New("xr session lost")
	// ErrNoInstance indicates an operation that requires a live instance was called without one.
	ErrNoInstance = New("no live xr instance")
	// ErrNoSession indicates an operation that requires a session was called without one.
	ErrNoSession = New("no live xr session")
	// ErrSessionNotRunning indicates a frame was requested before the session began.
	ErrSessionNotRunning = New("xr session not running")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// XRError is the base interface for all xrloop errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type XRError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and a later
	// attempt from scratch may succeed.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// SetupError represents an initialization failure that retrying cannot fix.
//
// Example:
//
//	err := errors.NewSetupError("runtime lacks XR_KHR_opengl_enable", errors.ErrMissingCapability)
//	err = err.WithComponent("extension")
type SetupError struct {
	baseError
	Component string
}

// NewSetupError creates a new SetupError.
func NewSetupError(message string, cause error) *SetupError {
	return &SetupError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithComponent names the component that failed to initialize.
func (e *SetupError) WithComponent(component string) *SetupError {
	e.Component = component
	return e
}

// Error returns the formatted error message.
func (e *SetupError) Error() string {
	prefix := "setup error"
	if e.Component != "" {
		prefix = fmt.Sprintf("setup error [%s]", e.Component)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SetupError) Is(target error) bool {
	if _, ok := target.(*SetupError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// RuntimeError represents a native runtime call that returned a failure code.
//
// Example:
//
//	err := errors.NewRuntimeError("xrCreateInstance", -2, "XR_ERROR_RUNTIME_FAILURE")
//	fmt.Println(err) // "xrCreateInstance: XR_ERROR_RUNTIME_FAILURE (code -2)"
type RuntimeError struct {
	baseError
	Op   string
	Code int32
}

// NewRuntimeError creates a new RuntimeError. The message is the runtime's
// own description of the code when one was available.
func NewRuntimeError(op string, code int32, message string) *RuntimeError {
	return &RuntimeError{
		baseError: baseError{
			message:    message,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Op:   op,
		Code: code,
	}
}

// WithCause attaches a sentinel describing the failure class.
// Wrapping ErrRuntimeUnavailable, ErrInstanceLost or ErrSessionLost marks
// the error retryable.
func (e *RuntimeError) WithCause(cause error) *RuntimeError {
	e.cause = cause
	if errors.Is(cause, ErrRuntimeUnavailable) || errors.Is(cause, ErrInstanceLost) || errors.Is(cause, ErrSessionLost) {
		e.retryable = true
		e.severity = SeverityWarning
	}
	return e
}

// WithSeverity sets the error severity.
func (e *RuntimeError) WithSeverity(s Severity) *RuntimeError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *RuntimeError) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.message)
	sb.WriteString(fmt.Sprintf(" (code %d)", e.Code))
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

// Is checks if this error matches the target.
func (e *RuntimeError) Is(target error) bool {
	if _, ok := target.(*RuntimeError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SessionError represents errors related to session bring-up and state handling.
//
// Example:
//
//	err := errors.NewSessionError("failed to create swapchains", cause).WithSessionID(id)
type SessionError struct {
	baseError
	SessionID string
	State     string
}

// NewSessionError creates a new SessionError.
// The error inherits retryability from its cause.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  IsRetryable(cause),
			userFacing: true,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// WithState adds the session state to the error context.
func (e *SessionError) WithState(state string) *SessionError {
	e.State = state
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *SessionError) WithRetryable(r bool) *SessionError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}

	prefix := "session error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("session error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// FrameError represents a failure inside one frame attempt.
//
// Example:
//
//	err := errors.NewFrameError("acquire", cause).WithFrame(42).WithEye(1)
//	fmt.Println(err) // "frame error [frame=42, eye=1, stage=acquire]: ..."
type FrameError struct {
	baseError
	Frame uint64
	Eye   int
	Stage string
}

// NewFrameError creates a new FrameError for the given protocol stage.
func NewFrameError(stage string, cause error) *FrameError {
	return &FrameError{
		baseError: baseError{
			message:    "frame aborted",
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: false,
		},
		Eye:   -1,
		Stage: stage,
	}
}

// WithFrame adds the frame index to the error context.
func (e *FrameError) WithFrame(frame uint64) *FrameError {
	e.Frame = frame
	return e
}

// WithEye adds the eye index to the error context.
func (e *FrameError) WithEye(eye int) *FrameError {
	e.Eye = eye
	return e
}

// Error returns the formatted error message.
func (e *FrameError) Error() string {
	parts := []string{fmt.Sprintf("frame=%d", e.Frame)}
	if e.Eye >= 0 {
		parts = append(parts, fmt.Sprintf("eye=%d", e.Eye))
	}
	if e.Stage != "" {
		parts = append(parts, fmt.Sprintf("stage=%s", e.Stage))
	}
	prefix := fmt.Sprintf("frame error [%s]", strings.Join(parts, ", "))
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *FrameError) Is(target error) bool {
	if _, ok := target.(*FrameError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("near clip must be positive").WithField("near").WithValue(0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation error")
	if e.Field != "" {
		sb.WriteString(fmt.Sprintf(" [%s]", e.Field))
	}
	sb.WriteString(": ")
	sb.WriteString(e.message)
	if e.Value != nil {
		sb.WriteString(fmt.Sprintf(" (got: %v)", e.Value))
	}
	return sb.String()
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// Classify maps an error onto the failure taxonomy.
//
// Setup errors and wrapped ErrMissingCapability / ErrMalformedDescriptor /
// ErrViewCountMismatch are unrecoverable. Retryable errors (runtime
// unavailable, instance or session lost) are recoverable. Frame errors and
// any other runtime call failure are frame-fatal.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	var setupErr *SetupError
	if As(err, &setupErr) ||
		Is(err, ErrMissingCapability) ||
		Is(err, ErrMalformedDescriptor) ||
		Is(err, ErrViewCountMismatch) {
		return ClassUnrecoverableSetup
	}

	if IsRetryable(err) {
		return ClassRecoverableRuntime
	}

	var frameErr *FrameError
	var runtimeErr *RuntimeError
	if As(err, &frameErr) || As(err, &runtimeErr) {
		return ClassFrameFatal
	}

	return ClassUnknown
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on a later attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var xrErr XRError
	if As(err, &xrErr) && xrErr.IsRetryable() {
		return true
	}

	return Is(err, ErrRuntimeUnavailable) || Is(err, ErrInstanceLost) ||
		Is(err, ErrSessionLost)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var xrErr XRError
	if As(err, &xrErr) {
		return xrErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement XRError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var xrErr XRError
	if As(err, &xrErr) {
		return xrErr.Severity()
	}

	return SeverityError
}
