package xr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	xrerrors "github.com/Iron-Ham/xrloop/internal/errors"
)

func TestResult_String(t *testing.T) {
	assert.Equal(t, "XR_SUCCESS", Success.String())
	assert.Equal(t, "XR_ERROR_INSTANCE_LOST", ErrorInstanceLost.String())
	assert.Equal(t, "XR_UNKNOWN_FAILURE_999", Result(-999).String())
	assert.Equal(t, "XR_UNKNOWN_SUCCESS_77", Result(77).String())
}

func TestResult_SucceededFailed(t *testing.T) {
	assert.True(t, Success.Succeeded())
	assert.True(t, EventUnavailable.Succeeded())
	assert.True(t, ErrorHandleInvalid.Failed())
	assert.False(t, TimeoutExpired.Failed())
}

func TestResult_Sentinel(t *testing.T) {
	tests := []struct {
		result Result
		want   error
	}{
		{ErrorRuntimeFailure, xrerrors.ErrRuntimeUnavailable},
		{ErrorRuntimeUnavailable, xrerrors.ErrRuntimeUnavailable},
		{ErrorFormFactorUnavailable, xrerrors.ErrRuntimeUnavailable},
		{ErrorInstanceLost, xrerrors.ErrInstanceLost},
		{ErrorSessionLost, xrerrors.ErrSessionLost},
		{ErrorExtensionNotPresent, xrerrors.ErrMalformedDescriptor},
		{ErrorHandleInvalid, nil},
		{Success, nil},
	}

	for _, tt := range tests {
		t.Run(tt.result.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Sentinel())
		})
	}
}

func TestVersion(t *testing.T) {
	v := MakeVersion(1, 0, 34)
	assert.Equal(t, uint32(1), v.Major())
	assert.Equal(t, uint32(0), v.Minor())
	assert.Equal(t, uint32(34), v.Patch())
	assert.Equal(t, "1.0.34", v.String())
}

func TestValidityFlags(t *testing.T) {
	assert.True(t, ViewState{Flags: ViewStatePositionValid | ViewStateOrientationValid}.Valid())
	assert.False(t, ViewState{Flags: ViewStatePositionValid}.Valid())
	assert.False(t, ViewState{Flags: ViewStateOrientationValid | ViewStateOrientationTracked}.Valid())

	assert.True(t, SpaceLocation{Flags: SpaceLocationPositionValid | SpaceLocationOrientationValid}.Valid())
	assert.False(t, SpaceLocation{Flags: SpaceLocationOrientationValid}.Valid())
}

func TestSessionState_String(t *testing.T) {
	assert.Equal(t, "focused", SessionStateFocused.String())
	assert.Equal(t, "exiting", SessionStateExiting.String())
	assert.Equal(t, "unknown", SessionState(42).String())
}

func TestResult_Err(t *testing.T) {
	assert.NoError(t, Success.Err("xrWaitFrame"))
	assert.NoError(t, SessionLossPending.Err("xrWaitFrame"))

	err := ErrorRuntimeFailure.Err("xrCreateInstance")
	assert.EqualError(t, err, "xrCreateInstance: XR method returned -2 (code -2): xr runtime unavailable")
	assert.ErrorIs(t, err, xrerrors.ErrRuntimeUnavailable)
	assert.True(t, xrerrors.IsRetryable(err))

	err = ErrorHandleInvalid.Err("xrBeginFrame")
	assert.False(t, xrerrors.IsRetryable(err))
	assert.Equal(t, xrerrors.ClassFrameFatal, xrerrors.Classify(err))
}
