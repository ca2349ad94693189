package logx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNilPassthrough(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(cause, "dispatch")
	require.Error(t, wrapped)
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "dispatch: boom")
}

func TestErrorfReturnsFormattedError(t *testing.T) {
	err := Errorf("tool %s failed", "bash")
	require.Error(t, err)
	assert.Equal(t, "tool bash failed", err.Error())
}

func TestSetDebugTogglesGlobalFlag(t *testing.T) {
	original := IsDebugEnabled()
	defer SetDebug(original)

	SetDebug(true)
	assert.True(t, IsDebugEnabled())
	SetDebug(false)
	assert.False(t, IsDebugEnabled())
}

func TestGetComponent(t *testing.T) {
	logger := NewLogger("loop")
	assert.Equal(t, "loop", logger.GetComponent())
}
