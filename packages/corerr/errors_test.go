package corerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesKind(t *testing.T) {
	err := New(NotFound, "session not found")
	require.True(t, Is(err, NotFound))
	require.False(t, Is(err, IllegalState))
}

func TestIsFalseForPlainError(t *testing.T) {
	require.False(t, Is(errors.New("plain"), NotFound))
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(InvalidArgument, "bad config", cause)
	require.ErrorIs(t, err, cause)
	require.True(t, Is(err, InvalidArgument))
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(NotFound, "node %s not found", "node-1")
	require.Contains(t, err.Error(), "node-1")
	require.Contains(t, err.Error(), string(NotFound))
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(IllegalState, "cannot start", cause)
	require.Contains(t, err.Error(), "boom")
	require.Contains(t, err.Error(), "cannot start")
}
