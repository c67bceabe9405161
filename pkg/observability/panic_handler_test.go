package observability

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverPanic(t *testing.T) {
	logger := NewLogger(ErrorLevel, io.Discard)

	assert.NotPanics(t, func() {
		defer RecoverPanic(logger, "idle expiry callback")
		panic("redis gone")
	})
}

func TestMustRecover(t *testing.T) {
	assert.NoError(t, MustRecover(nil))

	err := MustRecover("boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
