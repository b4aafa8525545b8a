package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAcceptsLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger := New(level, false)
		require.NotNil(t, logger)
	}
}

func TestNewUnknownLevelFallsBack(t *testing.T) {
	logger := New("chatty", false)
	require.NotNil(t, logger)
	// Must not panic when used.
	logger.Infow("hello", "k", "v")
}

func TestNamed(t *testing.T) {
	root := New("info", false)
	sub := Named(root, "memory")
	require.NotNil(t, sub)
	sub.Debugw("quiet")

	assert.NotNil(t, Named(nil, "memory"), "nil root yields a usable no-op logger")
}
