package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalString(t *testing.T) {
	assert.Equal(t, "SIGKILL", SIGKILL.String())
	assert.Equal(t, "SIGCHLD", SIGCHLD.String())
	assert.Equal(t, "signal 99", Signal(99).String())
}

func TestDefaultDispositions(t *testing.T) {
	tests := []struct {
		sig  Signal
		want Disposition
	}{
		{SIGHUP, DispositionTerminate},
		{SIGINT, DispositionTerminate},
		{SIGKILL, DispositionTerminate},
		{SIGTERM, DispositionTerminate},
		{SIGUSR1, DispositionTerminate},
		{SIGCHLD, DispositionIgnore},
		{SIGCONT, DispositionContinue},
		{SIGSTOP, DispositionStop},
		{SIGTSTP, DispositionStop},
		{SIGTTIN, DispositionStop},
		{SIGQUIT, DispositionCore},
		{SIGSEGV, DispositionCore},
		{SIGFPE, DispositionCore},
		{Signal(99), DispositionTerminate},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultDisposition(tt.sig), "%v", tt.sig)
	}
}

func TestSignalSetRefusesKillStop(t *testing.T) {
	set := make(SignalSet)
	set.Add(SIGTERM)
	set.Add(SIGKILL)
	set.Add(SIGSTOP)

	assert.True(t, set.Contains(SIGTERM))
	assert.False(t, set.Contains(SIGKILL))
	assert.False(t, set.Contains(SIGSTOP))

	set.Remove(SIGTERM)
	assert.False(t, set.Contains(SIGTERM))
}
