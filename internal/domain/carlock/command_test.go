package carlock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseCommand checks normalisation and rejection of unknown commands.
func TestParseCommand(t *testing.T) {
	t.Parallel()

	cases := map[string]Command{
		"lock":           CommandLock,
		" UNLOCK ":       CommandUnlock,
		"simulate_on":    CommandSimulateOn,
		"Simulate_Off\n": CommandSimulateOff,
	}
	for in, want := range cases {
		got, ok := ParseCommand(in)
		require.True(t, ok, in)
		require.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "open", "simulate"} {
		_, ok := ParseCommand(in)
		require.False(t, ok, in)
	}
}

// TestCommand_RelayTarget maps lock to inactive and unlock to active.
func TestCommand_RelayTarget(t *testing.T) {
	t.Parallel()

	active, ok := CommandLock.RelayTarget()
	require.True(t, ok)
	require.False(t, active)

	active, ok = CommandUnlock.RelayTarget()
	require.True(t, ok)
	require.True(t, active)

	_, ok = CommandSimulateOn.RelayTarget()
	require.False(t, ok)

	require.True(t, CommandSimulateOff.IsSimulation())
	require.False(t, CommandLock.IsSimulation())
}
