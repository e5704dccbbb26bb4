package main

import (
	"bytes"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expectSignal registers a handler for sig on this process (pre-empting its
// default action) and asserts the command under test delivers it to our own
// pid within a short deadline.
func expectSignal(t *testing.T, sig os.Signal, runCmd func(runDir string)) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, writePidfile(dir, "run-1"))
	defer removePidfile(dir)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig)
	defer signal.Stop(ch)

	runCmd(dir)

	select {
	case got := <-ch:
		assert.Equal(t, sig, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("signal %v was not delivered", sig)
	}
}

func TestPauseCmd(t *testing.T) {
	t.Run("Should signal SIGUSR1 to the pidfile's process and print confirmation", func(t *testing.T) {
		expectSignal(t, syscall.SIGUSR1, func(runDir string) {
			flagRunDir = runDir
			cmd := pauseCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetArgs(nil)
			require.NoError(t, cmd.Execute())
			assert.Contains(t, out.String(), "pause requested for run run-1")
		})
	})
}

func TestResumeCmd(t *testing.T) {
	t.Run("Should signal SIGUSR2 to the pidfile's process and print confirmation", func(t *testing.T) {
		expectSignal(t, syscall.SIGUSR2, func(runDir string) {
			flagRunDir = runDir
			cmd := resumeCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetArgs(nil)
			require.NoError(t, cmd.Execute())
			assert.Contains(t, out.String(), "resume requested for run run-1")
		})
	})
}

func TestCancelCmd(t *testing.T) {
	t.Run("Should signal SIGTERM to the pidfile's process and print confirmation", func(t *testing.T) {
		expectSignal(t, syscall.SIGTERM, func(runDir string) {
			flagRunDir = runDir
			cmd := cancelCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetArgs(nil)
			require.NoError(t, cmd.Execute())
			assert.Contains(t, out.String(), "cancel requested for run run-1")
		})
	})
}

func TestSignalRun(t *testing.T) {
	t.Run("Should fail for a process ID that cannot be signaled", func(t *testing.T) {
		err := signalRun(-1, syscall.SIGUSR1)
		require.Error(t, err)
	})
}
