package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// pidfilePath is the well-known location pause/resume/cancel/events read to
// find the running process, since this binary has no listening socket of
// its own to address a run by.
func pidfilePath(runDir string) string {
	return filepath.Join(runDir, "run.pid")
}

func writePidfile(runDir, runID string) error {
	content := fmt.Sprintf("%d\n%s\n", os.Getpid(), runID)
	return os.WriteFile(pidfilePath(runDir), []byte(content), 0o644)
}

func removePidfile(runDir string) {
	_ = os.Remove(pidfilePath(runDir))
}

// readPidfile returns the PID and run ID recorded by the run currently
// using runDir (the run ID is empty if the pidfile has no second line).
func readPidfile(runDir string) (int, string, error) {
	raw, err := os.ReadFile(pidfilePath(runDir))
	if err != nil {
		return 0, "", fmt.Errorf("reading pidfile: %w", err)
	}
	lines := strings.SplitN(strings.TrimSpace(string(raw)), "\n", 2)
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return 0, "", fmt.Errorf("malformed pidfile: %w", err)
	}
	runID := ""
	if len(lines) > 1 {
		runID = strings.TrimSpace(lines[1])
	}
	return pid, runID, nil
}
