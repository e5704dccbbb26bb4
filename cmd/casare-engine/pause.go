package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
)

func pauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the run tracked in --run-dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, runID, err := readPidfile(flagRunDir)
			if err != nil {
				return err
			}
			if err := signalRun(pid, syscall.SIGUSR1); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pause requested for run %s\n", runID)
			return nil
		},
	}
}

func signalRun(pid int, sig os.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding run process: %w", err)
	}
	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("signaling run process: %w", err)
	}
	return nil
}
