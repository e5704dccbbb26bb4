package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
)

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume the paused run tracked in --run-dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, runID, err := readPidfile(flagRunDir)
			if err != nil {
				return err
			}
			if err := signalRun(pid, syscall.SIGUSR2); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resume requested for run %s\n", runID)
			return nil
		},
	}
}
