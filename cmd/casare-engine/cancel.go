package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
)

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the run tracked in --run-dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, runID, err := readPidfile(flagRunDir)
			if err != nil {
				return err
			}
			if err := signalRun(pid, syscall.SIGTERM); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancel requested for run %s\n", runID)
			return nil
		},
	}
}
