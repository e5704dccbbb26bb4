package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

func eventsCmd() *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the event log for the run tracked in --run-dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, runID, err := readPidfile(flagRunDir)
			if err != nil {
				return err
			}
			path := filepath.Join(flagRunDir, runID+".events.ndjson")
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening events log: %w", err)
			}
			defer f.Close()
			return tailFile(cmd.OutOrStdout(), f, follow, cmd.Context().Done())
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep reading as new events are appended")
	return cmd
}

// tailFile streams f's contents line by line. With follow set it polls for
// new lines appended by a still-running process instead of stopping at EOF.
func tailFile(w io.Writer, f *os.File, follow bool, done <-chan struct{}) error {
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			fmt.Fprint(w, line)
		}
		if err == nil {
			continue
		}
		if err != io.EOF {
			return fmt.Errorf("reading events log: %w", err)
		}
		if !follow {
			return nil
		}
		select {
		case <-done:
			return nil
		case <-time.After(500 * time.Millisecond):
		}
	}
}
