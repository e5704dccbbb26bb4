// Command casare-engine is the reference CLI trigger for the workflow
// execution core: run/pause/resume/cancel/events subcommands over
// engine/workflow.Engine, exactly the way an external trigger collaborator
// (a scheduler, a webhook receiver) would drive it.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
