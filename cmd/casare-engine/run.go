package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/casarerpa/engine/engine/durable"
	"github.com/casarerpa/engine/engine/events"
	"github.com/casarerpa/engine/engine/graph"
	"github.com/casarerpa/engine/engine/resources"
	"github.com/casarerpa/engine/engine/retry"
	"github.com/casarerpa/engine/engine/runtime"
	"github.com/casarerpa/engine/engine/variables"
	"github.com/casarerpa/engine/engine/workflow"
	"github.com/casarerpa/engine/pkg/config"
	"github.com/casarerpa/engine/pkg/logger"
	"github.com/casarerpa/engine/pkg/tplengine"
)

func runCmd() *cobra.Command {
	var maxParallel int
	var hidePartial bool
	var useDurable bool

	cmd := &cobra.Command{
		Use:   "run <workflow.json|workflow.yaml>",
		Short: "Run a workflow to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRun(cmd, args[0], maxParallel, hidePartial, useDurable)
		},
	}
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "max branches dispatched concurrently at each fan-out (0 = scheduler default)")
	cmd.Flags().BoolVar(&hidePartial, "hide-partial-outputs", false, "omit completed-node outputs from a Cancelled result")
	cmd.Flags().BoolVar(&useDurable, "durable", false, "checkpoint node completions to the configured Temporal server (see pkg/config TemporalConfig)")
	return cmd
}

func doRun(cmd *cobra.Command, path string, maxParallel int, hidePartial, useDurable bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sources := []config.Source{}
	if flagConfigFile != "" {
		sources = append(sources, config.NewYAMLFileSource(flagConfigFile))
	}
	sources = append(sources, config.NewEnvSource("CASARE_"))
	cfg, err := config.NewService().Load(ctx, sources...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx = logger.ContextWithLogger(ctx, logger.NewLogger(&logger.Config{Level: logger.LogLevel(cfg.Runtime.LogLevel)}))

	registry := newRegistry()
	wf, err := loadWorkflow(path, registry)
	if err != nil {
		return err
	}

	cache, err := variables.NewRistrettoCache(cfg.Variables.CacheMaxEntries)
	if err != nil {
		return fmt.Errorf("building variable cache: %w", err)
	}
	store := variables.New(tplengine.NewEngine(tplengine.FormatText), cache, initialVariables(wf))

	// No concrete pool factories are wired here: Browser/HTTP/Database
	// handle creation belongs to the external action library. A node
	// declaring a resource_kind against an empty-capacity manager fails to
	// acquire, which is the correct behavior for a deployment that hasn't
	// wired that resource in.
	resourceMgr, err := resources.NewManager(map[resources.Kind]int{}, map[resources.Kind]resources.Factory{}, nil)
	if err != nil {
		return fmt.Errorf("building resource manager: %w", err)
	}

	bus := events.New(cfg.Events.BusCapacity, nil)
	eng := workflow.NewEngine(resourceMgr, bus)

	blocking := resources.NewBlockingPool(cfg.Resources.BlockingWorkers)
	defer blocking.Close()

	breakers := retry.NewBreakerRegistry(retry.DefaultBreakerConfig())
	rt, err := runtime.New("pending", wf, registry, store,
		runtime.WithResources(resourceMgr), runtime.WithEvents(bus), runtime.WithBreakers(breakers),
		runtime.WithBlockingPool(blocking),
		runtime.WithSubWorkflows(newDirWorkflowLoader(path, registry)))
	if err != nil {
		return fmt.Errorf("building node runner: %w", err)
	}

	run, resultCh, err := eng.Start(ctx, wf, rt.GraphRunner(), workflow.RunOptions{
		MaxParallel:        maxParallel,
		HidePartialOutputs: hidePartial,
	})
	if err != nil {
		return fmt.Errorf("starting run: %w", err)
	}

	if err := os.MkdirAll(flagRunDir, 0o755); err != nil {
		return fmt.Errorf("preparing run directory: %w", err)
	}
	if err := writePidfile(flagRunDir, run.ID()); err != nil {
		return err
	}
	defer removePidfile(flagRunDir)

	eventsFile, err := os.Create(filepath.Join(flagRunDir, run.ID()+".events.ndjson"))
	if err != nil {
		return fmt.Errorf("opening events log: %w", err)
	}
	defer eventsFile.Close()

	if useDurable {
		durableStore, err := durable.NewTemporalStore(cfg.Temporal.HostPort, cfg.Temporal.Namespace, cfg.Temporal.TaskQueue)
		if err != nil {
			return fmt.Errorf("connecting durable checkpoint store: %w", err)
		}
		defer durableStore.Close()
		go durable.NewRecorder(durableStore, eventsFile).Consume(ctx, bus)
	} else {
		go tailBusToFile(bus, eventsFile)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGUSR1:
				_ = run.Pause()
			case syscall.SIGUSR2:
				_ = run.Resume()
			case syscall.SIGINT, syscall.SIGTERM:
				run.Cancel()
			}
		}
	}()

	result := <-resultCh
	encoded, _ := json.MarshalIndent(result, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	if result.Status == workflow.StatusFailed {
		return fmt.Errorf("run %s failed: %w", result.RunID, result.Err)
	}
	return nil
}

// initialVariables seeds the variable store from a workflow document's
// declared variable defaults.
func initialVariables(wf *graph.Workflow) map[string]any {
	vars := make(map[string]any, len(wf.Variables))
	for _, v := range wf.Variables {
		vars[v.Name] = v.Value
	}
	return vars
}

func tailBusToFile(bus *events.Bus, f *os.File) {
	enc := json.NewEncoder(f)
	for ev := range bus.Subscribe() {
		_ = enc.Encode(ev)
	}
}
