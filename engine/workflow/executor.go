// Package workflow implements the top-level Workflow Executor: the
// Pending/Running/Paused/Completed/Failed/Cancelled run lifecycle that
// compiles a workflow, drives its GraphRunner, and tears down resources.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/casarerpa/engine/engine/core"
	"github.com/casarerpa/engine/engine/events"
	"github.com/casarerpa/engine/engine/graph"
	"github.com/casarerpa/engine/engine/resources"
	"github.com/casarerpa/engine/engine/scheduler"
	"github.com/casarerpa/engine/pkg/logger"
)

// DefaultTimeout bounds a run's total wall-clock time.
const DefaultTimeout = 10 * time.Minute

// Status is the run state machine.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusRunning   Status = "Running"
	StatusPaused    Status = "Paused"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)

var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusPaused, StatusCompleted, StatusFailed, StatusCancelled},
	StatusPaused:    {StatusRunning, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

func canTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// GraphRunner recursively executes a workflow's execution-edge graph
// starting at startNodeID (always the workflow's Start node) through to
// its natural end, handling every control-flow category itself -- single-
// pass routing (If/Switch/Merge) as well as the re-entrant ones (loops,
// Try/Catch/Finally, Retry blocks, SubWorkflowCall) that need to revisit
// the same node id across iterations or attempts. Supplied by the binary
// wiring engine/node + engine/control together; kept as a function type
// here so engine/workflow never imports engine/runtime directly.
type GraphRunner func(ctx context.Context, startNodeID string) error

// RunOptions configures one Run call.
type RunOptions struct {
	Timeout            time.Duration
	MaxParallel        int
	HidePartialOutputs bool
}

// RunResult is the terminal outcome of a run.
type RunResult struct {
	RunID          string
	Status         Status
	Err            error
	PartialOutputs map[string]any // populated only on Cancelled, unless HidePartialOutputs
}

// Run is one in-flight or completed workflow execution.
type Run struct {
	mu           sync.Mutex
	id           string
	wf           *graph.Workflow
	status       Status
	bus          *events.Bus
	cancel       context.CancelFunc
	schedState   *scheduler.RunState
	completedOut map[string]any
}

// Engine ties together the workflow document, resource manager, and event
// bus construction needed to start runs.
type Engine struct {
	resourceMgr *resources.Manager
	bus         *events.Bus
}

// NewEngine builds an Engine. Either argument may be nil to run without
// pooled resources or without an event bus.
func NewEngine(resourceMgr *resources.Manager, bus *events.Bus) *Engine {
	if bus == nil {
		bus = events.New(0, nil)
	}
	return &Engine{resourceMgr: resourceMgr, bus: bus}
}

// resourceKindHint reads the resource kind a node declares wanting reserved
// at run start, e.g. a BrowserOpen node's config carries
// `"resource_kind": "Browser"`. Nodes that don't touch pooled resources
// simply omit the key.
func resourceKindHint(n graph.NodeRecord) (resources.Kind, bool) {
	v, ok := n.Config["resource_kind"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return resources.Kind(s), true
}

// reserveResources scans wf for nodes that declare a pooled resource kind
// and records the run's intended usage against the manager up front, so
// CheckQuota-style admission decisions can see the whole run's footprint
// rather than discovering it one Acquire at a time.
func reserveResources(mgr *resources.Manager, runID string, wf *graph.Workflow) {
	if mgr == nil {
		return
	}
	counts := map[resources.Kind]int{}
	for _, n := range wf.Nodes {
		if kind, ok := resourceKindHint(n); ok {
			counts[kind]++
		}
	}
	for kind, count := range counts {
		mgr.Reserve(runID, kind, count)
	}
}

// Start validates wf's execution graph is acyclic, reserves any resources
// its nodes declare, and begins executing it. runner walks the graph from
// Start to completion; Start drives the lifecycle and pause/cancel
// signaling around it. The returned *Run supports Pause, Resume, and
// Cancel while the run is in flight.
func (e *Engine) Start(ctx context.Context, wf *graph.Workflow, runner GraphRunner, opts RunOptions) (*Run, <-chan *RunResult, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	runID := core.MustNewID().String()
	log := logger.FromContext(ctx).With("run_id", runID, "workflow_id", wf.ID)

	// scheduler.Compile is retained purely as an upfront structural sanity
	// check (the execution graph, minus recognized back-edges, must be a
	// DAG); the live dispatch below walks wf's edges directly rather than
	// the level Plan it returns.
	if _, err := scheduler.Compile(wf); err != nil {
		return nil, nil, err
	}
	startID, ok := wf.StartNodeID()
	if !ok {
		return nil, nil, core.NewError(fmt.Errorf("workflow %q has no Start node", wf.ID), core.ErrWorkflowValidation, nil)
	}
	reserveResources(e.resourceMgr, runID, wf)

	runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	runCtx = context.WithValue(runCtx, runIDKey{}, runID)
	runCtx, runSpan := events.StartWorkflowSpan(runCtx, runID, wf.ID)

	run := &Run{
		id:           runID,
		wf:           wf,
		status:       StatusPending,
		bus:          e.bus,
		cancel:       cancel,
		schedState:   scheduler.NewRunState(),
		completedOut: map[string]any{},
	}
	runCtx = context.WithValue(runCtx, runStateKey{}, run.schedState)
	runCtx = context.WithValue(runCtx, maxParallelKey{}, opts.MaxParallel)
	runCtx = context.WithValue(runCtx, onNodeDoneKey{}, func(nodeID string) {
		run.mu.Lock()
		run.completedOut[nodeID] = true
		run.mu.Unlock()
	})
	if err := run.transition(StatusRunning); err != nil {
		cancel()
		return nil, nil, err
	}

	e.bus.Publish(runCtx, events.NewEvent(events.KindWorkflowStarted, runID, "", map[string]any{"workflow_id": wf.ID}))
	log.Info("workflow run started")

	resultCh := make(chan *RunResult, 1)
	go func() {
		defer cancel()
		defer runSpan.End()
		defer func() {
			if e.resourceMgr != nil {
				e.resourceMgr.ReleaseRun(runID)
			}
		}()

		runErr := runner(runCtx, startID)

		result := &RunResult{RunID: runID}
		switch {
		case runErr == nil:
			_ = run.transition(StatusCompleted)
			result.Status = StatusCompleted
			e.bus.Publish(runCtx, events.NewEvent(events.KindWorkflowCompleted, runID, "", nil))
		case runCtx.Err() != nil && ctx.Err() != nil:
			_ = run.transition(StatusCancelled)
			result.Status = StatusCancelled
			result.Err = core.NewError(fmt.Errorf("run %s cancelled", runID), core.ErrCancelled, nil)
			runSpan.SetStatus(codes.Error, result.Err.Error())
			if !opts.HidePartialOutputs {
				run.mu.Lock()
				result.PartialOutputs = make(map[string]any, len(run.completedOut))
				for nodeID := range run.completedOut {
					result.PartialOutputs[nodeID] = true
				}
				run.mu.Unlock()
			}
			e.bus.Publish(runCtx, events.NewEvent(events.KindCancelRequested, runID, "", nil))
		default:
			_ = run.transition(StatusFailed)
			result.Status = StatusFailed
			result.Err = runErr
			runSpan.RecordError(runErr)
			runSpan.SetStatus(codes.Error, runErr.Error())
			e.bus.Publish(runCtx, events.NewEvent(events.KindWorkflowFailed, runID, "", map[string]any{"error": runErr.Error()}))
		}
		log.Info("workflow run finished", "status", result.Status)
		resultCh <- result
		close(resultCh)
	}()

	return run, resultCh, nil
}

func (r *Run) transition(to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !canTransition(r.status, to) {
		return core.NewError(
			fmt.Errorf("invalid transition from %s to %s", r.status, to),
			core.ErrInternal,
			map[string]any{"from": r.status, "to": to},
		)
	}
	r.status = to
	return nil
}

// Status returns the run's current status.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Pause transitions the run to Paused and blocks the graph walk from
// dispatching further nodes; nodes already in flight run to completion.
func (r *Run) Pause() error {
	if err := r.transition(StatusPaused); err != nil {
		return err
	}
	r.schedState.Pause()
	return nil
}

// Resume transitions a Paused run back to Running and wakes the paused
// graph walk.
func (r *Run) Resume() error {
	if err := r.transition(StatusRunning); err != nil {
		return err
	}
	r.schedState.Resume()
	return nil
}

// Cancel cancels the run's context: the graph walk dispatches no further
// node, and nodes already in flight see the cancelled context.
func (r *Run) Cancel() {
	r.cancel()
}

// ID returns the run's identifier.
func (r *Run) ID() string { return r.id }

type runIDKey struct{}
type runStateKey struct{}
type maxParallelKey struct{}
type onNodeDoneKey struct{}

// RunIDFromContext returns the run ID carried on a node's context, so a
// GraphRunner implementation (e.g. engine/runtime) can tag execctx.Context
// and emitted events without needing it threaded through its own
// constructor ahead of Start assigning it.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok
}

// RunStateFromContext returns the run's pause/resume state, so a
// GraphRunner can block between node dispatches while the run is Paused
// the same way the scheduler's level dispatch used to.
func RunStateFromContext(ctx context.Context) (*scheduler.RunState, bool) {
	rs, ok := ctx.Value(runStateKey{}).(*scheduler.RunState)
	return rs, ok
}

// MaxParallelFromContext returns the run's configured fan-out bound
// (RunOptions.MaxParallel), 0 meaning the caller should apply its own
// default.
func MaxParallelFromContext(ctx context.Context) int {
	n, _ := ctx.Value(maxParallelKey{}).(int)
	return n
}

// OnNodeDoneFromContext returns the callback a GraphRunner invokes after
// each node it actually executes completes successfully, so Start can
// track completed-node output for a Cancelled run's PartialOutputs.
func OnNodeDoneFromContext(ctx context.Context) (func(nodeID string), bool) {
	fn, ok := ctx.Value(onNodeDoneKey{}).(func(string))
	return fn, ok
}
