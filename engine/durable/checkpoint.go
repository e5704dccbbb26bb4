// Package durable is an optional checkpoint decorator. The default engine
// (engine/workflow, engine/runtime) never imports this package; a
// deployment that wants node-completion checkpoints surviving a process
// restart wires a Store in front of its own event consumer instead of the
// plain ndjson tail cmd/casare-engine uses by default.
//
// The engine itself stays a single-process instance, so this package talks
// to an external Temporal server purely as a checkpoint ledger, never as
// the thing actually running node logic.
package durable

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// TaskQueue is the default Temporal task queue the checkpoint worker polls,
// used when a caller's pkg/config.TemporalConfig.TaskQueue is empty.
const TaskQueue = "casare-engine-durable"

const (
	signalNodeCompleted = "node-completed"
	signalFinish        = "finish"
	queryCompleted      = "completed"
)

// Checkpoint is one run's durable progress record.
type Checkpoint struct {
	RunID     string
	Completed map[string]bool
}

// Store persists per-run node-completion checkpoints durably enough to
// survive a process restart. It does not replay or resume a run by itself;
// it only answers "what already finished" for a caller that wants to build
// resume logic on top.
type Store interface {
	// RecordCompleted durably records that nodeID finished for runID.
	RecordCompleted(ctx context.Context, runID, nodeID string) error
	// Load returns everything recorded so far for runID. A run with no
	// checkpoint history yet returns an empty, non-nil Completed map.
	Load(ctx context.Context, runID string) (*Checkpoint, error)
	// Finish marks runID's checkpoint ledger closed, letting its backing
	// storage (e.g. a Temporal workflow execution) terminate cleanly.
	// Safe to call more than once.
	Finish(ctx context.Context, runID string) error
	// Close releases the Store's own connections (client, worker).
	Close() error
}

type nodeCompletedSignal struct {
	NodeID string `json:"node_id"`
}

// CheckpointWorkflow is the Temporal workflow function TemporalStore runs
// one instance of per engine run (workflow ID = checkpointWorkflowID(runID)).
// It durably accumulates NodeCompleted signals in its own event history —
// Temporal's replay guarantees are the durability mechanism, not anything
// this package writes to disk itself — and answers QueryCompleted queries
// until a Finish signal lets it return.
func CheckpointWorkflow(ctx workflow.Context) error {
	completed := map[string]bool{}
	finished := false

	err := workflow.SetQueryHandler(ctx, queryCompleted, func() (map[string]bool, error) {
		return completed, nil
	})
	if err != nil {
		return fmt.Errorf("registering completed query handler: %w", err)
	}

	nodeCh := workflow.GetSignalChannel(ctx, signalNodeCompleted)
	finishCh := workflow.GetSignalChannel(ctx, signalFinish)

	for !finished {
		selector := workflow.NewSelector(ctx)
		selector.AddReceive(nodeCh, func(c workflow.ReceiveChannel, _ bool) {
			var sig nodeCompletedSignal
			c.Receive(ctx, &sig)
			completed[sig.NodeID] = true
		})
		selector.AddReceive(finishCh, func(c workflow.ReceiveChannel, _ bool) {
			c.Receive(ctx, nil)
			finished = true
		})
		selector.Select(ctx)
	}
	return nil
}

// TemporalStore is the Temporal-backed Store implementation: one
// long-running CheckpointWorkflow execution per engine run, signaled on
// every node completion and queried to read the set back.
type TemporalStore struct {
	client    client.Client
	worker    worker.Worker
	taskQueue string
}

// NewTemporalStore dials the Temporal server at hostPort in namespace and
// starts a worker polling
// taskQueue for CheckpointWorkflow tasks.
func NewTemporalStore(hostPort, namespace, taskQueue string) (*TemporalStore, error) {
	if taskQueue == "" {
		taskQueue = TaskQueue
	}
	c, err := client.Dial(client.Options{HostPort: hostPort, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("dialing temporal at %q: %w", hostPort, err)
	}
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(CheckpointWorkflow)
	if err := w.Start(); err != nil {
		c.Close()
		return nil, fmt.Errorf("starting checkpoint worker: %w", err)
	}
	return &TemporalStore{client: c, worker: w, taskQueue: taskQueue}, nil
}

func checkpointWorkflowID(runID string) string {
	return "casare-checkpoint-" + runID
}

func (s *TemporalStore) ensureStarted(ctx context.Context, runID string) error {
	_, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        checkpointWorkflowID(runID),
		TaskQueue: s.taskQueue,
	}, CheckpointWorkflow)
	if err == nil {
		return nil
	}
	var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &alreadyStarted) {
		// A prior process (or an earlier RecordCompleted in this one) already
		// started this run's checkpoint workflow; that's the resume case.
		return nil
	}
	return fmt.Errorf("starting checkpoint workflow for run %s: %w", runID, err)
}

// RecordCompleted implements Store.
func (s *TemporalStore) RecordCompleted(ctx context.Context, runID, nodeID string) error {
	if err := s.ensureStarted(ctx, runID); err != nil {
		return err
	}
	return s.client.SignalWorkflow(ctx, checkpointWorkflowID(runID), "", signalNodeCompleted,
		nodeCompletedSignal{NodeID: nodeID})
}

// Load implements Store.
func (s *TemporalStore) Load(ctx context.Context, runID string) (*Checkpoint, error) {
	resp, err := s.client.QueryWorkflow(ctx, checkpointWorkflowID(runID), "", queryCompleted)
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return &Checkpoint{RunID: runID, Completed: map[string]bool{}}, nil
		}
		return nil, fmt.Errorf("querying checkpoint for run %s: %w", runID, err)
	}
	var completed map[string]bool
	if err := resp.Get(&completed); err != nil {
		return nil, fmt.Errorf("decoding checkpoint for run %s: %w", runID, err)
	}
	if completed == nil {
		completed = map[string]bool{}
	}
	return &Checkpoint{RunID: runID, Completed: completed}, nil
}

// Finish implements Store.
func (s *TemporalStore) Finish(ctx context.Context, runID string) error {
	err := s.client.SignalWorkflow(ctx, checkpointWorkflowID(runID), "", signalFinish, nil)
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

// Close implements Store.
func (s *TemporalStore) Close() error {
	s.worker.Stop()
	s.client.Close()
	return nil
}
