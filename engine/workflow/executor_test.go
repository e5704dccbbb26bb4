package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casarerpa/engine/engine/graph"
	"github.com/casarerpa/engine/engine/resources"
)

type fakeResolver struct{ ports map[string]graph.PortSet }

func (r fakeResolver) Ports(typeName string, _ map[string]any) (graph.PortSet, error) {
	return r.ports[typeName], nil
}

func execPort(name string, dir graph.Direction) graph.PortDef {
	return graph.PortDef{Name: name, Kind: graph.PortExecution, Direction: dir}
}

func linearWorkflow(t *testing.T) *graph.Workflow {
	t.Helper()
	doc := &graph.Document{
		ID: "wf", Name: "wf",
		Nodes: map[string]graph.NodeRecord{
			"start": {ID: "start", TypeName: "Start"},
			"a":     {ID: "a", TypeName: "Noop"},
			"end":   {ID: "end", TypeName: "End"},
		},
		Connections: []graph.Connection{
			{Source: graph.PortRef{NodeID: "start", Port: "out"}, Target: graph.PortRef{NodeID: "a", Port: "in"}},
			{Source: graph.PortRef{NodeID: "a", Port: "out"}, Target: graph.PortRef{NodeID: "end", Port: "in"}},
		},
	}
	resolver := fakeResolver{ports: map[string]graph.PortSet{
		"Noop": {Inputs: []graph.PortDef{execPort("in", graph.DirIn)}, Outputs: []graph.PortDef{execPort("out", graph.DirOut)}},
	}}
	wf, err := graph.FromDocument(doc, resolver)
	require.NoError(t, err)
	return wf
}

// stubGraphRunner replays linearWorkflow's fixed Start -> a -> end chain,
// calling hook for each node and honoring the run's pause state and the
// completed-node callback the way engine/runtime's real interpreter does.
func stubGraphRunner(hook func(ctx context.Context, nodeID string) error) GraphRunner {
	chain := map[string]string{"start": "a", "a": "end", "end": ""}
	return func(ctx context.Context, startNodeID string) error {
		nodeID := startNodeID
		for nodeID != "" {
			if rs, ok := RunStateFromContext(ctx); ok {
				if !rs.WaitIfPaused(ctx) {
					return ctx.Err()
				}
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := hook(ctx, nodeID); err != nil {
				return err
			}
			if done, ok := OnNodeDoneFromContext(ctx); ok {
				done(nodeID)
			}
			nodeID = chain[nodeID]
		}
		return nil
	}
}

func TestCanTransition(t *testing.T) {
	t.Run("Should allow the documented transitions", func(t *testing.T) {
		assert.True(t, canTransition(StatusPending, StatusRunning))
		assert.True(t, canTransition(StatusRunning, StatusPaused))
		assert.True(t, canTransition(StatusPaused, StatusRunning))
		assert.True(t, canTransition(StatusRunning, StatusCompleted))
	})

	t.Run("Should reject transitions out of terminal states", func(t *testing.T) {
		assert.False(t, canTransition(StatusCompleted, StatusRunning))
		assert.False(t, canTransition(StatusFailed, StatusRunning))
		assert.False(t, canTransition(StatusCancelled, StatusRunning))
	})

	t.Run("Should reject skipping straight from Pending to Completed", func(t *testing.T) {
		assert.False(t, canTransition(StatusPending, StatusCompleted))
	})
}

func TestEngine_Start(t *testing.T) {
	t.Run("Should run every node to completion and report Completed", func(t *testing.T) {
		wf := linearWorkflow(t)
		e := NewEngine(nil, nil)
		var mu sync.Mutex
		var ran []string
		run, resultCh, err := e.Start(context.Background(), wf, stubGraphRunner(func(_ context.Context, nodeID string) error {
			mu.Lock()
			ran = append(ran, nodeID)
			mu.Unlock()
			return nil
		}), RunOptions{})
		require.NoError(t, err)
		require.NotNil(t, run)

		select {
		case result := <-resultCh:
			assert.Equal(t, StatusCompleted, result.Status)
			assert.NoError(t, result.Err)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for run result")
		}
		assert.Equal(t, []string{"start", "a", "end"}, ran)
		assert.Equal(t, StatusCompleted, run.Status())
	})

	t.Run("Should report Failed and surface the node error", func(t *testing.T) {
		wf := linearWorkflow(t)
		e := NewEngine(nil, nil)
		boom := errors.New("boom")
		_, resultCh, err := e.Start(context.Background(), wf, stubGraphRunner(func(_ context.Context, nodeID string) error {
			if nodeID == "a" {
				return boom
			}
			return nil
		}), RunOptions{})
		require.NoError(t, err)

		result := <-resultCh
		assert.Equal(t, StatusFailed, result.Status)
		require.ErrorIs(t, result.Err, boom)
	})

	t.Run("Should report Cancelled with partial outputs when the caller cancels mid-run", func(t *testing.T) {
		wf := linearWorkflow(t)
		e := NewEngine(nil, nil)
		ctx, cancel := context.WithCancel(context.Background())
		_, resultCh, err := e.Start(ctx, wf, stubGraphRunner(func(_ context.Context, nodeID string) error {
			if nodeID == "start" {
				cancel()
				time.Sleep(10 * time.Millisecond)
			}
			return nil
		}), RunOptions{})
		require.NoError(t, err)

		result := <-resultCh
		assert.Equal(t, StatusCancelled, result.Status)
		assert.Contains(t, result.PartialOutputs, "start")
	})

	t.Run("Should omit partial outputs when HidePartialOutputs is set", func(t *testing.T) {
		wf := linearWorkflow(t)
		e := NewEngine(nil, nil)
		ctx, cancel := context.WithCancel(context.Background())
		_, resultCh, err := e.Start(ctx, wf, stubGraphRunner(func(_ context.Context, nodeID string) error {
			if nodeID == "start" {
				cancel()
				time.Sleep(10 * time.Millisecond)
			}
			return nil
		}), RunOptions{HidePartialOutputs: true})
		require.NoError(t, err)

		result := <-resultCh
		assert.Equal(t, StatusCancelled, result.Status)
		assert.Nil(t, result.PartialOutputs)
	})

	t.Run("Should pause dispatch and resume on demand", func(t *testing.T) {
		wf := linearWorkflow(t)
		e := NewEngine(nil, nil)
		var mu sync.Mutex
		var ran []string
		startReached := make(chan struct{})
		proceed := make(chan struct{})
		run, resultCh, err := e.Start(context.Background(), wf, stubGraphRunner(func(_ context.Context, nodeID string) error {
			if nodeID == "start" {
				close(startReached)
				<-proceed
			}
			mu.Lock()
			ran = append(ran, nodeID)
			mu.Unlock()
			return nil
		}), RunOptions{})
		require.NoError(t, err)

		<-startReached
		require.NoError(t, run.Pause())
		close(proceed)
		time.Sleep(30 * time.Millisecond)
		mu.Lock()
		progress := len(ran)
		mu.Unlock()
		assert.Equal(t, 1, progress, "no further node should dispatch while paused")
		assert.Equal(t, StatusPaused, run.Status())

		require.NoError(t, run.Resume())
		select {
		case result := <-resultCh:
			assert.Equal(t, StatusCompleted, result.Status)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for resumed run to finish")
		}
	})

	t.Run("Should reserve resources a node declares before dispatch begins", func(t *testing.T) {
		doc := &graph.Document{
			ID: "wf", Name: "wf",
			Nodes: map[string]graph.NodeRecord{
				"start":  {ID: "start", TypeName: "Start"},
				"browse": {ID: "browse", TypeName: "Noop", Config: map[string]any{"resource_kind": "Browser"}},
				"end":    {ID: "end", TypeName: "End"},
			},
			Connections: []graph.Connection{
				{Source: graph.PortRef{NodeID: "start", Port: "out"}, Target: graph.PortRef{NodeID: "browse", Port: "in"}},
				{Source: graph.PortRef{NodeID: "browse", Port: "out"}, Target: graph.PortRef{NodeID: "end", Port: "in"}},
			},
		}
		resolver := fakeResolver{ports: map[string]graph.PortSet{
			"Noop": {Inputs: []graph.PortDef{execPort("in", graph.DirIn)}, Outputs: []graph.PortDef{execPort("out", graph.DirOut)}},
		}}
		wf, err := graph.FromDocument(doc, resolver)
		require.NoError(t, err)

		mgr, err := resources.NewManager(
			map[resources.Kind]int{},
			map[resources.Kind]resources.Factory{},
			nil,
		)
		require.NoError(t, err)
		e := NewEngine(mgr, nil)

		run, resultCh, err := e.Start(context.Background(), wf, stubGraphRunner(func(context.Context, string) error { return nil }), RunOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, mgr.Reserved(run.ID(), resources.KindBrowser))
		<-resultCh
	})
}
