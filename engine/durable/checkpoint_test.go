package durable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	temporalmocks "go.temporal.io/sdk/mocks"
	"go.temporal.io/sdk/testsuite"
)

func TestCheckpointWorkflow(t *testing.T) {
	t.Run("Should accumulate node completions and answer the completed query", func(t *testing.T) {
		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestWorkflowEnvironment()
		env.RegisterWorkflow(CheckpointWorkflow)

		env.RegisterDelayedCallback(func() {
			env.SignalWorkflow(signalNodeCompleted, nodeCompletedSignal{NodeID: "n1"})
		}, time.Millisecond)
		env.RegisterDelayedCallback(func() {
			env.SignalWorkflow(signalNodeCompleted, nodeCompletedSignal{NodeID: "n2"})
		}, 2*time.Millisecond)
		env.RegisterDelayedCallback(func() {
			result, err := env.QueryWorkflow(queryCompleted)
			require.NoError(t, err)
			var completed map[string]bool
			require.NoError(t, result.Get(&completed))
			assert.True(t, completed["n1"])
			assert.True(t, completed["n2"])
			assert.False(t, completed["n3"])
		}, 3*time.Millisecond)
		env.RegisterDelayedCallback(func() {
			env.SignalWorkflow(signalFinish, nil)
		}, 4*time.Millisecond)

		env.ExecuteWorkflow(CheckpointWorkflow)

		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())
	})
}

func TestTemporalStore_ensureStarted(t *testing.T) {
	t.Run("Should start the checkpoint workflow with the run's derived ID", func(t *testing.T) {
		mockClient := &temporalmocks.Client{}
		mockClient.Test(t)
		s := &TemporalStore{client: mockClient, taskQueue: TaskQueue}

		optsMatcher := mock.MatchedBy(func(opts client.StartWorkflowOptions) bool {
			return opts.ID == checkpointWorkflowID("run-1") && opts.TaskQueue == TaskQueue
		})
		mockClient.On("ExecuteWorkflow", mock.Anything, optsMatcher, mock.Anything).
			Return(nil, nil).Once()

		err := s.ensureStarted(context.Background(), "run-1")
		require.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Should treat an already-started checkpoint workflow as success", func(t *testing.T) {
		mockClient := &temporalmocks.Client{}
		mockClient.Test(t)
		s := &TemporalStore{client: mockClient, taskQueue: TaskQueue}

		alreadyStarted := serviceerror.NewWorkflowExecutionAlreadyStarted(
			"workflow already running", checkpointWorkflowID("run-1"), "",
		)
		mockClient.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, alreadyStarted).Once()

		err := s.ensureStarted(context.Background(), "run-1")
		require.NoError(t, err)
	})

	t.Run("Should surface an unrelated dial/start error", func(t *testing.T) {
		mockClient := &temporalmocks.Client{}
		mockClient.Test(t)
		s := &TemporalStore{client: mockClient, taskQueue: TaskQueue}

		mockClient.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("connection refused")).Once()

		err := s.ensureStarted(context.Background(), "run-1")
		assert.Error(t, err)
	})
}

func TestTemporalStore_RecordCompleted(t *testing.T) {
	t.Run("Should ensure the checkpoint workflow is started then signal it", func(t *testing.T) {
		mockClient := &temporalmocks.Client{}
		mockClient.Test(t)
		s := &TemporalStore{client: mockClient, taskQueue: TaskQueue}

		mockClient.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Once()
		mockClient.On(
			"SignalWorkflow", mock.Anything, checkpointWorkflowID("run-1"), "", signalNodeCompleted,
			nodeCompletedSignal{NodeID: "n1"},
		).Return(nil).Once()

		err := s.RecordCompleted(context.Background(), "run-1", "n1")
		require.NoError(t, err)
		mockClient.AssertExpectations(t)
	})
}

func TestTemporalStore_Load(t *testing.T) {
	t.Run("Should decode the completed set from a successful query", func(t *testing.T) {
		mockClient := &temporalmocks.Client{}
		mockClient.Test(t)
		s := &TemporalStore{client: mockClient, taskQueue: TaskQueue}

		payloads, err := converter.GetDefaultDataConverter().ToPayloads(map[string]bool{"n1": true})
		require.NoError(t, err)
		mockClient.On(
			"QueryWorkflow", mock.Anything, checkpointWorkflowID("run-1"), "", queryCompleted,
		).Return(client.NewValue(payloads), nil).Once()

		cp, err := s.Load(context.Background(), "run-1")
		require.NoError(t, err)
		assert.Equal(t, "run-1", cp.RunID)
		assert.True(t, cp.Completed["n1"])
	})

	t.Run("Should return an empty checkpoint when the run has no history yet", func(t *testing.T) {
		mockClient := &temporalmocks.Client{}
		mockClient.Test(t)
		s := &TemporalStore{client: mockClient, taskQueue: TaskQueue}

		mockClient.On("QueryWorkflow", mock.Anything, checkpointWorkflowID("run-2"), "", queryCompleted).
			Return(nil, serviceerror.NewNotFound("not found")).Once()

		cp, err := s.Load(context.Background(), "run-2")
		require.NoError(t, err)
		assert.Empty(t, cp.Completed)
	})
}

func TestTemporalStore_Finish(t *testing.T) {
	t.Run("Should swallow a not-found error for an already-finished run", func(t *testing.T) {
		mockClient := &temporalmocks.Client{}
		mockClient.Test(t)
		s := &TemporalStore{client: mockClient, taskQueue: TaskQueue}

		mockClient.On("SignalWorkflow", mock.Anything, checkpointWorkflowID("run-1"), "", signalFinish, nil).
			Return(serviceerror.NewNotFound("gone")).Once()

		err := s.Finish(context.Background(), "run-1")
		require.NoError(t, err)
	})
}
