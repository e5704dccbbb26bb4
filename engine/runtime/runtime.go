// Package runtime bridges the compiled graph, the node registry, and the
// control-flow primitives into a single workflow.GraphRunner: a recursive,
// re-entrant walk of a workflow's execution edges that handles every
// control-flow category itself.
//
// Routing categories (If/Switch/Merge/Comment/Reroute/Start/End) fire
// exactly their labelled output ports within one visit to the node. Looping
// and exception-frame categories (ForLoopStart/WhileLoopStart/Break/
// Continue/Try/Catch/Finally/Retry/ThrowError/SubWorkflowCall) revisit the
// same node id across iterations or attempts; engine/control's frame types
// (LoopFrame, TryFrame, RetryBlockConfig, DepthTracker) carry that state,
// wired in below rather than dispatched through the scheduler's one-pass
// Kahn levels.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/casarerpa/engine/engine/control"
	"github.com/casarerpa/engine/engine/core"
	"github.com/casarerpa/engine/engine/events"
	"github.com/casarerpa/engine/engine/execctx"
	"github.com/casarerpa/engine/engine/graph"
	"github.com/casarerpa/engine/engine/node"
	"github.com/casarerpa/engine/engine/resources"
	"github.com/casarerpa/engine/engine/retry"
	"github.com/casarerpa/engine/engine/scheduler"
	"github.com/casarerpa/engine/engine/variables"
	"github.com/casarerpa/engine/engine/workflow"
)

// WorkflowLoader resolves a SubWorkflowCall node's workflow_id config into
// the sub-workflow's compiled graph. Supplied by the binary, since loading
// a workflow document from disk/storage is outside engine/runtime's remit.
type WorkflowLoader interface {
	Load(workflowID string) (*graph.Workflow, error)
}

// Runner drives one run's node dispatch against a fixed workflow and
// registry. It is not safe for use by more than one concurrent run, though
// a single run's own parallel branches dispatch through it concurrently.
type Runner struct {
	wf        *graph.Workflow
	registry  *node.Registry
	store     *variables.Store
	resources execctx.ResourceProvider
	bus       execctx.EventEmitter
	blocking  execctx.BlockingRunner
	runID     string
	evaluator *control.ConditionEvaluator
	breakers  *retry.BreakerRegistry
	subWFs    WorkflowLoader
	depth     *control.DepthTracker

	outputsMu sync.Mutex
	outputs   map[graph.PortRef]any
}

// Option configures a Runner.
type Option func(*Runner)

// WithResources attaches the resource provider nodes may acquire from.
// A nil Manager leaves resource access unwired.
func WithResources(r *resources.Manager) Option {
	return func(rt *Runner) {
		if r != nil {
			rt.resources = r
		}
	}
}

// WithEvents attaches the bus node Emit calls and lifecycle events publish
// to. A nil Bus leaves event emission unwired.
func WithEvents(b *events.Bus) Option {
	return func(rt *Runner) {
		if b != nil {
			rt.bus = b
		}
	}
}

// WithBreakers attaches a process-wide per-node-type circuit breaker
// registry. A fresh registry (unshared with any other run) is used if this
// is never called.
func WithBreakers(b *retry.BreakerRegistry) Option {
	return func(rt *Runner) {
		if b != nil {
			rt.breakers = b
		}
	}
}

// WithBlockingPool attaches the CPU-bound worker pool nodes reach through
// their context's Offload. Nil leaves offloaded work running inline.
func WithBlockingPool(p *resources.BlockingPool) Option {
	return func(rt *Runner) {
		if p != nil {
			rt.blocking = p
		}
	}
}

// WithSubWorkflows attaches the loader SubWorkflowCall nodes resolve their
// workflow_id config against. A call fails with UnknownNodeType-shaped
// validation error if this is never supplied.
func WithSubWorkflows(l WorkflowLoader) Option {
	return func(rt *Runner) { rt.subWFs = l }
}

// WithMaxDepth bounds SubWorkflowCall recursion (control.DefaultMaxDepth
// if never called).
func WithMaxDepth(n int) Option {
	return func(rt *Runner) { rt.depth = control.NewDepthTracker(n) }
}

// New builds a Runner for one run of wf. store holds the run's variable
// scope stack; registry resolves opaque node type names.
func New(runID string, wf *graph.Workflow, registry *node.Registry, store *variables.Store, opts ...Option) (*Runner, error) {
	eval, err := control.NewConditionEvaluator(declaredVariableNames(wf))
	if err != nil {
		return nil, err
	}
	rt := &Runner{
		wf:        wf,
		registry:  registry,
		store:     store,
		runID:     runID,
		evaluator: eval,
		breakers:  retry.NewBreakerRegistry(retry.DefaultBreakerConfig()),
		depth:     control.NewDepthTracker(0),
		outputs:   map[graph.PortRef]any{},
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt, nil
}

// declaredVariableNames seeds the CEL environment with every name a
// condition might legitimately reference: the workflow's own declared
// variables, every loop's item_var/index_var config names, and the fixed
// Catch-scope names populated whenever a Try block catches.
func declaredVariableNames(wf *graph.Workflow) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		names = append(names, n)
	}
	for _, v := range wf.Variables {
		add(v.Name)
	}
	for _, n := range wf.Nodes {
		if s, ok := n.Config["item_var"].(string); ok {
			add(s)
		}
		if s, ok := n.Config["index_var"].(string); ok {
			add(s)
		}
	}
	add("error_message")
	add("error_type")
	add("stack_trace")
	return names
}

// GraphRunner returns a workflow.GraphRunner bound to this Runner, suitable
// for passing straight to workflow.Engine.Start.
func (rt *Runner) GraphRunner() workflow.GraphRunner {
	return func(ctx context.Context, startNodeID string) error {
		return rt.runNodeChain(ctx, startNodeID, "")
	}
}

// runNodeChain runs nodeID and recursively continues through whatever
// execution output ports it fires, stopping -- without running it -- once
// the walk reaches stopAt. An empty stopAt never matches, since node ids
// are never empty.
func (rt *Runner) runNodeChain(ctx context.Context, nodeID, stopAt string) error {
	if nodeID == "" || nodeID == stopAt {
		return nil
	}
	select {
	case <-ctx.Done():
		return core.NewError(ctx.Err(), core.ErrCancelled, nil)
	default:
	}
	if rs, ok := workflow.RunStateFromContext(ctx); ok {
		if !rs.WaitIfPaused(ctx) {
			return core.NewError(ctx.Err(), core.ErrCancelled, nil)
		}
	}
	firedPorts, err := rt.runNode(ctx, nodeID)
	if err != nil {
		return err
	}
	if done, ok := workflow.OnNodeDoneFromContext(ctx); ok {
		done(nodeID)
	}
	refs := make([]graph.PortRef, 0, len(firedPorts))
	for _, p := range firedPorts {
		refs = append(refs, graph.PortRef{NodeID: nodeID, Port: p})
	}
	return rt.dispatch(ctx, refs, stopAt)
}

// runFrom follows the execution edges leaving ref's output port and
// continues the walk from each target.
func (rt *Runner) runFrom(ctx context.Context, ref graph.PortRef, stopAt string) error {
	return rt.dispatchTargets(ctx, rt.wf.ExecutionOutEdges(ref), stopAt)
}

// dispatch runs the node chain reached by each fired output port in refs,
// fanning out concurrently (bounded) when more than one port fired or one
// port fans out to more than one target.
func (rt *Runner) dispatch(ctx context.Context, refs []graph.PortRef, stopAt string) error {
	var targets []graph.PortRef
	for _, ref := range refs {
		targets = append(targets, rt.wf.ExecutionOutEdges(ref)...)
	}
	return rt.dispatchTargets(ctx, targets, stopAt)
}

func (rt *Runner) dispatchTargets(ctx context.Context, targets []graph.PortRef, stopAt string) error {
	switch len(targets) {
	case 0:
		return nil
	case 1:
		return rt.runNodeChain(ctx, targets[0].NodeID, stopAt)
	default:
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(rt.maxParallel(ctx))
		for _, t := range targets {
			t := t
			g.Go(func() error { return rt.runNodeChain(gctx, t.NodeID, stopAt) })
		}
		return g.Wait()
	}
}

func (rt *Runner) maxParallel(ctx context.Context) int {
	if n := workflow.MaxParallelFromContext(ctx); n > 0 {
		return n
	}
	return scheduler.DefaultMaxParallel()
}

// Run dispatches a single visit to nodeID, reporting whatever execution
// output ports it fires. Compound categories (loops, Try, Retry,
// SubWorkflowCall) run their entire internal sub-graph to completion and
// report no ports of their own; GraphRunner is the entry point a real run
// drives through, walking the full chain rather than one node at a time.
func (rt *Runner) Run(ctx context.Context, nodeID string) ([]string, error) {
	return rt.runNode(ctx, nodeID)
}

// runNode dispatches a single visit to nodeID and reports which execution
// output ports fired. Compound categories (loops, Try, Retry,
// SubWorkflowCall) drive their own internal continuation all the way to
// completion before returning, so their firedPorts is always nil -- the
// caller has nothing left to dispatch.
func (rt *Runner) runNode(ctx context.Context, nodeID string) ([]string, error) {
	rec, ok := rt.wf.GetNode(nodeID)
	if !ok {
		return nil, core.NewError(fmt.Errorf("node %q not found", nodeID), core.ErrInternal, nil)
	}
	switch cat := graph.CategoryOf(rec.TypeName); cat {
	case graph.CategoryStart:
		return []string{"out"}, nil
	case graph.CategoryEnd:
		return nil, nil
	case graph.CategoryBreak:
		return nil, core.NewControlSignal(core.SignalBreak, "")
	case graph.CategoryContinue:
		return nil, core.NewControlSignal(core.SignalContinue, "")
	case graph.CategoryComment, graph.CategoryReroute, graph.CategoryMerge, graph.CategoryCatch, graph.CategoryFinally:
		return []string{"out"}, nil
	case graph.CategoryIf:
		return rt.runIf(nodeID, rec)
	case graph.CategorySwitch:
		return rt.runSwitch(nodeID, rec)
	case graph.CategoryForLoopStart:
		return nil, rt.runForLoop(ctx, nodeID, rec)
	case graph.CategoryWhileLoopStart:
		return nil, rt.runWhileLoop(ctx, nodeID, rec)
	case graph.CategoryForLoopEnd, graph.CategoryWhileLoopEnd:
		return []string{"done"}, nil
	case graph.CategoryTry:
		return nil, rt.runTry(ctx, nodeID)
	case graph.CategoryRetry:
		return nil, rt.runRetryBlock(ctx, nodeID, rec)
	case graph.CategorySubWorkflowCall:
		return nil, rt.runSubWorkflowCall(ctx, nodeID, rec)
	case graph.CategoryThrowError:
		return rt.runThrow(nodeID, rec)
	case graph.CategoryOpaque:
		return rt.runOpaque(ctx, nodeID, rec)
	default:
		return nil, core.NewError(
			fmt.Errorf("node %q has category %q, which this runner does not dispatch", nodeID, cat),
			core.ErrInternal, map[string]any{"node_id": nodeID, "category": string(cat)},
		)
	}
}

func (rt *Runner) runIf(nodeID string, rec graph.NodeRecord) ([]string, error) {
	value, err := rt.resolveDataInput(nodeID, "condition", rec.Config)
	if err != nil {
		return nil, err
	}
	result, err := rt.evalBool(nodeID, value)
	if err != nil {
		return nil, err
	}
	if result {
		return []string{"true"}, nil
	}
	return []string{"false"}, nil
}

func (rt *Runner) evalBool(nodeID string, value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		vars, err := rt.store.Snapshot()
		if err != nil {
			return false, err
		}
		return rt.evaluator.EvalBool(v, vars)
	default:
		return false, core.NewError(fmt.Errorf("node %q condition must be a bool or CEL string", nodeID),
			core.ErrTypeMismatch, map[string]any{"node_id": nodeID})
	}
}

// runSwitch evaluates its "value" input against each case config entry
// ("cases": {caseValue: outputPortName}), firing the matching port or
// "default" if none match.
func (rt *Runner) runSwitch(nodeID string, rec graph.NodeRecord) ([]string, error) {
	value, err := rt.resolveDataInput(nodeID, "value", rec.Config)
	if err != nil {
		return nil, err
	}
	cases, _ := rec.Config["cases"].(map[string]any)
	for caseValue, port := range cases {
		if fmt.Sprintf("%v", value) == caseValue {
			if portName, ok := port.(string); ok {
				return []string{portName}, nil
			}
		}
	}
	return []string{"default"}, nil
}

// configInt reads an integer-valued config entry, tolerating both the
// float64 a JSON decoder produces and the int a YAML decoder produces.
func configInt(config map[string]any, key string) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// newForLoopFrame builds the iteration frame for a ForLoopStart node.
// Range mode ("start"/"end" config keys, optional "step", half-open
// [start, end)) takes precedence; otherwise the "iterable" input supplies
// a list, dict, or string to walk.
func (rt *Runner) newForLoopFrame(nodeID string, rec graph.NodeRecord) (*control.LoopFrame, error) {
	maxIter := configInt(rec.Config, "max_iterations")
	_, hasStart := rec.Config["start"]
	_, hasEnd := rec.Config["end"]
	if hasStart && hasEnd {
		start, err := rt.rangeBound(nodeID, rec.Config, "start")
		if err != nil {
			return nil, err
		}
		end, err := rt.rangeBound(nodeID, rec.Config, "end")
		if err != nil {
			return nil, err
		}
		step := int64(1)
		if _, ok := rec.Config["step"]; ok {
			if step, err = rt.rangeBound(nodeID, rec.Config, "step"); err != nil {
				return nil, err
			}
		}
		return control.NewRangeLoopFrame(nodeID, start, end, step, maxIter)
	}
	iterable, err := rt.resolveDataInput(nodeID, "iterable", rec.Config)
	if err != nil {
		return nil, err
	}
	return control.NewForLoopFrame(nodeID, iterable, maxIter)
}

// rangeBound resolves one range config entry (which may be templated)
// down to an integer.
func (rt *Runner) rangeBound(nodeID string, config map[string]any, key string) (int64, error) {
	v := config[key]
	if template, ok := v.(string); ok {
		resolved, err := rt.store.ResolveValue(template)
		if err != nil {
			return 0, err
		}
		v = resolved
	}
	n, err := control.IntFromConfig(v)
	if err != nil {
		return 0, core.NewError(err, core.ErrTypeMismatch,
			map[string]any{"node_id": nodeID, "config": key})
	}
	return n, nil
}

// runForLoop drives one ForLoopStart node to completion: pushes a fresh
// FrameLoop scope per item, binds it to item_var/index_var if configured,
// runs the loop_body subgraph (stopping at the paired LoopEnd's id rather
// than executing it, since the end node only runs once all iterations --
// or a Break -- have finished), and intercepts Break/Continue signals the
// body raises before they escape to an enclosing frame. Continues the walk
// past the paired LoopEnd once the loop is done.
func (rt *Runner) runForLoop(ctx context.Context, nodeID string, rec graph.NodeRecord) error {
	endID, ok := rt.wf.LoopEndFor(nodeID)
	if !ok {
		return core.NewError(fmt.Errorf("for-loop %q has no paired loop end", nodeID),
			core.ErrWorkflowValidation, map[string]any{"node_id": nodeID})
	}
	frame, err := rt.newForLoopFrame(nodeID, rec)
	if err != nil {
		return err
	}
	itemVar, _ := rec.Config["item_var"].(string)
	indexVar, _ := rec.Config["index_var"].(string)

	for {
		item, index, ok := frame.Next()
		if !ok {
			break
		}
		if frame.Exceeded() {
			return control.InfiniteLoopError(nodeID, frame.MaxIterations)
		}
		rt.setOutput(graph.PortRef{NodeID: nodeID, Port: "item"}, item)
		seed := map[string]any{}
		if itemVar != "" {
			seed[itemVar] = item
		}
		if indexVar != "" {
			seed[indexVar] = index
		}
		rt.store.PushScope(variables.FrameLoop, seed)
		bodyErr := rt.runFrom(ctx, graph.PortRef{NodeID: nodeID, Port: "loop_body"}, endID)
		rt.store.PopScope()
		if bodyErr != nil {
			if sig, isSignal := core.AsControlSignal(bodyErr); isSignal {
				if sig.Kind == core.SignalBreak {
					break
				}
				if sig.Kind == core.SignalContinue {
					continue
				}
			}
			return bodyErr
		}
	}
	return rt.runNodeChain(ctx, endID, "")
}

// runWhileLoop drives one WhileLoopStart node the same way runForLoop
// does, but re-evaluates its condition input before every iteration
// instead of walking a fixed item set, and raises InfiniteLoopError once
// max_iterations is exceeded rather than stopping naturally.
func (rt *Runner) runWhileLoop(ctx context.Context, nodeID string, rec graph.NodeRecord) error {
	endID, ok := rt.wf.LoopEndFor(nodeID)
	if !ok {
		return core.NewError(fmt.Errorf("while-loop %q has no paired loop end", nodeID),
			core.ErrWorkflowValidation, map[string]any{"node_id": nodeID})
	}
	frame := control.NewWhileLoopFrame(nodeID, configInt(rec.Config, "max_iterations"))

	for {
		condValue, err := rt.resolveDataInput(nodeID, "condition", rec.Config)
		if err != nil {
			return err
		}
		shouldContinue, err := rt.evalBool(nodeID, condValue)
		if err != nil {
			return err
		}
		if !shouldContinue {
			break
		}
		if frame.Tick() {
			return control.InfiniteLoopError(nodeID, frame.MaxIterations)
		}
		rt.store.PushScope(variables.FrameLoop, map[string]any{})
		bodyErr := rt.runFrom(ctx, graph.PortRef{NodeID: nodeID, Port: "loop_body"}, endID)
		rt.store.PopScope()
		if bodyErr != nil {
			if sig, isSignal := core.AsControlSignal(bodyErr); isSignal {
				if sig.Kind == core.SignalBreak {
					break
				}
				if sig.Kind == core.SignalContinue {
					continue
				}
			}
			return bodyErr
		}
	}
	return rt.runNodeChain(ctx, endID, "")
}

// runTry drives one Try node: runs the try branch, routes a caught Throw
// signal into the Catch branch's payload (error_message/error_type/
// stack_trace), and guarantees the Finally branch -- if any -- runs
// exactly once on every path (success, caught, or an uncaught/re-thrown
// error) before returning. Try itself has no unified "out" port;
// whatever the try/catch/finally branches wire downstream is how execution
// continues, which the stopAt boundary on each sub-dispatch protects from
// double-running Finally.
func (rt *Runner) runTry(ctx context.Context, nodeID string) error {
	catchID, hasCatch := rt.wf.CatchFor(nodeID)
	finallyID, _ := rt.wf.FinallyFor(nodeID)
	frame := control.NewTryFrame(nodeID, catchID, finallyID)

	runFinally := func() error {
		if !frame.ShouldRunFinally() {
			return nil
		}
		return rt.runNodeChain(ctx, finallyID, "")
	}

	tryErr := rt.runFrom(ctx, graph.PortRef{NodeID: nodeID, Port: "try"}, finallyID)
	if tryErr != nil {
		sig, isThrow := core.AsControlSignal(tryErr)
		if !isThrow || sig.Kind != core.SignalThrow || !hasCatch {
			if ferr := runFinally(); ferr != nil {
				return ferr
			}
			return tryErr
		}
		frame.Catch(sig.Message, sig.ErrType, "")
		rt.store.PushScope(variables.FrameLoop, map[string]any{
			"error_message": sig.Message,
			"error_type":    sig.ErrType,
			"stack_trace":   "",
		})
		catchErr := rt.runFrom(ctx, graph.PortRef{NodeID: catchID, Port: "out"}, finallyID)
		rt.store.PopScope()
		if catchErr != nil {
			if ferr := runFinally(); ferr != nil {
				return ferr
			}
			return catchErr
		}
	}
	return runFinally()
}

// runRetryBlock drives one Retry node: repeatedly runs the body subgraph
// under cfg's backoff policy, surfacing success by letting the body's own
// downstream wiring carry on (Retry has no "out" port distinct from
// "body") and firing "exhausted" only once every attempt has failed. A
// Break/Continue/Throw from inside the body is never retried -- it is not
// a transient execution failure, and propagates untouched to whatever
// frame encloses the Retry block.
func (rt *Runner) runRetryBlock(ctx context.Context, nodeID string, rec graph.NodeRecord) error {
	cfg := control.NewRetryBlockConfig(configInt(rec.Config, "max_attempts"))
	var signal *core.ControlSignal
	bodyErr := cfg.Run(ctx, func(attemptCtx context.Context) error {
		err := rt.runFrom(attemptCtx, graph.PortRef{NodeID: nodeID, Port: "body"}, "")
		if err == nil {
			return nil
		}
		if sig, ok := core.AsControlSignal(err); ok {
			signal = sig
			return nil
		}
		return wrapRetryable(err)
	})
	if signal != nil {
		return signal
	}
	if bodyErr != nil {
		return rt.runFrom(ctx, graph.PortRef{NodeID: nodeID, Port: "exhausted"}, "")
	}
	return nil
}

// runSubWorkflowCall resolves a SubWorkflowCall node's workflow_id config
// through the configured WorkflowLoader and drives the child workflow to
// completion with a fresh Runner, sharing this run's registry, variable
// store (with a pushed FrameSubWorkflow scope seeded from the node's
// configured inputs), resources, event bus, breaker registry, and depth
// tracker. A separate Runner -- rather than reusing this one against the
// child's graph.Workflow -- is necessary because node ids are only unique
// within their own document: running the child through this Runner's own
// outputs map risks silently colliding with this workflow's own node ids.
// Return values cross back into the parent through the store's nearest-
// owning-frame write-through: a child write to a name the pushed
// scope didn't itself shadow lands directly in the parent's frame.
func (rt *Runner) runSubWorkflowCall(ctx context.Context, nodeID string, rec graph.NodeRecord) error {
	workflowID, _ := rec.Config["workflow_id"].(string)
	if workflowID == "" {
		return core.NewError(fmt.Errorf("sub_workflow_call node %q has no workflow_id configured", nodeID),
			core.ErrWorkflowValidation, map[string]any{"node_id": nodeID})
	}
	if rt.subWFs == nil {
		return core.NewError(fmt.Errorf("sub_workflow_call node %q: no workflow loader configured", nodeID),
			core.ErrUnknownNodeType, map[string]any{"node_id": nodeID, "workflow_id": workflowID})
	}
	if err := rt.depth.Enter(workflowID); err != nil {
		return err
	}
	defer rt.depth.Exit()

	childWF, err := rt.subWFs.Load(workflowID)
	if err != nil {
		return core.NewError(err, core.ErrUnknownNodeType, map[string]any{"workflow_id": workflowID})
	}

	inputs := control.CallInputs(rec.Config)
	resolved := make(map[string]any, len(inputs))
	for name, raw := range inputs {
		if template, ok := raw.(string); ok {
			rendered, err := rt.store.Resolve(template)
			if err != nil {
				return err
			}
			resolved[name] = rendered
			continue
		}
		resolved[name] = raw
	}
	rt.store.PushScope(variables.FrameSubWorkflow, resolved)
	defer rt.store.PopScope()

	eval, err := control.NewConditionEvaluator(declaredVariableNames(childWF))
	if err != nil {
		return err
	}
	child := &Runner{
		wf:        childWF,
		registry:  rt.registry,
		store:     rt.store,
		resources: rt.resources,
		bus:       rt.bus,
		blocking:  rt.blocking,
		runID:     rt.runID + ":" + nodeID,
		evaluator: eval,
		breakers:  rt.breakers,
		subWFs:    rt.subWFs,
		depth:     rt.depth,
		outputs:   map[graph.PortRef]any{},
	}
	startID, ok := childWF.StartNodeID()
	if !ok {
		return core.NewError(fmt.Errorf("sub-workflow %q has no Start node", workflowID),
			core.ErrWorkflowValidation, map[string]any{"workflow_id": workflowID})
	}
	return child.runNodeChain(ctx, startID, "")
}

func (rt *Runner) runThrow(nodeID string, rec graph.NodeRecord) ([]string, error) {
	message, err := rt.resolveDataInput(nodeID, "message", rec.Config)
	if err != nil {
		return nil, err
	}
	errType, _ := rec.Config["error_type"].(string)
	if errType == "" {
		errType = "WorkflowError"
	}
	return nil, core.NewThrowSignal(fmt.Sprintf("%v", message), errType)
}

func (rt *Runner) runOpaque(ctx context.Context, nodeID string, rec graph.NodeRecord) ([]string, error) {
	n, err := rt.registry.Build(rec.TypeName, rec.Config)
	if err != nil {
		return nil, err
	}
	params, err := rt.resolveParameters(nodeID, n.InputPorts(rec.Config), rec.Config)
	if err != nil {
		return nil, err
	}
	runID := rt.runID
	if ctxRunID, ok := workflow.RunIDFromContext(ctx); ok {
		runID = ctxRunID
	}

	spanCtx, span := events.StartNodeSpan(ctx, runID, nodeID, rec.TypeName)
	defer span.End()

	ec := execctx.New(spanCtx, runID, nodeID, rec.TypeName, params, rt.store,
		execctx.WithResources(rt.resources), execctx.WithEvents(rt.bus),
		execctx.WithBlocking(rt.blocking), execctx.WithCancel(ctx.Done()))

	policy := nodeRetryPolicy(rec.Config)
	attempt := 0
	var result node.Result
	execErr := policy.Do(spanCtx, func(attemptCtx context.Context) error {
		attempt++
		if attempt > 1 {
			rt.publish(ctx, events.KindNodeRetrying, nodeID, map[string]any{"attempt": attempt})
		}
		// NodeStarted fires once per attempt, so a subscriber counting
		// starts sees every retry, not just the first dispatch.
		rt.publish(ctx, events.KindNodeStarted, nodeID, map[string]any{"attempt": attempt})
		var breakerErr error
		if rt.breakers != nil {
			breakerErr = rt.breakers.Do(attemptCtx, rec.TypeName, func(c context.Context) error {
				r, err := n.Execute(c, ec)
				if err != nil {
					return err
				}
				result = r
				return nil
			})
		} else {
			result, breakerErr = n.Execute(attemptCtx, ec)
		}
		// A Fail result the node itself marked retryable re-enters the
		// backoff loop the same way a retryable Execute error does; a
		// later successful attempt overwrites result.
		if breakerErr == nil && result.Kind == node.ResultFail && result.FailRetryable {
			return retry.Retryable(fmt.Errorf("node %q failed (%s): %s", nodeID, result.FailKind, result.FailMessage))
		}
		return wrapRetryable(breakerErr)
	})
	if execErr != nil {
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
		rt.publish(ctx, events.KindNodeFailed, nodeID, map[string]any{"error": execErr.Error(), "attempt": attempt})
		return nil, execErr
	}

	switch result.Kind {
	case node.ResultOk:
		rt.recordOutputs(nodeID, ec)
		rt.publish(ctx, events.KindNodeCompleted, nodeID, nil)
		return result.NextExecs, nil
	case node.ResultFail:
		nodeErr := core.NewError(fmt.Errorf("node %q failed (%s): %s", nodeID, result.FailKind, result.FailMessage),
			core.ErrNode, map[string]any{"node_id": nodeID, "retryable": result.FailRetryable})
		span.RecordError(nodeErr)
		span.SetStatus(codes.Error, nodeErr.Error())
		rt.publish(ctx, events.KindNodeFailed, nodeID, map[string]any{"error": nodeErr.Error(), "attempt": attempt})
		return nil, nodeErr
	case node.ResultControlSignal:
		sig := signalFromResult(result)
		if sig.Kind == core.SignalThrow {
			span.RecordError(sig)
			span.SetStatus(codes.Error, sig.Error())
			rt.publish(ctx, events.KindNodeFailed, nodeID, map[string]any{"error": sig.Error()})
		} else {
			rt.publish(ctx, events.KindNodeCompleted, nodeID, nil)
		}
		return nil, sig
	default:
		return nil, core.NewError(fmt.Errorf("node %q returned unrecognized result kind %q", nodeID, result.Kind),
			core.ErrInternal, nil)
	}
}

func signalFromResult(result node.Result) *core.ControlSignal {
	switch result.Signal {
	case node.SignalBreak:
		return core.NewControlSignal(core.SignalBreak, "")
	case node.SignalContinue:
		return core.NewControlSignal(core.SignalContinue, "")
	default:
		return core.NewThrowSignal(result.ThrowMessage, "NodeError")
	}
}

// nodeRetryPolicy reads a node's own "retry" config block, if any,
// distinct from a workflow-level Retry control-flow node.
func nodeRetryPolicy(config map[string]any) retry.Policy {
	policy := retry.DefaultPolicy()
	cfg, ok := config["retry"].(map[string]any)
	if !ok {
		return policy
	}
	if v := configInt(cfg, "max_attempts"); v > 0 {
		policy.MaxAttempts = v
	}
	if v := configInt(cfg, "initial_delay_ms"); v > 0 {
		policy.DelayStart = time.Duration(v) * time.Millisecond
	}
	if v := configInt(cfg, "max_delay_ms"); v > 0 {
		policy.DelayMax = time.Duration(v) * time.Millisecond
	}
	return policy
}

// wrapRetryable marks err for retry.Policy.Do's backoff loop when its
// ErrorKind classification (or a NodeError's explicit retryable detail)
// says it may be retried; otherwise it is returned as-is, which stops the
// retry loop on the first attempt.
func wrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	var ce *core.Error
	if errors.As(err, &ce) && ce.Retryable() {
		return retry.Retryable(err)
	}
	return err
}

func (rt *Runner) publish(ctx context.Context, kind events.Kind, nodeID string, payload map[string]any) {
	if rt.bus == nil {
		return
	}
	runID := rt.runID
	if ctxRunID, ok := workflow.RunIDFromContext(ctx); ok {
		runID = ctxRunID
	}
	rt.bus.Publish(ctx, events.NewEvent(kind, runID, nodeID, payload))
}

func (rt *Runner) recordOutputs(nodeID string, ec *execctx.Context) {
	rt.outputsMu.Lock()
	defer rt.outputsMu.Unlock()
	for name, value := range ec.Outputs() {
		rt.outputs[graph.PortRef{NodeID: nodeID, Port: name}] = value
	}
}

func (rt *Runner) setOutput(ref graph.PortRef, value any) {
	rt.outputsMu.Lock()
	defer rt.outputsMu.Unlock()
	rt.outputs[ref] = value
}

func (rt *Runner) getOutput(ref graph.PortRef) (any, bool) {
	rt.outputsMu.Lock()
	defer rt.outputsMu.Unlock()
	v, ok := rt.outputs[ref]
	return v, ok
}

// resolveDataInput resolves one named data input using the same precedence
// chain as resolveParameters: explicit data-port input > node config >
// workflow variable. A string config value is resolved through the
// variable store first, so a templated config entry (e.g. a condition of
// "{{x}} > 10" or an iterable of "{{items}}") reaches the node as its
// rendered or, for a bare placeholder, native value rather than as the
// literal template text.
func (rt *Runner) resolveDataInput(nodeID, port string, config map[string]any) (any, error) {
	ref := graph.PortRef{NodeID: nodeID, Port: port}
	if src, ok := rt.wf.DataSource(ref); ok {
		if v, ok := rt.getOutput(src); ok {
			return v, nil
		}
	}
	if v, ok := config[port]; ok {
		if template, ok := v.(string); ok {
			return rt.store.ResolveValue(template)
		}
		return v, nil
	}
	return rt.store.Get(port)
}

// resolveParameters builds an opaque node's parameter map following the
// get_parameter precedence chain: explicit data-port input > node config >
// workflow variable > port default. Like resolveDataInput, a string config
// value is resolved through the variable store before being handed to the
// node.
func (rt *Runner) resolveParameters(nodeID string, inputs []graph.PortDef, config map[string]any) (map[string]any, error) {
	params := make(map[string]any, len(inputs))
	for _, in := range inputs {
		if in.Kind != graph.PortData {
			continue
		}
		ref := graph.PortRef{NodeID: nodeID, Port: in.Name}
		if src, ok := rt.wf.DataSource(ref); ok {
			if v, ok := rt.getOutput(src); ok {
				params[in.Name] = v
				continue
			}
		}
		if v, ok := config[in.Name]; ok {
			if template, ok := v.(string); ok {
				resolved, err := rt.store.ResolveValue(template)
				if err != nil {
					return nil, err
				}
				params[in.Name] = resolved
				continue
			}
			params[in.Name] = v
			continue
		}
		if in.Default != nil {
			params[in.Name] = in.Default
		}
	}
	return params, nil
}
