// Package execctx implements the node-facing Execution Context facade: the
// single object a node's Execute method uses to read parameters, write
// outputs, reach variables/resources/events, and observe cancellation.
package execctx

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-viper/mapstructure/v2"

	"github.com/casarerpa/engine/engine/core"
	"github.com/casarerpa/engine/engine/events"
	"github.com/casarerpa/engine/engine/resources"
)

// VariableStore is the narrow view execctx needs from engine/variables.Store.
type VariableStore interface {
	Get(name string) (any, error)
	Set(name string, value any)
	Snapshot() (map[string]any, error)
	Resolve(template string) (string, error)
}

// ResourceProvider is the narrow view execctx needs from
// engine/resources.Manager.
type ResourceProvider interface {
	Acquire(ctx context.Context, kind resources.Kind) (resources.Handle, error)
	Release(kind resources.Kind, h resources.Handle)
}

// EventEmitter is the narrow view execctx needs from engine/events.Bus.
type EventEmitter interface {
	Publish(ctx context.Context, ev events.Event)
}

// BlockingRunner is the narrow view execctx needs from
// engine/resources.BlockingPool.
type BlockingRunner interface {
	Run(ctx context.Context, fn func() (any, error)) (any, error)
}

// Context is the per-node execution facade. One Context is constructed per
// node invocation; its Parameters are the node's resolved config merged
// with upstream data-port inputs (get_parameter precedence, highest first):
// explicit data-port input > node config > workflow variable > default.
type Context struct {
	ctx        context.Context
	runID      string
	nodeID     string
	typeName   string
	parameters map[string]any
	outputs    map[string]any
	mu         sync.Mutex

	store     VariableStore
	resources ResourceProvider
	bus       EventEmitter
	blocking  BlockingRunner
	cancel    <-chan struct{}
}

// Option configures a Context at construction.
type Option func(*Context)

// WithResources attaches a ResourceProvider.
func WithResources(r ResourceProvider) Option { return func(c *Context) { c.resources = r } }

// WithEvents attaches an EventEmitter.
func WithEvents(b EventEmitter) Option { return func(c *Context) { c.bus = b } }

// WithCancel attaches the run's cancellation signal.
func WithCancel(ch <-chan struct{}) Option { return func(c *Context) { c.cancel = ch } }

// WithBlocking attaches the engine's CPU-bound worker pool.
func WithBlocking(p BlockingRunner) Option { return func(c *Context) { c.blocking = p } }

// New builds a Context for one node invocation. parameters is the already
// resolved precedence chain (engine/runtime computes it); store gives access to the run's variable scope stack.
func New(
	ctx context.Context,
	runID, nodeID, typeName string,
	parameters map[string]any,
	store VariableStore,
	opts ...Option,
) *Context {
	c := &Context{
		ctx:        ctx,
		runID:      runID,
		nodeID:     nodeID,
		typeName:   typeName,
		parameters: parameters,
		outputs:    make(map[string]any),
		store:      store,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) RunID() string    { return c.runID }
func (c *Context) NodeID() string   { return c.nodeID }
func (c *Context) TypeName() string { return c.typeName }

// GetParameter returns the resolved value of a named parameter, decoded
// into T via mapstructure so nodes can ask for typed values without manual
// type assertions.
func GetParameter[T any](c *Context, name string) (T, error) {
	var zero T
	raw, ok := c.parameters[name]
	if !ok {
		return zero, core.NewError(fmt.Errorf("parameter %q not set", name), core.ErrUndefinedVariable,
			map[string]any{"node_id": c.nodeID, "parameter": name})
	}
	var out T
	if err := mapstructure.Decode(raw, &out); err != nil {
		return zero, core.NewError(err, core.ErrTypeMismatch,
			map[string]any{"node_id": c.nodeID, "parameter": name})
	}
	return out, nil
}

// GetParameterRaw returns a parameter's undecoded value.
func (c *Context) GetParameterRaw(name string) (any, bool) {
	v, ok := c.parameters[name]
	return v, ok
}

// SetOutput assigns a node output. Outputs are single-assignment: setting
// the same name twice in one invocation is a programming error in the node
// implementation and returns Internal.
func (c *Context) SetOutput(name string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.outputs[name]; exists {
		return core.NewError(fmt.Errorf("output %q already set for node %q", name, c.nodeID),
			core.ErrInternal, map[string]any{"node_id": c.nodeID, "output": name})
	}
	c.outputs[name] = value
	return nil
}

// Outputs returns every output set so far.
func (c *Context) Outputs() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.outputs))
	for k, v := range c.outputs {
		out[k] = v
	}
	return out
}

// Variables returns the variable store facade.
func (c *Context) Variables() VariableStore { return c.store }

// Resources returns the resource provider facade, or nil if none was wired.
func (c *Context) Resources() ResourceProvider { return c.resources }

// Emit publishes an event tagged with this node's run/node IDs.
func (c *Context) Emit(kind events.Kind, payload map[string]any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(c.ctx, events.NewEvent(kind, c.runID, c.nodeID, payload))
}

// Offload runs fn on the engine's CPU-bound worker pool and returns its
// result, so a compute-heavy node (image diffing, OCR) doesn't hog the
// goroutines driving I/O dispatch. Runs fn inline when no pool was wired.
func (c *Context) Offload(fn func() (any, error)) (any, error) {
	if c.blocking == nil {
		return fn()
	}
	return c.blocking.Run(c.ctx, fn)
}

// CancellationToken returns a channel that closes when the run is cancelled.
func (c *Context) CancellationToken() <-chan struct{} { return c.cancel }

// Context returns the underlying context.Context, for node implementations
// that need it for blocking I/O (HTTP calls, DB queries).
func (c *Context) Context() context.Context { return c.ctx }

// Cancelled reports whether the run's cancellation token has fired.
func (c *Context) Cancelled() bool {
	if c.cancel == nil {
		return false
	}
	select {
	case <-c.cancel:
		return true
	default:
		return false
	}
}
