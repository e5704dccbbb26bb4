// Package node defines the Node contract every workflow action implements,
// and the compile-time registry mapping a node's type_name to the factory
// that builds it. There is no reflection anywhere in this package: every
// registration is an explicit map entry wired up in an init() or by the
// binary's main package.
package node

import (
	"context"

	"github.com/casarerpa/engine/engine/execctx"
	"github.com/casarerpa/engine/engine/graph"
)

// ResultKind discriminates the NodeResult variants.
type ResultKind string

const (
	ResultOk            ResultKind = "ok"
	ResultFail          ResultKind = "fail"
	ResultControlSignal ResultKind = "control_signal"
)

// SignalKind is the closed set of control signals a node may raise instead
// of a normal Ok/Fail outcome.
type SignalKind string

const (
	SignalBreak    SignalKind = "break"
	SignalContinue SignalKind = "continue"
	SignalThrow    SignalKind = "throw"
)

// Result is the outcome of one node invocation. Exactly one of Ok/Fail/
// Signal is populated, selected by Kind.
type Result struct {
	Kind ResultKind

	// Ok fields.
	NextExecs []string // names of the execution output ports to fire

	// Fail fields.
	FailKind      string
	FailMessage   string
	FailRetryable bool

	// ControlSignal fields.
	Signal       SignalKind
	ThrowMessage string
}

// Ok builds a successful Result that fires the given execution output ports.
func Ok(nextExecs ...string) Result {
	return Result{Kind: ResultOk, NextExecs: nextExecs}
}

// Fail builds a failed Result.
func Fail(kind, message string, retryable bool) Result {
	return Result{Kind: ResultFail, FailKind: kind, FailMessage: message, FailRetryable: retryable}
}

// Break builds a Break control signal.
func Break() Result { return Result{Kind: ResultControlSignal, Signal: SignalBreak} }

// Continue builds a Continue control signal.
func Continue() Result { return Result{Kind: ResultControlSignal, Signal: SignalContinue} }

// Throw builds a Throw control signal carrying message, routed to the
// nearest enclosing Catch frame.
func Throw(message string) Result {
	return Result{Kind: ResultControlSignal, Signal: SignalThrow, ThrowMessage: message}
}

// Node is the contract every action node type implements. InputPorts and
// OutputPorts describe the node's port schema given its design-time config
// (used by engine/graph's PortResolver during load-time validation);
// Execute runs the node against a resolved execution context.
type Node interface {
	InputPorts(config map[string]any) []graph.PortDef
	OutputPorts(config map[string]any) []graph.PortDef
	Execute(ctx context.Context, ec *execctx.Context) (Result, error)
}

// PropertyDef documents one config property a node type accepts, purely
// for tooling (schema generation, UI forms); it plays no role in execution.
type PropertyDef struct {
	Name        string
	DataType    graph.DataType
	Required    bool
	Default     any
	Description string
}

// Describable is implemented by node types that expose their config
// properties for documentation/schema generation.
type Describable interface {
	Properties() []PropertyDef
}
