package control

// TryFrame tracks one active Try/Catch/Finally block so engine/runtime can
// route a Throw control signal to the nearest enclosing Catch, and run the
// Finally branch exactly once regardless of whether the Try branch threw.
type TryFrame struct {
	NodeID       string // the Try node id
	CatchNodeID  string
	FinallyNodeID string
	ranFinally   bool
	caught       *CaughtError
}

// CaughtError is the scope payload a Catch branch sees (error_message/
// error_type/stack_trace).
type CaughtError struct {
	Message    string
	Type       string
	StackTrace string
}

// NewTryFrame builds a frame for one Try node, with its paired Catch and
// Finally node ids (either may be empty if the block omits that branch).
func NewTryFrame(nodeID, catchNodeID, finallyNodeID string) *TryFrame {
	return &TryFrame{NodeID: nodeID, CatchNodeID: catchNodeID, FinallyNodeID: finallyNodeID}
}

// Catch records that an error was thrown inside the Try branch, returning
// the scope payload the Catch branch should see.
func (f *TryFrame) Catch(message, errType, stackTrace string) *CaughtError {
	f.caught = &CaughtError{Message: message, Type: errType, StackTrace: stackTrace}
	return f.caught
}

// Caught returns the most recently caught error, or nil if the Try branch
// completed without throwing.
func (f *TryFrame) Caught() *CaughtError { return f.caught }

// ShouldRunFinally reports whether the Finally branch still needs to run,
// and marks it as run so a second call (e.g. after both Try and Catch
// paths converge into it) returns false.
func (f *TryFrame) ShouldRunFinally() bool {
	if f.FinallyNodeID == "" || f.ranFinally {
		return false
	}
	f.ranFinally = true
	return true
}
