package graph

// Category classifies a node by its role in the control-flow skeleton,
// independent of the port registry. Pairing invariants (loop start/end,
// Try/Catch/Finally) are checked against this closed vocabulary so
// engine/graph never needs a PortResolver to validate structure.
type Category string

const (
	CategoryOpaque         Category = "opaque" // ordinary action node, resolved via PortResolver
	CategoryStart          Category = "start"
	CategoryEnd            Category = "end"
	CategoryComment        Category = "comment"
	CategoryReroute        Category = "reroute"
	CategoryIf              Category = "if"
	CategorySwitch          Category = "switch"
	CategoryMerge           Category = "merge"
	CategoryForLoopStart    Category = "for_loop_start"
	CategoryForLoopEnd      Category = "for_loop_end"
	CategoryWhileLoopStart  Category = "while_loop_start"
	CategoryWhileLoopEnd    Category = "while_loop_end"
	CategoryBreak           Category = "break"
	CategoryContinue        Category = "continue"
	CategoryTry             Category = "try"
	CategoryCatch           Category = "catch"
	CategoryFinally         Category = "finally"
	CategoryRetry           Category = "retry"
	CategoryThrowError      Category = "throw_error"
	CategorySubWorkflowCall Category = "sub_workflow_call"
)

var builtinTypeNames = map[string]Category{
	"Start":            CategoryStart,
	"End":              CategoryEnd,
	"Comment":          CategoryComment,
	"Reroute":          CategoryReroute,
	"If":               CategoryIf,
	"Switch":           CategorySwitch,
	"Merge":            CategoryMerge,
	"ForLoopStart":     CategoryForLoopStart,
	"ForLoopEnd":       CategoryForLoopEnd,
	"WhileLoopStart":   CategoryWhileLoopStart,
	"WhileLoopEnd":     CategoryWhileLoopEnd,
	"Break":            CategoryBreak,
	"Continue":         CategoryContinue,
	"Try":              CategoryTry,
	"Catch":            CategoryCatch,
	"Finally":          CategoryFinally,
	"Retry":            CategoryRetry,
	"ThrowError":       CategoryThrowError,
	"SubWorkflowCall":  CategorySubWorkflowCall,
}

// CategoryOf classifies typeName. Any name outside the closed built-in set
// is CategoryOpaque: an ordinary node resolved through the port registry.
func CategoryOf(typeName string) Category {
	if c, ok := builtinTypeNames[typeName]; ok {
		return c
	}
	return CategoryOpaque
}

// IsControlFlow reports whether c is one of the built-in control-flow
// categories (anything but opaque).
func (c Category) IsControlFlow() bool { return c != CategoryOpaque }

// IsLoopStart reports whether c opens a loop frame.
func (c Category) IsLoopStart() bool {
	return c == CategoryForLoopStart || c == CategoryWhileLoopStart
}

// IsLoopEnd reports whether c closes a loop frame.
func (c Category) IsLoopEnd() bool {
	return c == CategoryForLoopEnd || c == CategoryWhileLoopEnd
}
