// Package control implements the control-flow engine: If/Switch/Merge
// routing, For/While loop frames, Break/Continue signal handling, Try/
// Catch/Finally, the Retry block, and SubWorkflowCall depth tracking.
package control

import (
	"fmt"
	"regexp"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"

	"github.com/casarerpa/engine/engine/core"
	"github.com/casarerpa/engine/pkg/tplengine"
)

// ConditionEvaluator evaluates If/Switch/While condition expressions. When
// expr is exactly one placeholder (e.g. "{{ .done }}") it is resolved
// directly against the variable snapshot rather than round-tripped through
// CEL, since a bare boolean variable reference needs no expression
// language at all; anything more complex is parsed and evaluated as CEL.
type ConditionEvaluator struct {
	env *cel.Env
}

// NewConditionEvaluator builds an evaluator whose CEL environment declares
// one variable per name in declVars, each typed cel.DynType since workflow
// variables have no static type.
func NewConditionEvaluator(declVars []string) (*ConditionEvaluator, error) {
	opts := make([]cel.EnvOption, 0, len(declVars))
	for _, v := range declVars {
		opts = append(opts, cel.Variable(v, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, core.NewError(err, core.ErrInternal, map[string]any{"op": "new_cel_env"})
	}
	return &ConditionEvaluator{env: env}, nil
}

func isBarePlaceholder(expr string) bool {
	trimmed := expr
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t') {
		trimmed = trimmed[1:]
	}
	for len(trimmed) > 0 && (trimmed[len(trimmed)-1] == ' ' || trimmed[len(trimmed)-1] == '\t') {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if len(trimmed) < 4 {
		return false
	}
	if trimmed[:2] != "{{" || trimmed[len(trimmed)-2:] != "}}" {
		return false
	}
	inner := trimmed[2 : len(trimmed)-2]
	return !tplengine.HasTemplate(inner) // inner has no nested delimiters of its own
}

// EvalBool evaluates expr against data and returns a bool. data supplies
// both the placeholder snapshot (for the bare-placeholder shortcut) and the
// CEL activation variables (for the general case).
func (c *ConditionEvaluator) EvalBool(expr string, data map[string]any) (bool, error) {
	if isBarePlaceholder(expr) {
		name := stripBraces(expr)
		v, ok := data[name]
		if !ok {
			return false, core.NewError(fmt.Errorf("undefined condition variable %q", name),
				core.ErrUndefinedVariable, map[string]any{"name": name})
		}
		b, ok := v.(bool)
		if !ok {
			return false, core.NewError(fmt.Errorf("condition variable %q is not a boolean", name),
				core.ErrTypeMismatch, map[string]any{"name": name})
		}
		return b, nil
	}
	out, err := c.eval(expr, data)
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, core.NewError(fmt.Errorf("condition %q did not evaluate to a boolean", expr),
			core.ErrTypeMismatch, map[string]any{"expression": expr})
	}
	return b, nil
}

// EvalAny evaluates expr (e.g. a Switch value expression) and returns the
// raw result, for comparison against each case value.
func (c *ConditionEvaluator) EvalAny(expr string, data map[string]any) (any, error) {
	out, err := c.eval(expr, data)
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

// placeholderRe matches a `{{name}}` or `{{ .name }}` placeholder embedded
// in a larger expression (e.g. "{{x}} > 10"). CEL has no placeholder
// syntax of its own, so these are stripped down to the bare identifier
// before compiling; the identifier then resolves natively against the
// activation map built from data, same as a hand-written CEL variable
// reference would.
var placeholderRe = regexp.MustCompile(`\{\{\s*\.?([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

func stripPlaceholderDelimiters(expr string) string {
	return placeholderRe.ReplaceAllString(expr, "$1")
}

func (c *ConditionEvaluator) eval(expr string, data map[string]any) (ref.Val, error) {
	expr = stripPlaceholderDelimiters(expr)
	ast, iss := c.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, core.NewError(iss.Err(), core.ErrWorkflowValidation, map[string]any{"expression": expr})
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, core.NewError(err, core.ErrInternal, map[string]any{"expression": expr})
	}
	vars := make(map[string]any, len(data))
	for k, v := range data {
		vars[k] = v
	}
	out, _, err := prg.Eval(vars)
	if err != nil {
		return nil, core.NewError(err, core.ErrWorkflowValidation, map[string]any{"expression": expr})
	}
	return out, nil
}

func stripBraces(expr string) string {
	trimmed := expr
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t') {
		trimmed = trimmed[1:]
	}
	for len(trimmed) > 0 && (trimmed[len(trimmed)-1] == ' ' || trimmed[len(trimmed)-1] == '\t') {
		trimmed = trimmed[:len(trimmed)-1]
	}
	inner := trimmed[2 : len(trimmed)-2]
	for len(inner) > 0 && inner[0] == ' ' {
		inner = inner[1:]
	}
	for len(inner) > 0 && inner[len(inner)-1] == ' ' {
		inner = inner[:len(inner)-1]
	}
	if len(inner) > 0 && inner[0] == '.' {
		inner = inner[1:]
	}
	return inner
}
