package filter

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getconsole/consolekit/pkg/props"
)

// Where is a compiled client-side predicate over resource properties,
// for criteria that a flat name=value filter cannot express
// (e.g. `status == "active" && size > 10`).
type Where struct {
	source  string
	program *vm.Program
}

// CompileWhere compiles a boolean expression. Property names are referenced
// as plain identifiers; nested properties with dot access.
func CompileWhere(source string) (*Where, error) {
	program, err := expr.Compile(source, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile where expression %q: %w", source, err)
	}
	return &Where{source: source, program: program}, nil
}

// Eval runs the predicate against the property bag.
func (w *Where) Eval(p *props.Map) (bool, error) {
	out, err := expr.Run(w.program, p.Flatten())
	if err != nil {
		return false, fmt.Errorf("evaluate where expression %q: %w", w.source, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("where expression %q did not produce a bool", w.source)
	}
	return b, nil
}

// Source returns the original expression text.
func (w *Where) Source() string {
	return w.source
}
