// Package eval wraps github.com/expr-lang/expr behind a single chokepoint
// so the rest of the engine never imports expr-lang directly (grounded in
// the practice, seen elsewhere in the pack, of funneling all non-textual
// condition evaluation through one place, e.g. an evalCondition helper).
//
// The expr-lang evaluator runs only http_request's local `if`; the other
// predicates (`if`, `assert`, `loop.while`/`loop.over`) go through the
// browser driver, and Truthy applies the falsy convention to their
// results. Neither is used for the textual $vars/$env/$fixtures
// interpolation in internal/vars, which must stay raw per spec.md §4.1.
package eval

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/ormasoftchile/chromedir/internal/vars"
)

// Context exposes a Scope's three maps as top-level accessors, so an
// expression can write `vars.sum > 1` rather than only the interpolated
// string form.
type Context struct {
	Vars     map[string]any `expr:"vars"`
	Env      map[string]any `expr:"env"`
	Fixtures map[string]any `expr:"fixtures"`
}

func newContext(s *vars.Scope) Context {
	return Context{Vars: s.Vars, Env: s.Env, Fixtures: s.Fixtures}
}

// Bool compiles and runs exprStr expecting a boolean result; a
// non-boolean result is an error, and so is an empty expression. ("if"
// fields that are absent are never evaluated at all — the dispatcher
// skips evaluation entirely in that case.)
func Bool(s *vars.Scope, exprStr string) (bool, error) {
	out, err := Run(s, exprStr)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to a boolean (got %T: %v)", exprStr, out, out)
	}
	return b, nil
}

// Run compiles and runs exprStr against the scope's vars/env/fixtures and
// returns the raw result, for callers that need a value rather than a
// strict boolean (http_request's `if`, which applies Truthy to it).
func Run(s *vars.Scope, exprStr string) (any, error) {
	env := newContext(s)
	program, err := expr.Compile(exprStr, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", exprStr, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("eval expression %q: %w", exprStr, err)
	}
	return out, nil
}

// Truthy applies the falsy convention to any value — typically the
// browser driver's Evaluate result for a browser-facing `if`/`assert`/
// `loop.while` predicate, or an expr-lang result from Run.
func Truthy(v any) bool {
	b, _ := asBool(v)
	return b
}

// asBool applies the spec's "falsy" convention: false, nil, 0, and "" are
// falsy; everything else (including non-empty strings such as "0"-looking
// text from JS, and empty slices/maps, as in JS) is truthy. Native bool
// results pass through directly.
func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case nil:
		return false, true
	case string:
		return t != "", true
	case int:
		return t != 0, true
	case int64:
		return t != 0, true
	case float64:
		return t != 0, true
	default:
		return true, true
	}
}
