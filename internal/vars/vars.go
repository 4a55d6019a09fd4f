// Package vars implements the variable environment and textual
// interpolation described in spec.md §4.1: a mutable vars map, an
// immutable env map, and a read-only fixtures map, substituted into
// strings as raw text — never auto-quoted.
package vars

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// namePattern is the variable name grammar: [A-Za-z_][A-Za-z0-9_]*
const namePattern = `[A-Za-z_][A-Za-z0-9_]*`

var substRe = regexp.MustCompile(`\$(vars|env|fixtures)\.(` + namePattern + `)`)

// Scope is the live interpolation environment for one test execution.
// Vars is mutable (written by steps tagged with "as"); Env and Fixtures
// are immutable references set up before step 0.
type Scope struct {
	Vars     map[string]any
	Env      map[string]any
	Fixtures map[string]any
}

// NewScope creates a Scope with an empty vars map.
func NewScope(env, fixtures map[string]any) *Scope {
	if env == nil {
		env = map[string]any{}
	}
	if fixtures == nil {
		fixtures = map[string]any{}
	}
	return &Scope{Vars: map[string]any{}, Env: env, Fixtures: fixtures}
}

// Interpolate performs the spec's left-to-right, non-overlapping textual
// substitution of $vars.KEY / $env.KEY / $fixtures.KEY. Absent keys
// substitute to the empty string; present non-string scalars are
// JSON-encoded. This is raw replacement: callers that need a JS string
// literal must quote the substitution themselves in the step body
// (e.g. '$vars.name'), matching the source's documented trade-off.
func (s *Scope) Interpolate(text string) string {
	return substRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := substRe.FindStringSubmatch(match)
		source, key := groups[1], groups[2]
		var m map[string]any
		switch source {
		case "vars":
			m = s.Vars
		case "env":
			m = s.Env
		case "fixtures":
			m = s.Fixtures
		}
		v, ok := m[key]
		if !ok {
			return ""
		}
		return stringify(v)
	})
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// Set writes a variable. Per spec, callers must only call this after a
// step executed successfully and was not skipped.
func (s *Scope) Set(name string, value any) {
	s.Vars[name] = value
}

// Get reads a single entry of Vars by name. (The expression evaluator in
// internal/eval does not call it: it exposes the Scope's maps directly as
// top-level map accessors.)
func (s *Scope) Get(name string) (any, bool) {
	v, ok := s.Vars[name]
	return v, ok
}

// NamePattern exposes the variable name grammar for validation elsewhere.
func NamePattern() string { return namePattern }
