package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError is one finding from ValidateFile, located by a
// JSON-path-like Path and classified by Phase (structural, semantic,
// domain) and Severity (error, warning).
type ValidationError struct {
	Phase    string `json:"phase"`
	Path     string `json:"path"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile runs the full three-phase validation pipeline on a test
// definition file: structural (strict decode), semantic (JSON Schema,
// generated from TestDefinition via invopop/jsonschema and checked with
// santhosh-tekuri/jsonschema), and domain (cross-field and
// filesystem-backed rules neither phase above can express).
func ValidateFile(path string) (*TestDefinition, []*ValidationError) {
	def, err := ParseFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase: "structural", Message: err.Error(), Severity: "error",
		}}
	}

	var errs []*ValidationError
	errs = append(errs, validateSemantic(def)...)
	errs = append(errs, validateDomain(def, filepath.Dir(path))...)

	if len(errs) > 0 {
		return def, errs
	}
	return def, nil
}

func validateSemantic(def *TestDefinition) []*ValidationError {
	data, err := json.Marshal(def)
	if err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("marshal for schema validation: %v", err), Severity: "error"}}
	}

	schemaDoc, err := schemaAsMap()
	if err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("generate schema: %v", err), Severity: "error"}}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("chromedir-test.json", schemaDoc); err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("add schema resource: %v", err), Severity: "error"}}
	}
	sch, err := c.Compile("chromedir-test.json")
	if err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("compile schema: %v", err), Severity: "error"}}
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("unmarshal document: %v", err), Severity: "error"}}
	}

	if err := sch.Validate(doc); err != nil {
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			var out []*ValidationError
			for _, cause := range flattenValidationErrors(ve) {
				out = append(out, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
			return out
		}
		return []*ValidationError{{Phase: "semantic", Message: err.Error(), Severity: "error"}}
	}
	return nil
}

func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

func schemaAsMap() (any, error) {
	b, err := json.Marshal(JSONSchema())
	if err != nil {
		return nil, err
	}
	var m any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// validateDomain checks cross-field and filesystem-backed rules the JSON
// Schema can't express: exactly-one-of loop selectors, fixture files
// existing on disk, resumeFrom bounds.
func validateDomain(def *TestDefinition, baseDir string) []*ValidationError {
	var errs []*ValidationError

	if def.URL == "" {
		errs = append(errs, &ValidationError{Phase: "domain", Path: "url", Message: "url is required", Severity: "error"})
	}
	if len(def.Steps) == 0 {
		errs = append(errs, &ValidationError{Phase: "domain", Path: "steps", Message: "test must contain at least one step", Severity: "error"})
	}

	for _, ref := range def.Fixtures {
		if ref.Name == "" || ref.Path == "" {
			errs = append(errs, &ValidationError{Phase: "domain", Path: "fixtures", Message: "fixture entries require both name and path", Severity: "error"})
			continue
		}
		p := ref.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		if _, err := os.Stat(p); err != nil {
			errs = append(errs, &ValidationError{Phase: "domain", Path: fmt.Sprintf("fixtures.%s", ref.Name), Message: fmt.Sprintf("fixture file not found: %s", ref.Path), Severity: "error"})
		}
	}

	errs = append(errs, validateSteps(def.Before, "before")...)
	errs = append(errs, validateSteps(def.Steps, "steps")...)
	errs = append(errs, validateSteps(def.After, "after")...)

	if def.ResumeFrom != nil && (*def.ResumeFrom < 0 || *def.ResumeFrom > len(def.Steps)) {
		errs = append(errs, &ValidationError{Phase: "domain", Path: "resumeFrom", Message: "resumeFrom is out of range of steps", Severity: "error"})
	}

	return errs
}

func validateSteps(steps []Step, path string) []*ValidationError {
	var errs []*ValidationError
	for i, s := range steps {
		p := fmt.Sprintf("%s[%d]", path, i)
		if s.Loop != nil {
			hasOver := s.Loop.Over != ""
			hasWhile := s.Loop.While != ""
			if hasOver == hasWhile {
				errs = append(errs, &ValidationError{Phase: "domain", Path: p + ".loop", Message: "loop requires exactly one of over or while", Severity: "error"})
			}
			if hasWhile && s.Loop.Max == nil {
				errs = append(errs, &ValidationError{Phase: "domain", Path: p + ".loop.max", Message: "loop.while requires loop.max to bound iteration", Severity: "error"})
			}
			errs = append(errs, validateSteps(s.Loop.Steps, p+".loop.steps")...)
		}
	}
	return errs
}
