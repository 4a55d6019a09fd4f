package steps

import (
	"context"
	"fmt"
	"reflect"

	"github.com/ormasoftchile/chromedir/internal/eval"
	"github.com/ormasoftchile/chromedir/internal/model"
	"github.com/ormasoftchile/chromedir/internal/schema"
)

// loopError carries both a human-readable, fully-wrapped message and the
// structured loopContext breadcrumb (outermost frame first) described in
// spec.md §3/§4.3.4.
type loopError struct {
	frames []model.LoopFrame
	msg    string
	cause  error
}

func (e *loopError) Error() string { return e.msg }
func (e *loopError) Unwrap() error { return e.cause }

// handleLoop drives a bounded (`over`) or guarded (`while`) iteration over
// nested steps, sharing the caller's scope so `as` updates inside the body
// are visible afterward.
func handleLoop(ctx context.Context, deps *Deps, spec *schema.LoopSpec) (any, []model.LoopFrame, error) {
	if (spec.Over == "") == (spec.While == "") {
		return nil, nil, fmt.Errorf("loop: exactly one of over/while must be set")
	}
	if spec.While != "" && spec.Max == nil {
		return nil, nil, fmt.Errorf("loop: while requires max")
	}

	itemVar := spec.ItemVar()
	indexVar := spec.IndexVar()

	runBody := func(i int) error {
		for k, bodyStep := range spec.Steps {
			res := Dispatch(ctx, bodyStep, deps)
			if res.Success {
				continue
			}
			frame := model.LoopFrame{Iteration: i, Step: k, Label: bodyStep.Label}
			frames := []model.LoopFrame{frame}
			if inner, ok := res.Error.(*loopError); ok {
				frames = append(frames, inner.frames...)
			}
			return &loopError{
				frames: frames,
				msg:    fmt.Sprintf("Loop iteration %d at %s: %v", i, bodyStep.Label, res.Error),
				cause:  res.Error,
			}
		}
		return nil
	}

	if spec.Over != "" {
		overExpr := deps.Scope.Interpolate(spec.Over)
		raw, err := deps.Driver.Evaluate(ctx, overExpr)
		if err != nil {
			return nil, nil, fmt.Errorf("loop over %q: %w", spec.Over, err)
		}
		items := toSlice(raw)
		n := len(items)
		if spec.Max != nil && *spec.Max < n {
			n = *spec.Max
		}
		for i := 0; i < n; i++ {
			deps.Scope.Set(itemVar, items[i])
			deps.Scope.Set(indexVar, i)
			if err := runBody(i); err != nil {
				le := err.(*loopError)
				return nil, le.frames, le
			}
		}
		return nil, nil, nil
	}

	max := *spec.Max
	for i := 0; i < max; i++ {
		whileExpr := deps.Scope.Interpolate(spec.While)
		v, err := deps.Driver.Evaluate(ctx, whileExpr)
		if err != nil {
			return nil, nil, fmt.Errorf("loop while %q: %w", spec.While, err)
		}
		if !eval.Truthy(v) {
			break
		}
		deps.Scope.Set(indexVar, i)
		if err := runBody(i); err != nil {
			le := err.(*loopError)
			return nil, le.frames, le
		}
	}
	return nil, nil, nil
}

// toSlice normalizes the driver's Evaluate result (typically []any, but reflection
// guards against any concrete slice/array kind) into []any.
func toSlice(raw any) []any {
	if raw == nil {
		return nil
	}
	if s, ok := raw.([]any); ok {
		return s
	}
	v := reflect.ValueOf(raw)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out
}
