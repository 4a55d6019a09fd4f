package steps

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/chromedir/internal/driver"
	"github.com/ormasoftchile/chromedir/internal/schema"
)

func TestHandleLoopOverIteratesEachItem(t *testing.T) {
	deps := newDeps()
	deps.Scope.Set("items", []any{"a", "b", "c"})
	fake := deps.Driver.(*driver.Fake)
	fake.EvalFunc = func(expr string) (any, error) {
		switch expr {
		case `["a","b","c"]`:
			return []any{"a", "b", "c"}, nil
		case "a", "b", "c":
			return expr, nil
		default:
			return nil, fmt.Errorf("unexpected eval expr %q", expr)
		}
	}

	spec := &schema.LoopSpec{
		Over: "$vars.items",
		Steps: []schema.Step{
			{As: "got", Eval: exprPtr("$vars.item")},
		},
	}
	_, _, err := handleLoop(context.Background(), deps, spec)
	require.NoError(t, err)
	got, _ := deps.Scope.Get("got")
	assert.Equal(t, "c", got, "last iteration's value survives in the shared scope")
}

func TestHandleLoopOverRequiresExactlyOneOfOverWhile(t *testing.T) {
	deps := newDeps()
	spec := &schema.LoopSpec{Over: "$vars.items", While: "$vars.more"}
	_, _, err := handleLoop(context.Background(), deps, spec)
	assert.Error(t, err)
}

func TestHandleLoopWhileRequiresMax(t *testing.T) {
	deps := newDeps()
	spec := &schema.LoopSpec{While: "$vars.more"}
	_, _, err := handleLoop(context.Background(), deps, spec)
	assert.Error(t, err)
}

func TestHandleLoopWhileStopsAtMax(t *testing.T) {
	deps := newDeps()
	fake := deps.Driver.(*driver.Fake)
	fake.EvalFunc = func(expr string) (any, error) { return true, nil }
	max := 3
	spec := &schema.LoopSpec{
		While: "true",
		Max:   &max,
		Steps: []schema.Step{
			{As: "noop", Eval: exprPtr("1")},
		},
	}
	_, _, err := handleLoop(context.Background(), deps, spec)
	require.NoError(t, err)
	idx, ok := deps.Scope.Get("index")
	require.True(t, ok)
	assert.EqualValues(t, 2, idx, "max=3 iterations run at index 0,1,2")
}

func TestHandleLoopWhileStopsWhenDriverReturnsFalsy(t *testing.T) {
	deps := newDeps()
	fake := deps.Driver.(*driver.Fake)
	whileCalls := 0
	fake.EvalFunc = func(expr string) (any, error) {
		if expr == "" { // $vars.more never set, interpolates to the empty string
			whileCalls++
			return whileCalls <= 2, nil
		}
		return nil, nil
	}
	max := 10
	spec := &schema.LoopSpec{
		While: "$vars.more",
		Max:   &max,
		Steps: []schema.Step{
			{As: "noop", Eval: exprPtr("1")},
		},
	}
	_, _, err := handleLoop(context.Background(), deps, spec)
	require.NoError(t, err)
	assert.Equal(t, 3, whileCalls, "the predicate is checked once more after the second truthy pass, then breaks on the falsy third")
}

func TestHandleLoopFailurePropagatesLoopContext(t *testing.T) {
	deps := newDeps()
	deps.Scope.Set("items", []any{1, 2})
	fake := deps.Driver.(*driver.Fake)
	fake.EvalFunc = func(expr string) (any, error) { return []any{1, 2}, nil }
	sel := "#never-present"
	spec := &schema.LoopSpec{
		Over: "$vars.items",
		Steps: []schema.Step{
			{Label: "click missing", Click: &sel},
		},
	}
	_, frames, err := handleLoop(context.Background(), deps, spec)
	require.Error(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, 0, frames[0].Iteration)
	assert.Equal(t, "click missing", frames[0].Label)
}

func exprPtr(s string) *string { return &s }
