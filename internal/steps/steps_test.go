package steps

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/chromedir/internal/driver"
	"github.com/ormasoftchile/chromedir/internal/schema"
	"github.com/ormasoftchile/chromedir/internal/vars"
)

func newDeps() *Deps {
	return &Deps{
		Driver:       driver.NewFake(),
		Scope:        vars.NewScope(nil, nil),
		VisitedTests: map[string]bool{},
	}
}

func TestDispatchClickSuccess(t *testing.T) {
	deps := newDeps()
	deps.Driver.(*driver.Fake).Selectors["#submit"] = true
	sel := "#submit"

	res := Dispatch(context.Background(), schema.Step{Click: &sel}, deps)
	require.True(t, res.Success)
	assert.False(t, res.Skipped)
}

func TestDispatchClickElementMissingFails(t *testing.T) {
	deps := newDeps()
	sel := "#missing"

	res := Dispatch(context.Background(), schema.Step{Click: &sel}, deps)
	assert.False(t, res.Success)
	assert.Error(t, res.Error)
}

func TestDispatchIfGuardSkipsStep(t *testing.T) {
	deps := newDeps()
	deps.Scope.Set("enabled", false)
	fake := deps.Driver.(*driver.Fake)
	fake.EvalFunc = func(expr string) (any, error) {
		assert.Equal(t, "false", expr, "a browser-facing if must see the interpolated literal, not the raw $vars.x form")
		return false, nil
	}
	sel := "#whatever"

	res := Dispatch(context.Background(), schema.Step{If: "$vars.enabled", Click: &sel}, deps)
	require.True(t, res.Success)
	assert.True(t, res.Skipped)
}

func TestDispatchIfGuardRunsStepWhenTruthy(t *testing.T) {
	deps := newDeps()
	fake := deps.Driver.(*driver.Fake)
	fake.Selectors["#submit"] = true
	fake.EvalFunc = func(expr string) (any, error) { return true, nil }
	sel := "#submit"

	res := Dispatch(context.Background(), schema.Step{If: "document.querySelector('#submit') !== null", Click: &sel}, deps)
	require.True(t, res.Success)
	assert.False(t, res.Skipped)
}

func TestDispatchAsWritesVariable(t *testing.T) {
	deps := newDeps()
	fake := deps.Driver.(*driver.Fake)
	fake.EvalFunc = func(expr string) (any, error) { return float64(3), nil }
	expr := "1 + 2"

	res := Dispatch(context.Background(), schema.Step{As: "sum", Eval: &expr}, deps)
	require.True(t, res.Success)
	v, ok := deps.Scope.Get("sum")
	require.True(t, ok)
	assert.EqualValues(t, 3, v)
}

func TestDispatchEvalRunsThroughBrowserDriverWithInterpolatedText(t *testing.T) {
	deps := newDeps()
	deps.Scope.Set("x", 4)
	fake := deps.Driver.(*driver.Fake)
	fake.EvalFunc = func(expr string) (any, error) {
		assert.Equal(t, "4 * 2", expr, "eval must send the browser driver already-interpolated text, not the raw $vars.x form")
		return float64(8), nil
	}
	expr := "$vars.x * 2"

	res := Dispatch(context.Background(), schema.Step{As: "doubled", Eval: &expr}, deps)
	require.True(t, res.Success)
	v, _ := deps.Scope.Get("doubled")
	assert.EqualValues(t, 8, v)
}

func TestDispatchUnknownStepErrors(t *testing.T) {
	deps := newDeps()
	res := Dispatch(context.Background(), schema.Step{}, deps)
	assert.False(t, res.Success)
}

func TestDispatchIfGuardDriverErrorFailsStep(t *testing.T) {
	deps := newDeps()
	fake := deps.Driver.(*driver.Fake)
	fake.EvalFunc = func(expr string) (any, error) { return nil, fmt.Errorf("syntax error") }
	sel := "#x"

	res := Dispatch(context.Background(), schema.Step{If: "not valid js(", Click: &sel}, deps)
	assert.False(t, res.Success)
}

func TestDispatchFillFormMultipleFields(t *testing.T) {
	deps := newDeps()
	fake := deps.Driver.(*driver.Fake)
	fake.Selectors["#a"] = true
	fake.Selectors["#b"] = true

	res := Dispatch(context.Background(), schema.Step{FillForm: map[string]string{"#a": "1", "#b": "2"}}, deps)
	require.True(t, res.Success)
	assert.Equal(t, "1", fake.Values["#a"])
	assert.Equal(t, "2", fake.Values["#b"])
}

// TestEvalConditionHTTPRequestLocalUsesExprLang locks in the one carve-out
// in evalCondition's asymmetry: an http_request step's own `if` has no
// page to evaluate against, so it stays a local expr-lang truthiness
// check instead of going through the driver.
func TestEvalConditionHTTPRequestLocalUsesExprLang(t *testing.T) {
	deps := newDeps()
	deps.Scope.Set("count", 3)

	ok, err := evalCondition(context.Background(), deps, true, "vars.count == 3")
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestEvalConditionBrowserFacingUsesDriver confirms every other step
// routes its predicate through the browser driver's Evaluate instead.
func TestEvalConditionBrowserFacingUsesDriver(t *testing.T) {
	deps := newDeps()
	fake := deps.Driver.(*driver.Fake)
	fake.EvalFunc = func(expr string) (any, error) {
		assert.Equal(t, "document.title", expr)
		return "Login", nil
	}

	ok, err := evalCondition(context.Background(), deps, false, "document.title")
	require.NoError(t, err)
	assert.True(t, ok)
}
