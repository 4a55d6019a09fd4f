package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/chromedir/internal/driver"
	"github.com/ormasoftchile/chromedir/internal/model"
	"github.com/ormasoftchile/chromedir/internal/schema"
)

func strp(s string) *string { return &s }

func TestRunPassesAllSteps(t *testing.T) {
	def := &schema.TestDefinition{
		ID:  "t1",
		URL: "https://example.com",
		Steps: []schema.Step{
			{Label: "one", Eval: strp("1")},
			{Label: "two", As: "x", Eval: strp("2")},
		},
	}
	result := Run(context.Background(), def, Config{Driver: driver.NewFake()})
	require.Equal(t, model.StatusPassed, result.Status)
	assert.Equal(t, 2, result.StepsCompleted)
}

func TestRunFailsAtFirstFailingStep(t *testing.T) {
	sel := "#missing"
	def := &schema.TestDefinition{
		ID:  "t2",
		URL: "https://example.com",
		Steps: []schema.Step{
			{Label: "ok", Eval: strp("1")},
			{Label: "click it", Click: &sel},
			{Label: "never reached", Eval: strp("3")},
		},
	}
	result := Run(context.Background(), def, Config{Driver: driver.NewFake()})
	require.Equal(t, model.StatusFailed, result.Status)
	assert.Equal(t, 1, result.FailedStep)
	assert.Equal(t, "click it", result.FailedLabel)
}

func TestRunBeforeHookFailureAbortsBeforeSteps(t *testing.T) {
	sel := "#missing"
	def := &schema.TestDefinition{
		ID:  "t3",
		URL: "https://example.com",
		Before: []schema.Step{
			{Label: "setup", Click: &sel},
		},
		Steps: []schema.Step{
			{Label: "main", Eval: strp("1")},
		},
	}
	result := Run(context.Background(), def, Config{Driver: driver.NewFake()})
	require.Equal(t, model.StatusFailed, result.Status)
	assert.Equal(t, 0, result.StepsCompleted)
}

func TestRunAfterHooksAlwaysRunOnFailure(t *testing.T) {
	sel := "#missing"
	fake := driver.NewFake()
	def := &schema.TestDefinition{
		ID:  "t4",
		URL: "https://example.com",
		Steps: []schema.Step{
			{Label: "fails", Click: &sel},
		},
		After: []schema.Step{
			{Label: "cleanup", Eval: strp("1")},
		},
	}
	Run(context.Background(), def, Config{Driver: fake})
	assert.True(t, fake.Closed, "driver must be disconnected even after a failing run")
}

func TestRunTimesOutWhenStepsHang(t *testing.T) {
	def := &schema.TestDefinition{
		ID:        "t5",
		URL:       "https://example.com",
		TimeoutMS: 50,
		Steps: []schema.Step{
			{Label: "hangs", Wait: intp(5000)},
		},
	}
	start := time.Now()
	result := Run(context.Background(), def, Config{Driver: driver.NewFake()})
	elapsed := time.Since(start)

	require.Equal(t, model.StatusFailed, result.Status)
	assert.Less(t, elapsed, 2*time.Second)
	assert.NotEmpty(t, result.Error)
}

func TestRunResumeFromSkipsEarlierSteps(t *testing.T) {
	from := 1
	def := &schema.TestDefinition{
		ID:         "t6",
		URL:        "https://example.com",
		ResumeFrom: &from,
		Steps: []schema.Step{
			{Label: "skipped", Eval: strp("1")},
			{Label: "runs", As: "didRun", Eval: strp("2")},
		},
	}
	result := Run(context.Background(), def, Config{Driver: driver.NewFake()})
	require.Equal(t, model.StatusPassed, result.Status)
	assert.Equal(t, 1, result.StepsCompleted)
}

func TestRunResumeFromFallsBackWhenSkippedStepWritesVars(t *testing.T) {
	from := 1
	def := &schema.TestDefinition{
		ID:         "t7",
		URL:        "https://example.com",
		ResumeFrom: &from,
		Steps: []schema.Step{
			{Label: "writes var", As: "needed", Eval: strp("1")},
			{Label: "runs", Eval: strp("2")},
		},
	}
	result := Run(context.Background(), def, Config{Driver: driver.NewFake()})
	require.Equal(t, model.StatusPassed, result.Status)
	assert.Equal(t, 2, result.StepsCompleted)
	assert.NotEmpty(t, result.Warnings)
}

func intp(i int) *int { return &i }
