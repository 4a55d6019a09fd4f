package suite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/chromedir/internal/driver"
	"github.com/ormasoftchile/chromedir/internal/model"
	"github.com/ormasoftchile/chromedir/internal/schema"
	"github.com/ormasoftchile/chromedir/internal/storage"
)

func strp(s string) *string { return &s }

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestRunRequiresExactlyOneOfTagOrIDs(t *testing.T) {
	store := newStore(t)
	_, err := Run(context.Background(), Config{Storage: store, Driver: driver.NewFake()})
	assert.Error(t, err)

	_, err = Run(context.Background(), Config{Storage: store, Driver: driver.NewFake(), Tag: "smoke", TestIDs: []string{"a"}})
	assert.Error(t, err)
}

func TestRunExecutesAllMatchingTestsPreservingOrder(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTest(ctx, &schema.TestDefinition{
		ID: "a", URL: "https://example.com", Tags: []string{"smoke"},
		Steps: []schema.Step{{Label: "ok", Eval: strp("1")}},
	}))
	sel := "#missing"
	require.NoError(t, store.SaveTest(ctx, &schema.TestDefinition{
		ID: "b", URL: "https://example.com", Tags: []string{"smoke"},
		Steps: []schema.Step{{Label: "fails", Click: &sel}},
	}))

	result, err := Run(ctx, Config{Storage: store, Driver: driver.NewFake(), Tag: "smoke", Concurrency: 2})
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	assert.Equal(t, "a", result.Results[0].TestID)
	assert.Equal(t, "b", result.Results[1].TestID)
	assert.Equal(t, string(model.StatusPassed), result.Results[0].Status)
	assert.Equal(t, string(model.StatusFailed), result.Results[1].Status)
	assert.Equal(t, model.SuiteStatusFailed, result.Status)
}

func TestRunStopOnFailureSkipsRemainingAdmissions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	sel := "#missing"
	require.NoError(t, store.SaveTest(ctx, &schema.TestDefinition{
		ID: "a", URL: "https://example.com",
		Steps: []schema.Step{{Label: "fails", Click: &sel}},
	}))
	require.NoError(t, store.SaveTest(ctx, &schema.TestDefinition{
		ID: "b", URL: "https://example.com",
		Steps: []schema.Step{{Label: "ok", Eval: strp("1")}},
	}))

	result, err := Run(ctx, Config{
		Storage: store, Driver: driver.NewFake(),
		TestIDs: []string{"a", "b"}, Concurrency: 1, StopOnFailure: true,
	})
	require.NoError(t, err)
	// With concurrency 1 the tests run inline in submission order, so the
	// first failure halts the rest; assert the aggregate invariant
	// stop-on-failure promises (one failure halts the rest).
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Skipped)
}

func TestRunUnknownTestIDsAreSilentlyDropped(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTest(ctx, &schema.TestDefinition{
		ID: "a", URL: "https://example.com",
		Steps: []schema.Step{{Label: "ok", Eval: strp("1")}},
	}))

	result, err := Run(ctx, Config{Storage: store, Driver: driver.NewFake(), TestIDs: []string{"a", "does-not-exist"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
}
