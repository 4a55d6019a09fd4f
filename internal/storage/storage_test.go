package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/chromedir/internal/model"
	"github.com/ormasoftchile/chromedir/internal/schema"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestSaveAndGetTest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	def := &schema.TestDefinition{ID: "login", URL: "https://example.com", Tags: []string{"smoke"}}
	require.NoError(t, store.SaveTest(ctx, def))

	got, err := store.GetTest(ctx, "login")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "login", got.ID)
	assert.Equal(t, "https://example.com", got.URL)
	assert.Equal(t, []string{"smoke"}, got.Tags)
}

func TestGetTestMissingReturnsNilNoError(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetTest(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveTestRejectsEmptyID(t *testing.T) {
	store := newTestStore(t)
	err := store.SaveTest(context.Background(), &schema.TestDefinition{URL: "https://example.com"})
	assert.Error(t, err)
}

func TestListTestsFiltersByTagAndSortsByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTest(ctx, &schema.TestDefinition{ID: "c", URL: "https://example.com", Tags: []string{"smoke"}}))
	require.NoError(t, store.SaveTest(ctx, &schema.TestDefinition{ID: "a", URL: "https://example.com", Tags: []string{"smoke"}}))
	require.NoError(t, store.SaveTest(ctx, &schema.TestDefinition{ID: "b", URL: "https://example.com", Tags: []string{"regression"}}))

	all, err := store.ListTests(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	smoke, err := store.ListTests(ctx, "smoke")
	require.NoError(t, err)
	require.Len(t, smoke, 2)
	assert.Equal(t, "a", smoke[0].ID)
	assert.Equal(t, "c", smoke[1].ID)
}

func TestUpdateTestAppliesPatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTest(ctx, &schema.TestDefinition{ID: "login", URL: "https://example.com"}))

	err := store.UpdateTest(ctx, "login", func(def *schema.TestDefinition) {
		def.Tags = append(def.Tags, "smoke")
	})
	require.NoError(t, err)

	got, err := store.GetTest(ctx, "login")
	require.NoError(t, err)
	assert.Equal(t, []string{"smoke"}, got.Tags)
}

func TestUpdateTestMissingErrors(t *testing.T) {
	store := newTestStore(t)
	err := store.UpdateTest(context.Background(), "nope", func(*schema.TestDefinition) {})
	assert.Error(t, err)
}

func TestDeleteTestRemovesIt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTest(ctx, &schema.TestDefinition{ID: "login", URL: "https://example.com"}))
	require.NoError(t, store.DeleteTest(ctx, "login"))

	got, err := store.GetTest(ctx, "login")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteTestAbsentIsNotAnError(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.DeleteTest(context.Background(), "never-existed"))
}

func TestSaveRunAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	result := &model.TestResult{Status: model.StatusPassed, StepsCompleted: 3, DurationMS: 120}

	run, err := store.SaveRun(ctx, "login", result)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, "login", run.TestID)
	assert.Equal(t, "passed", run.Status)

	got, err := store.GetRun(ctx, "login", run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, 3, got.Result.StepsCompleted)
}

func TestGetRunMissingReturnsNilNoError(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetRun(context.Background(), "login", "no-such-run")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListRunsNewestFirstWithLimitAndStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	passed := &model.TestResult{Status: model.StatusPassed, DurationMS: 10}
	failed := &model.TestResult{Status: model.StatusFailed, DurationMS: 20}

	var ids []string
	for _, r := range []*model.TestResult{passed, failed, passed} {
		run, err := store.SaveRun(ctx, "login", r)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	all, err := store.ListRuns(ctx, "login", 0, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	onlyFailed, err := store.ListRuns(ctx, "login", 0, "failed")
	require.NoError(t, err)
	require.Len(t, onlyFailed, 1)
	assert.Equal(t, "failed", onlyFailed[0].Status)

	limited, err := store.ListRuns(ctx, "login", 1, "")
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestListRunsUnknownTestReturnsEmpty(t *testing.T) {
	store := newTestStore(t)
	runs, err := store.ListRuns(context.Background(), "never-ran", 0, "")
	require.NoError(t, err)
	assert.Empty(t, runs)
}
