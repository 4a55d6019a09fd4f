package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.json")
	m, err := New(path)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestNewOnMissingFileStartsEmpty(t *testing.T) {
	m := newManager(t)
	entries, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTouchCreatesEntryOnFirstUse(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, m.Touch(ctx, "s1", "target-1", now))

	entry, ok, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "target-1", entry.TargetID)
	assert.True(t, entry.CreatedAt.Equal(now))
	assert.True(t, entry.LastUsed.Equal(now))
}

func TestTouchRefreshesLastUsedButKeepsCreatedAt(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	created := time.Now()
	require.NoError(t, m.Touch(ctx, "s1", "target-1", created))

	later := created.Add(time.Minute)
	require.NoError(t, m.Touch(ctx, "s1", "", later))

	entry, ok, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, entry.CreatedAt.Equal(created))
	assert.True(t, entry.LastUsed.Equal(later))
	assert.Equal(t, "target-1", entry.TargetID, "empty targetID on a later touch must not clear the existing one")
}

func TestGetUnknownSessionNotOK(t *testing.T) {
	m := newManager(t)
	_, ok, err := m.Get(context.Background(), "never-touched")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteRemovesEntry(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	require.NoError(t, m.Touch(ctx, "s1", "target-1", time.Now()))
	require.NoError(t, m.Delete(ctx, "s1"))

	_, ok, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListReturnsAllEntries(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, m.Touch(ctx, "s1", "t1", now))
	require.NoError(t, m.Touch(ctx, "s2", "t2", now))

	entries, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "t1", entries["s1"].TargetID)
	assert.Equal(t, "t2", entries["s2"].TargetID)
}

func TestNewOnCorruptFileStartsEmptyInsteadOfErroring(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"s1": {"targetId": `), 0644))

	m, err := New(path)
	require.NoError(t, err, "a corrupt registry must warn and start empty, not fail New")
	defer m.Close()

	entries, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStatePersistsAcrossManagerRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	m1, err := New(path)
	require.NoError(t, err)
	require.NoError(t, m1.Touch(context.Background(), "s1", "target-1", time.Now()))
	m1.Close()

	m2, err := New(path)
	require.NoError(t, err)
	defer m2.Close()

	entry, ok, err := m2.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "target-1", entry.TargetID)
}
