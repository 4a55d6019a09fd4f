package debugctl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateNonDebugNeverPauses(t *testing.T) {
	c := New(Config{Debug: false})
	err := c.Gate(context.Background(), 0, 3)
	require.NoError(t, err)
	assert.Equal(t, Running, c.CurrentState())
}

func TestGateStepPausesEachCall(t *testing.T) {
	c := New(Config{Debug: true})
	gateDone := make(chan error, 1)

	go func() { gateDone <- c.Gate(context.Background(), 0, 3) }()
	waitForState(t, c, Paused)
	c.Step()
	require.NoError(t, <-gateDone)

	go func() { gateDone <- c.Gate(context.Background(), 1, 3) }()
	waitForState(t, c, Paused)
	c.Step()
	require.NoError(t, <-gateDone)
}

func TestContinueClearsDebugMode(t *testing.T) {
	c := New(Config{Debug: true})
	gateDone := make(chan error, 1)

	go func() { gateDone <- c.Gate(context.Background(), 0, 3) }()
	waitForState(t, c, Paused)
	c.Continue()
	require.NoError(t, <-gateDone)

	// after Continue, debug mode is off, so a later Gate call doesn't pause.
	err := c.Gate(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Equal(t, Running, c.CurrentState())
}

func TestRunToPausesOnlyAtTarget(t *testing.T) {
	c := New(Config{Debug: false})
	c.RunTo(2)

	err := c.Gate(context.Background(), 0, 5)
	require.NoError(t, err)
	assert.Equal(t, Running, c.CurrentState())

	gateDone := make(chan error, 1)
	go func() { gateDone <- c.Gate(context.Background(), 2, 5) }()
	waitForState(t, c, Paused)
	c.Continue()
	require.NoError(t, <-gateDone)
}

func TestStopRejectsFutureGateCalls(t *testing.T) {
	c := New(Config{Debug: false})
	c.Stop()
	err := c.Gate(context.Background(), 0, 3)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestStopUnblocksAPausedGate(t *testing.T) {
	c := New(Config{Debug: true})
	gateDone := make(chan error, 1)
	go func() { gateDone <- c.Gate(context.Background(), 0, 3) }()
	waitForState(t, c, Paused)
	c.Stop()
	assert.ErrorIs(t, <-gateDone, ErrStopped)
}

func TestOnPauseCallback(t *testing.T) {
	var gotIndex, gotTotal int
	paused := make(chan struct{}, 1)
	c := New(Config{
		Debug: true,
		OnPause: func(currentIndex, total int) {
			gotIndex, gotTotal = currentIndex, total
			paused <- struct{}{}
		},
	})
	go c.Gate(context.Background(), 4, 10)
	select {
	case <-paused:
	case <-time.After(time.Second):
		t.Fatal("OnPause was never called")
	}
	assert.Equal(t, 4, gotIndex)
	assert.Equal(t, 10, gotTotal)
	c.Stop()
}

func waitForState(t *testing.T, c *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.CurrentState() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("controller never reached state %v", want)
}
