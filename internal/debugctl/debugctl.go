// Package debugctl implements the per-run cooperative pause/step/continue/
// run-to/stop gate described in spec.md §4.4. It is the programmatic
// counterpart to an interactive REPL debugger: a REPL debugger typically
// pauses by blocking on readline.Readline in the same goroutine as
// execution, but this engine instead runs each test on its own goroutine
// (so the suite runner can run several concurrently) and the debugger
// lives in a different goroutine (a REPL or a WebSocket handler), so the
// gate is a channel-based one-shot resolver rather than a blocking stdin
// read.
package debugctl

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the debug controller's current mode.
type State int

const (
	Running State = iota
	Paused
	Stopped
)

// ErrStopped is returned by Gate once Stop has been called.
var ErrStopped = errors.New("Stopped by user")

// Config configures a Controller.
type Config struct {
	StepDelay time.Duration
	Debug     bool
	OnPause   func(currentIndex, total int)
	OnResume  func()
}

// Controller is the pause/step/continue/run-to/stop gate for one run.
// At most one goroutine ever waits on a pause at a time (the runner).
type Controller struct {
	mu          sync.Mutex
	state       State
	stepDelay   time.Duration
	debug       bool
	runToTarget *int
	onPause     func(currentIndex, total int)
	onResume    func()

	resumeCh chan struct{} // closed/replaced to release a blocked Gate call
}

// New creates a Controller in the Running state.
func New(cfg Config) *Controller {
	return &Controller{
		state:     Running,
		stepDelay: cfg.StepDelay,
		debug:     cfg.Debug,
		onPause:   cfg.OnPause,
		onResume:  cfg.OnResume,
	}
}

// Gate is called by the step runner between steps. See spec.md §4.4 for
// the four-step semantics it implements.
func (c *Controller) Gate(ctx context.Context, currentIndex, total int) error {
	c.mu.Lock()
	if c.state == Stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	stepDelay := c.stepDelay
	c.mu.Unlock()

	if stepDelay > 0 && currentIndex > 0 {
		if err := c.sleep(ctx, stepDelay); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.state == Stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	shouldPause := c.debug && (c.runToTarget == nil || currentIndex == *c.runToTarget)
	if !shouldPause {
		c.mu.Unlock()
		return nil
	}
	if c.runToTarget != nil && currentIndex == *c.runToTarget {
		c.runToTarget = nil
	}
	c.state = Paused
	wait := make(chan struct{})
	c.resumeCh = wait
	onPause := c.onPause
	onResume := c.onResume
	c.mu.Unlock()

	if onPause != nil {
		onPause(currentIndex, total)
	}

	select {
	case <-wait:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	stopped := c.state == Stopped
	c.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	if onResume != nil {
		onResume()
	}
	return nil
}

// sleep blocks for d, interruptible by Stop() or ctx cancellation.
func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	stopCh := make(chan struct{})
	c.mu.Lock()
	prevResume := c.resumeCh
	c.resumeCh = stopCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.resumeCh == stopCh {
			c.resumeCh = prevResume
		}
		c.mu.Unlock()
	}()

	select {
	case <-timer.C:
		return nil
	case <-stopCh:
		c.mu.Lock()
		stopped := c.state == Stopped
		c.mu.Unlock()
		if stopped {
			return ErrStopped
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Step unblocks a paused gate and re-arms pause mode so the next Gate call
// also blocks. A no-op when not currently paused.
func (c *Controller) Step() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Paused {
		return
	}
	c.debug = true
	c.release()
}

// Continue disables step mode, clears any run-to target, and unblocks a
// paused gate.
func (c *Controller) Continue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug = false
	c.runToTarget = nil
	c.release()
}

// RunTo arms a run-to target: steps with currentIndex < n pass the gate
// without pausing; pause mode re-engages once currentIndex == n.
func (c *Controller) RunTo(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug = true
	c.runToTarget = &n
	c.release()
}

// Stop transitions to Stopped; the next Gate call (in progress or future)
// rejects with ErrStopped.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Stopped
	c.release()
}

// release unblocks a currently-waiting Gate call, if any. Caller must hold mu.
func (c *Controller) release() {
	if c.state == Paused {
		c.state = Running
	}
	if c.resumeCh != nil {
		select {
		case <-c.resumeCh:
			// already closed
		default:
			close(c.resumeCh)
		}
		c.resumeCh = nil
	}
}

// CurrentState reports the controller's current state, for introspection
// by a REPL or WebSocket front-end.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
