// Package session implements the Session Manager from spec.md §4.6: a
// durable sessionId -> {targetId, createdAt, lastUsed} map backing browser
// tab reuse across test runs, mutated by a single writer goroutine so
// concurrent suite workers never race on the backing JSON file.
//
// The persistence shape (marshal-indent, atomic write, reload on start) is
// grounded in a save/load pair seen elsewhere in the pack; the
// single-writer goroutine owning all mutations is grounded in a
// command-channel pattern for a long-lived server (there, one command
// kind per channel), generalized here to "one function-closure channel
// carrying any mutation".
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ormasoftchile/chromedir/internal/model"
)

// Manager owns the sessionId -> entry map and serializes all mutations
// through a single goroutine reading from a command channel.
type Manager struct {
	path string
	cmds chan func(map[string]model.SessionEntry)
	done chan struct{}
}

// New creates a Manager persisting to path, loading any existing state.
// The background writer goroutine is started immediately; call Close to
// stop it.
func New(path string) (*Manager, error) {
	entries, err := load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		path: path,
		cmds: make(chan func(map[string]model.SessionEntry), 32),
		done: make(chan struct{}),
	}
	go m.run(entries)
	return m, nil
}

func (m *Manager) run(entries map[string]model.SessionEntry) {
	defer close(m.done)
	for cmd := range m.cmds {
		cmd(entries)
		if err := save(m.path, entries); err != nil {
			fmt.Fprintf(os.Stderr, "session: save error: %v\n", err)
		}
	}
}

// exec enqueues fn to run on the writer goroutine and blocks until it has
// run, returning ctx's error if ctx ends first and nil otherwise.
func (m *Manager) exec(ctx context.Context, fn func(map[string]model.SessionEntry)) error {
	doneCh := make(chan struct{})
	wrapped := func(entries map[string]model.SessionEntry) {
		fn(entries)
		close(doneCh)
	}
	select {
	case m.cmds <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the entry for sessionID, if any.
func (m *Manager) Get(ctx context.Context, sessionID string) (model.SessionEntry, bool, error) {
	var out model.SessionEntry
	var ok bool
	err := m.exec(ctx, func(entries map[string]model.SessionEntry) {
		out, ok = entries[sessionID]
	})
	return out, ok, err
}

// Touch creates or refreshes the entry for sessionID, setting TargetID on
// first use and bumping LastUsed on every call.
func (m *Manager) Touch(ctx context.Context, sessionID, targetID string, now time.Time) error {
	return m.exec(ctx, func(entries map[string]model.SessionEntry) {
		e, ok := entries[sessionID]
		if !ok {
			e = model.SessionEntry{TargetID: targetID, CreatedAt: now}
		}
		if targetID != "" {
			e.TargetID = targetID
		}
		e.LastUsed = now
		entries[sessionID] = e
	})
}

// Delete removes sessionID's entry, if present.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.exec(ctx, func(entries map[string]model.SessionEntry) {
		delete(entries, sessionID)
	})
}

// List returns a snapshot of all entries keyed by sessionId.
func (m *Manager) List(ctx context.Context) (map[string]model.SessionEntry, error) {
	out := map[string]model.SessionEntry{}
	err := m.exec(ctx, func(entries map[string]model.SessionEntry) {
		for k, v := range entries {
			out[k] = v
		}
	})
	return out, err
}

// Close stops the writer goroutine and waits for it to drain.
func (m *Manager) Close() {
	close(m.cmds)
	<-m.done
}

func load(path string) (map[string]model.SessionEntry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]model.SessionEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	if len(data) == 0 {
		return map[string]model.SessionEntry{}, nil
	}
	var entries map[string]model.SessionEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupted registry (e.g. truncated by a crash mid-write) must
		// not stop the manager from starting: warn and fall back to an
		// empty registry rather than propagating the parse error.
		fmt.Fprintf(os.Stderr, "session: %s is corrupt, starting with an empty registry: %v\n", path, err)
		return map[string]model.SessionEntry{}, nil
	}
	if entries == nil {
		entries = map[string]model.SessionEntry{}
	}
	return entries, nil
}

func save(path string, entries map[string]model.SessionEntry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir sessions dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write sessions: %w", err)
	}
	return os.Rename(tmp, path)
}
