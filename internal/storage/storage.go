// Package storage implements the Test Storage Contract (spec.md §6.2): a
// durable store of test definitions keyed by slug and run records keyed by
// run id under their test, backed by a directory of YAML test files and
// JSON run files. Grounded in a JSON-persistence idiom seen elsewhere in
// the pack (writeSessionFile/loadSessionFile: marshal-indent,
// os.WriteFile/os.ReadFile, tolerate absence) and this module's own
// schema package for the test document shape; run ids use google/uuid,
// the identifier generator the pack favors over ad-hoc string ids.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/chromedir/internal/model"
	"github.com/ormasoftchile/chromedir/internal/schema"
)

// Store is a file-backed Test Storage implementation rooted at dir, with
// subdirectories "tests/" (one YAML file per test, named by id) and
// "runs/<testId>/" (one JSON file per TestRun, named by run id).
type Store struct {
	dir string
}

// New creates a Store rooted at dir, creating it if absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "tests"), 0755); err != nil {
		return nil, fmt.Errorf("storage: create tests dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "runs"), 0755); err != nil {
		return nil, fmt.Errorf("storage: create runs dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) testPath(id string) string {
	return filepath.Join(s.dir, "tests", id+".yaml")
}

func (s *Store) runDir(testID string) string {
	return filepath.Join(s.dir, "runs", testID)
}

// GetTest loads a test definition by id, or (nil, nil) if it doesn't exist.
func (s *Store) GetTest(ctx context.Context, id string) (*schema.TestDefinition, error) {
	path := s.testPath(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read test %s: %w", id, err)
	}
	var def schema.TestDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("storage: parse test %s: %w", id, err)
	}
	return &def, nil
}

// ListTests returns every saved test whose Tags contain tag (or every test
// when tag is empty), sorted by id.
func (s *Store) ListTests(ctx context.Context, tag string) ([]*schema.TestDefinition, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "tests"))
	if err != nil {
		return nil, fmt.Errorf("storage: list tests: %w", err)
	}
	var out []*schema.TestDefinition
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".yaml")
		def, err := s.GetTest(ctx, id)
		if err != nil || def == nil {
			continue
		}
		if tag != "" && !hasTag(def.Tags, tag) {
			continue
		}
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SaveTest persists def under its own id, overwriting any prior document.
func (s *Store) SaveTest(ctx context.Context, def *schema.TestDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("storage: cannot save test with empty id")
	}
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("storage: marshal test %s: %w", def.ID, err)
	}
	return os.WriteFile(s.testPath(def.ID), data, 0644)
}

// UpdateTest loads the test by id, applies patch, and saves it back.
func (s *Store) UpdateTest(ctx context.Context, id string, patch func(*schema.TestDefinition)) error {
	def, err := s.GetTest(ctx, id)
	if err != nil {
		return err
	}
	if def == nil {
		return fmt.Errorf("storage: test %s not found", id)
	}
	patch(def)
	return s.SaveTest(ctx, def)
}

// DeleteTest removes a test's document. Deleting an absent test is not an error.
func (s *Store) DeleteTest(ctx context.Context, id string) error {
	err := os.Remove(s.testPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete test %s: %w", id, err)
	}
	return nil
}

// SaveRun persists result as a new TestRun under testID, generating an id
// and timestamps.
func (s *Store) SaveRun(ctx context.Context, testID string, result *model.TestResult) (*model.TestRun, error) {
	now := time.Now()
	run := &model.TestRun{
		ID:          uuid.NewString(),
		TestID:      testID,
		Status:      string(result.Status),
		Result:      result,
		StartedAt:   now.Add(-time.Duration(result.DurationMS) * time.Millisecond),
		CompletedAt: &now,
		DurationMS:  &result.DurationMS,
	}
	dir := s.runDir(testID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("storage: create run dir for %s: %w", testID, err)
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("storage: marshal run: %w", err)
	}
	path := filepath.Join(dir, run.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("storage: write run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs for testID (0 = unlimited), optionally
// filtered by status, newest first.
func (s *Store) ListRuns(ctx context.Context, testID string, limit int, status string) ([]*model.TestRun, error) {
	entries, err := os.ReadDir(s.runDir(testID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list runs for %s: %w", testID, err)
	}
	var runs []*model.TestRun
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		runID := strings.TrimSuffix(e.Name(), ".json")
		run, err := s.GetRun(ctx, testID, runID)
		if err != nil || run == nil {
			continue
		}
		if status != "" && run.Status != status {
			continue
		}
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetRun loads a single run record, or (nil, nil) if it doesn't exist.
func (s *Store) GetRun(ctx context.Context, testID, runID string) (*model.TestRun, error) {
	path := filepath.Join(s.runDir(testID), runID+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read run %s: %w", runID, err)
	}
	var run model.TestRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("storage: parse run %s: %w", runID, err)
	}
	return &run, nil
}
