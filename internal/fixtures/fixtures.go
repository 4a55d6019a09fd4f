// Package fixtures implements the Fixture Loader **[ADDED]**: loading the
// documents named by a TestDefinition's `fixtures` list into
// `$fixtures.<name>` before step 0, so tests can reference realistic
// canned data (API response bodies, seed rows) without inlining them into
// the step sequence. Grounded in a scenario-loading idiom seen elsewhere
// in the pack — read a path, parse by extension, fail loud on an
// empty/malformed document — generalized from "one fixed scenario shape"
// to "any YAML/JSON document keyed by fixture name".
package fixtures

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/chromedir/internal/schema"
)

// Load reads every fixture named in refs, resolving relative paths against
// baseDir, and returns them keyed by fixture name for seeding into a
// RunState's Fixtures map.
func Load(baseDir string, refs []schema.FixtureRef) (map[string]any, error) {
	out := make(map[string]any, len(refs))
	for _, ref := range refs {
		path := ref.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		doc, err := loadDocument(path)
		if err != nil {
			return nil, fmt.Errorf("fixture %q: %w", ref.Name, err)
		}
		out[ref.Name] = doc
	}
	return out, nil
}

func loadDocument(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture file: %w", err)
	}
	var doc any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse fixture json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse fixture yaml: %w", err)
		}
	}
	return doc, nil
}
