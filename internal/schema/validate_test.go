package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidateFileValidDefinition(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "ok.yaml", `
id: login
name: Login test
url: https://example.com/login
steps:
  - label: fill username
    fill:
      selector: "#user"
      value: alice
`)
	def, errs := ValidateFile(path)
	require.Empty(t, errs)
	require.NotNil(t, def)
	assert.Equal(t, "login", def.ID)
	assert.Len(t, def.Steps, 1)
}

func TestValidateFileMissingURL(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "no-url.yaml", `
id: broken
steps:
  - label: noop
    eval: "1"
`)
	_, errs := ValidateFile(path)
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if e.Phase == "domain" && e.Path == "url" {
			found = true
		}
	}
	assert.True(t, found, "expected a domain-phase url error, got %+v", errs)
}

func TestValidateFileNoSteps(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "no-steps.yaml", `
id: empty
url: https://example.com
`)
	_, errs := ValidateFile(path)
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if e.Phase == "domain" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateFileMissingFixture(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "fixture.yaml", `
id: withfixture
url: https://example.com
fixtures:
  - name: users
    path: users.json
steps:
  - label: noop
    eval: "1"
`)
	_, errs := ValidateFile(path)
	require.NotEmpty(t, errs)
	assert.Equal(t, "domain", errs[0].Phase)
}

func TestValidateFileResumeFromOutOfBounds(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "resume.yaml", `
id: resumetest
url: https://example.com
resumeFrom: 5
steps:
  - label: one
    eval: "1"
`)
	_, errs := ValidateFile(path)
	require.NotEmpty(t, errs)
	assert.Equal(t, "domain", errs[0].Phase)
}

func TestValidateFileResumeFromAtStepCountIsLegal(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "resume-boundary.yaml", `
id: resumeboundary
url: https://example.com
resumeFrom: 1
steps:
  - label: one
    eval: "1"
`)
	_, errs := ValidateFile(path)
	for _, e := range errs {
		if e.Phase == "domain" && e.Path == "resumeFrom" {
			t.Fatalf("resumeFrom == len(steps) is the legal skip-everything boundary, got error: %+v", e)
		}
	}
}

func TestValidateFileLoopRequiresExactlyOneOfOverWhile(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "loop.yaml", `
id: looptest
url: https://example.com
steps:
  - label: bad loop
    loop:
      over: "vars.items"
      while: "vars.more"
      steps:
        - label: body
          eval: "1"
`)
	_, errs := ValidateFile(path)
	require.NotEmpty(t, errs)
	assert.Equal(t, "domain", errs[0].Phase)
}

func TestValidateFileLoopWhileRequiresMax(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "loop-while.yaml", `
id: loopwhile
url: https://example.com
steps:
  - label: while loop
    loop:
      while: "vars.more"
      steps:
        - label: body
          eval: "1"
`)
	_, errs := ValidateFile(path)
	require.NotEmpty(t, errs)
	assert.Equal(t, "domain", errs[0].Phase)
}

func TestValidationErrorString(t *testing.T) {
	e := &ValidationError{Phase: "domain", Path: "url", Message: "is required", Severity: "error"}
	assert.Equal(t, "[domain] url: is required", e.Error())
}
