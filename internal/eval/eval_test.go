package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/chromedir/internal/vars"
)

func TestBool(t *testing.T) {
	s := vars.NewScope(map[string]any{"enabled": true}, nil)
	s.Set("count", 2)

	ok, err := Bool(s, "vars.count > 1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Bool(s, "env.enabled")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Bool(s, "vars.count > 10")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBoolNonBooleanResultErrors(t *testing.T) {
	s := vars.NewScope(nil, nil)
	_, err := Bool(s, `"a string"`)
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	s := vars.NewScope(nil, nil)
	s.Set("items", []any{1, 2, 3})

	out, err := Run(s, "len(vars.items)")
	require.NoError(t, err)
	assert.EqualValues(t, 3, out)
}

func TestRunCompileError(t *testing.T) {
	s := vars.NewScope(nil, nil)
	_, err := Run(s, "vars.items[")
	assert.Error(t, err)
}
