package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeInterpolate(t *testing.T) {
	s := NewScope(map[string]any{"BASE_URL": "https://example.com"}, map[string]any{"user": "alice"})
	s.Set("count", 3)
	s.Set("name", "bob")

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"var substitution", "hello $vars.name", "hello bob"},
		{"env substitution", "$env.BASE_URL/login", "https://example.com/login"},
		{"fixtures substitution", "$fixtures.user", "alice"},
		{"non-string scalar is json-encoded", "n=$vars.count", "n=3"},
		{"absent key substitutes empty", "[$vars.missing]", "[]"},
		{"no placeholders is unchanged", "plain text", "plain text"},
		{"multiple placeholders left to right", "$vars.name-$vars.count", "bob-3"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, s.Interpolate(c.in))
		})
	}
}

func TestScopeSetGet(t *testing.T) {
	s := NewScope(nil, nil)
	_, ok := s.Get("x")
	assert.False(t, ok)

	s.Set("x", 42)
	v, ok := s.Get("x")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestNewScopeNilMaps(t *testing.T) {
	s := NewScope(nil, nil)
	require.NotNil(t, s.Env)
	require.NotNil(t, s.Fixtures)
	assert.Empty(t, s.Env)
	assert.Empty(t, s.Fixtures)
}
