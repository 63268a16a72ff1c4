package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asRoot(t *testing.T, m map[string]any) map[string]any {
	t.Helper()
	return m
}

func TestShorthandKindMatch(t *testing.T) {
	set, err := NewSet([]string{"chat"})
	require.NoError(t, err)

	assert.True(t, set.Allows(asRoot(t, map[string]any{"kind": "chat"})))
	assert.False(t, set.Allows(asRoot(t, map[string]any{"kind": "stream/data"})))
}

func TestGlobShorthand(t *testing.T) {
	set, err := NewSet([]string{"mcp/*"})
	require.NoError(t, err)

	assert.True(t, set.Allows(map[string]any{"kind": "mcp/request"}))
	assert.True(t, set.Allows(map[string]any{"kind": "mcp/response"}))
	assert.False(t, set.Allows(map[string]any{"kind": "chat"}))
}

func TestStructuralObjectPattern(t *testing.T) {
	set, err := NewSet([]string{`{"kind":"mcp/request","payload":{"method":"tools/call"}}`})
	require.NoError(t, err)

	allowed := map[string]any{
		"kind":    "mcp/request",
		"payload": map[string]any{"method": "tools/call", "params": map[string]any{}},
	}
	assert.True(t, set.Allows(allowed))

	denied := map[string]any{
		"kind":    "mcp/request",
		"payload": map[string]any{"method": "tools/list"},
	}
	assert.False(t, set.Allows(denied))
}

func TestNegativeFieldMeansMustNotMatch(t *testing.T) {
	set, err := NewSet([]string{`{"kind":"mcp/request","payload":{"!method":"tools/call"}}`})
	require.NoError(t, err)

	assert.True(t, set.Allows(map[string]any{
		"kind":    "mcp/request",
		"payload": map[string]any{"method": "tools/list"},
	}))
	assert.False(t, set.Allows(map[string]any{
		"kind":    "mcp/request",
		"payload": map[string]any{"method": "tools/call"},
	}))
}

func TestWholeEntryNegationTakesPrecedence(t *testing.T) {
	set, err := NewSet([]string{"mcp/*", `!{"kind":"mcp/request","payload":{"method":"tools/call"}}`})
	require.NoError(t, err)

	assert.True(t, set.Allows(map[string]any{
		"kind":    "mcp/request",
		"payload": map[string]any{"method": "tools/list"},
	}))
	assert.False(t, set.Allows(map[string]any{
		"kind":    "mcp/request",
		"payload": map[string]any{"method": "tools/call"},
	}), "denial must take precedence over the broad allow")
}

func TestArrayIsOneOf(t *testing.T) {
	set, err := NewSet([]string{`{"kind":["chat","stream/data"]}`})
	require.NoError(t, err)

	assert.True(t, set.Allows(map[string]any{"kind": "chat"}))
	assert.True(t, set.Allows(map[string]any{"kind": "stream/data"}))
	assert.False(t, set.Allows(map[string]any{"kind": "proposal/create"}))
}

func TestRegexPattern(t *testing.T) {
	set, err := NewSet([]string{`{"kind":"/^mcp\\/.+$/"}`})
	require.NoError(t, err)

	assert.True(t, set.Allows(map[string]any{"kind": "mcp/request"}))
	assert.False(t, set.Allows(map[string]any{"kind": "chat"}))
}

func TestDeepWildcardKeySearchesSubtree(t *testing.T) {
	set, err := NewSet([]string{`{"kind":"mcp/request","**":{"dangerous":true}}`})
	require.NoError(t, err)

	nested := map[string]any{
		"kind": "mcp/request",
		"payload": map[string]any{
			"params": map[string]any{"dangerous": true},
		},
	}
	assert.True(t, set.Allows(nested))

	safe := map[string]any{
		"kind":    "mcp/request",
		"payload": map[string]any{"params": map[string]any{}},
	}
	assert.False(t, set.Allows(safe))
}

func TestJSONPathAbsoluteKey(t *testing.T) {
	set, err := NewSet([]string{`{"$.from":"trusted-agent"}`})
	require.NoError(t, err)

	assert.True(t, set.Allows(map[string]any{"from": "trusted-agent", "kind": "chat"}))
	assert.False(t, set.Allows(map[string]any{"from": "other-agent", "kind": "chat"}))
}

func TestMatcherCachesDecisions(t *testing.T) {
	m, err := NewMatcher([]string{"chat"})
	require.NoError(t, err)

	env := map[string]any{"kind": "chat"}
	assert.True(t, m.Allows(env))
	assert.True(t, m.Allows(env))

	require.NoError(t, m.Reset([]string{"stream/*"}))
	assert.False(t, m.Allows(env))
}
