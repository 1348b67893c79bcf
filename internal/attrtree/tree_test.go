package attrtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTree_NilSafety(t *testing.T) {
	var tree *Tree

	assert.True(t, tree.IsEmpty())
	assert.Equal(t, 0, tree.Len())
	assert.Empty(t, tree.Keys())
	assert.False(t, tree.Has("anything"))
	assert.Equal(t, "fallback", tree.String("mood", "fallback"))
	assert.Equal(t, 0.5, tree.Float("energy", 0.5))
	assert.True(t, tree.Group("personality").IsEmpty())
	assert.Empty(t, tree.Flatten())
}

func TestTree_Group(t *testing.T) {
	tree := New(map[string]any{
		"personality": map[string]any{
			"archetype": "analyst",
			"warmth":    0.7,
		},
		"tags":   []any{"curious", "direct"},
		"scalar": "not a group",
	})

	personality := tree.Group("personality")
	assert.Equal(t, "analyst", personality.String("archetype", ""))
	assert.Equal(t, 0.7, personality.Float("warmth", 0))

	// Non-mapping values degrade to an empty group, not a panic.
	assert.True(t, tree.Group("scalar").IsEmpty())
	assert.True(t, tree.Group("missing").IsEmpty())
}

func TestTree_String(t *testing.T) {
	tree := New(map[string]any{
		"mood":   "focused",
		"energy": 0.8,
		"tags":   []any{"curious", "direct"},
		"nested": map[string]any{"x": 1},
	})

	tests := []struct {
		name string
		key  string
		want string
	}{
		{"plain string", "mood", "focused"},
		{"numeric formatted", "energy", "0.8"},
		{"list joined", "tags", "curious, direct"},
		{"group yields default", "nested", "def"},
		{"absent yields default", "nope", "def"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tree.String(tt.key, "def"))
		})
	}
}

func TestTree_Flatten(t *testing.T) {
	tree := New(map[string]any{
		"mood":    "calm",
		"energy":  3,
		"nested":  map[string]any{"skip": "me"},
		"nothing": nil,
		"empty":   "",
	})

	flat := tree.Flatten()
	assert.Equal(t, map[string]string{
		"mood":   "calm",
		"energy": "3",
	}, flat)
}

func TestTree_KeysSorted(t *testing.T) {
	tree := New(map[string]any{"c": 1, "a": 2, "b": 3})
	assert.Equal(t, []string{"a", "b", "c"}, tree.Keys())
}
