package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	t.Run("rejects duplicate names", func(t *testing.T) {
		_, err := NewRegistry([]Definition{
			{Name: "echo"},
			{Name: "echo"},
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("preserves registration order", func(t *testing.T) {
		reg, err := NewRegistry([]Definition{
			{Name: "first"},
			{Name: "second"},
			{Name: "third"},
		})
		require.NoError(t, err)

		defs := reg.Definitions()
		require.Len(t, defs, 3)
		assert.Equal(t, "first", defs[0].Name)
		assert.Equal(t, "second", defs[1].Name)
		assert.Equal(t, "third", defs[2].Name)
	})
}

func TestRegistry_Lookup(t *testing.T) {
	reg := Builtin()

	t.Run("known tool", func(t *testing.T) {
		def, err := reg.Lookup(ReadFile)
		require.NoError(t, err)
		assert.Equal(t, ReadFile, def.Name)
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, err := reg.Lookup("delete_fiel")
		var unknownErr *UnknownToolError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, "delete_fiel", unknownErr.Name)
		assert.Contains(t, unknownErr.Error(), "delete_fiel")
	})
}

func TestBuiltin(t *testing.T) {
	reg := Builtin()
	assert.Equal(t, 9, reg.Len())

	expected := []string{
		PlanSteps,
		ListFiles,
		ReadFile,
		CreateOrUpdateFiles,
		DeleteFile,
		RunBuildAndLint,
		FinishTask,
		Chat,
		SearchPexels,
	}
	for _, name := range expected {
		_, err := reg.Lookup(name)
		assert.NoError(t, err, "tool %s should be registered", name)
	}
}

func TestDefinition_ParameterSchema(t *testing.T) {
	tests := []struct {
		name     string
		tool     string
		expected map[string]any
	}{
		{
			name: "string field with required",
			tool: ReadFile,
			expected: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Project-relative file path.",
					},
				},
				"required": []any{"path"},
			},
		},
		{
			name: "array field carries items",
			tool: PlanSteps,
			expected: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"steps": map[string]any{
						"type":        "array",
						"description": "Ordered, human-readable plan steps.",
						"items":       map[string]any{"type": "string"},
					},
				},
				"required": []any{"steps"},
			},
		},
		{
			name: "object field carries additionalProperties",
			tool: CreateOrUpdateFiles,
			expected: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"files": map[string]any{
						"type":                 "object",
						"description":          "Map of file path to full file content.",
						"additionalProperties": map[string]any{"type": "string"},
					},
				},
				"required": []any{"files"},
			},
		},
		{
			name: "no fields yields empty properties",
			tool: RunBuildAndLint,
			expected: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}

	reg := Builtin()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := reg.Lookup(tt.tool)
			require.NoError(t, err)

			var got map[string]any
			require.NoError(t, json.Unmarshal(def.ParameterSchema(), &got))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDefinition_ParameterSchema_OptionalField(t *testing.T) {
	reg := Builtin()
	def, err := reg.Lookup(SearchPexels)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(def.ParameterSchema(), &got))

	// Only query is required; orientation stays optional.
	assert.Equal(t, []any{"query"}, got["required"])
	props := got["properties"].(map[string]any)
	assert.Contains(t, props, "orientation")
}
