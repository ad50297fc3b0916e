package gemini

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeloom/site-builder/agent-gateway/internal/llm"
	"github.com/codeloom/site-builder/agent-gateway/internal/tools"
)

func TestCodec_Encode(t *testing.T) {
	codec := Codec{}

	req := llm.Request{
		History: []llm.ConversationTurn{
			{Role: "user", Parts: []llm.Part{{Text: "build a landing page"}}},
			{Role: "model", Parts: []llm.Part{
				{FunctionCall: &llm.FunctionCall{Name: tools.ListFiles, Args: map[string]any{}}},
			}},
			{Role: "user", Parts: []llm.Part{
				{FunctionResult: &llm.FunctionResult{Name: tools.ListFiles, Response: map[string]any{"files": []any{}}}},
			}},
		},
		Instruction: "system text",
		Tools:       tools.Builtin(),
	}

	body, err := codec.Encode(req)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))

	// System instruction rides its own field, not the contents list.
	system := payload["system_instruction"].(map[string]any)
	parts := system["parts"].([]any)
	assert.Equal(t, "system text", parts[0].(map[string]any)["text"])

	contents := payload["contents"].([]any)
	require.Len(t, contents, 3)
	first := contents[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	second := contents[1].(map[string]any)
	assert.Equal(t, "model", second["role"])
	secondParts := second["parts"].([]any)
	fc := secondParts[0].(map[string]any)["functionCall"].(map[string]any)
	assert.Equal(t, tools.ListFiles, fc["name"])
	third := contents[2].(map[string]any)
	thirdParts := third["parts"].([]any)
	assert.Contains(t, thirdParts[0].(map[string]any), "functionResponse")

	// All nine declarations, schemas intact.
	toolSets := payload["tools"].([]any)
	require.Len(t, toolSets, 1)
	decls := toolSets[0].(map[string]any)["functionDeclarations"].([]any)
	assert.Len(t, decls, 9)
	for _, d := range decls {
		decl := d.(map[string]any)
		assert.NotEmpty(t, decl["name"])
		assert.NotNil(t, decl["parameters"])
	}
}

func TestCodec_Encode_AssistantRoleMapsToModel(t *testing.T) {
	codec := Codec{}
	body, err := codec.Encode(llm.Request{
		History: []llm.ConversationTurn{
			{Role: "assistant", Parts: []llm.Part{{Text: "ok"}}},
		},
	})
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	contents := payload["contents"].([]any)
	assert.Equal(t, "model", contents[0].(map[string]any)["role"])
}

func TestCodec_Decode(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected llm.CanonicalResponse
	}{
		{
			name: "chat reply",
			body: `{"candidates":[{"content":{"parts":[
				{"functionCall":{"name":"chat","args":{"response":"Hello! How can I help you today?"}}}
			]}}]}`,
			expected: llm.CanonicalResponse{
				Actions: []llm.ActionCall{
					{Name: "chat", Args: map[string]any{"response": "Hello! How can I help you today?"}},
				},
			},
		},
		{
			name: "text and function calls keep emission order",
			body: `{"candidates":[{"content":{"parts":[
				{"text":"I'll start "},
				{"functionCall":{"name":"plan_steps","args":{"steps":["one"]}}},
				{"text":"by planning."},
				{"functionCall":{"name":"list_files","args":{}}}
			]}}]}`,
			expected: llm.CanonicalResponse{
				Text: "I'll start by planning.",
				Actions: []llm.ActionCall{
					{Name: "plan_steps", Args: map[string]any{"steps": []any{"one"}}},
					{Name: "list_files", Args: map[string]any{}},
				},
			},
		},
		{
			name: "missing args becomes empty map",
			body: `{"candidates":[{"content":{"parts":[
				{"functionCall":{"name":"run_build_and_lint"}}
			]}}]}`,
			expected: llm.CanonicalResponse{
				Actions: []llm.ActionCall{
					{Name: "run_build_and_lint", Args: map[string]any{}},
				},
			},
		},
	}

	codec := Codec{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := codec.Decode([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, resp)
		})
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := Codec{}

	turn := llm.ConversationTurn{Role: "model", Parts: []llm.Part{
		{Text: "Applying the plan."},
		{FunctionCall: &llm.FunctionCall{Name: tools.PlanSteps, Args: map[string]any{"steps": []any{"one", "two"}}}},
		{FunctionCall: &llm.FunctionCall{Name: tools.CreateOrUpdateFiles, Args: map[string]any{
			"files": map[string]any{"index.html": "<html>"},
		}}},
	}}

	body, err := codec.Encode(llm.Request{History: []llm.ConversationTurn{turn}})
	require.NoError(t, err)

	// Echo the encoded turn back as a candidate and decode it.
	var payload struct {
		Contents []json.RawMessage `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.Contents, 1)
	echo, err := json.Marshal(map[string]any{
		"candidates": []map[string]any{{"content": json.RawMessage(payload.Contents[0])}},
	})
	require.NoError(t, err)

	resp, err := codec.Decode(echo)
	require.NoError(t, err)

	assert.Equal(t, "Applying the plan.", resp.Text)
	require.Len(t, resp.Actions, 2)
	assert.Equal(t, tools.PlanSteps, resp.Actions[0].Name)
	assert.Equal(t, map[string]any{"steps": []any{"one", "two"}}, resp.Actions[0].Args)
	assert.Equal(t, tools.CreateOrUpdateFiles, resp.Actions[1].Name)
	assert.Equal(t, map[string]any{"files": map[string]any{"index.html": "<html>"}}, resp.Actions[1].Args)
}

func TestCodec_Decode_Errors(t *testing.T) {
	codec := Codec{}

	t.Run("empty candidates", func(t *testing.T) {
		_, err := codec.Decode([]byte(`{"candidates":[]}`))
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := codec.Decode([]byte(`not json`))
		assert.Error(t, err)
	})
}
