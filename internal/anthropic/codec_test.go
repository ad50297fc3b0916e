package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeloom/site-builder/agent-gateway/internal/llm"
	"github.com/codeloom/site-builder/agent-gateway/internal/tools"
)

func TestCodec_Encode(t *testing.T) {
	codec := Codec{Model: "claude-sonnet-4-5"}

	req := llm.Request{
		History: []llm.ConversationTurn{
			{Role: "user", Parts: []llm.Part{{Text: "build a landing page"}}},
			{Role: "assistant", Parts: []llm.Part{
				{Text: "Reading first."},
				{FunctionCall: &llm.FunctionCall{Name: tools.ReadFile, Args: map[string]any{"path": "index.html"}}},
			}},
			{Role: "user", Parts: []llm.Part{
				{FunctionResult: &llm.FunctionResult{Name: tools.ReadFile, Response: map[string]any{"content": "<html>"}}},
			}},
		},
		Instruction: "system text",
		Tools:       tools.Builtin(),
	}

	body, err := codec.Encode(req)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))

	assert.Equal(t, "claude-sonnet-4-5", payload["model"])
	assert.Equal(t, float64(8192), payload["max_tokens"])
	// System is a top-level string, not a message.
	assert.Equal(t, "system text", payload["system"])

	messages := payload["messages"].([]any)
	require.Len(t, messages, 3)

	second := messages[1].(map[string]any)
	assert.Equal(t, "assistant", second["role"])
	blocks := second["content"].([]any)
	require.Len(t, blocks, 2)
	assert.Equal(t, "text", blocks[0].(map[string]any)["type"])
	toolUse := blocks[1].(map[string]any)
	assert.Equal(t, "tool_use", toolUse["type"])
	assert.Equal(t, tools.ReadFile, toolUse["name"])
	assert.Equal(t, map[string]any{"path": "index.html"}, toolUse["input"])

	third := messages[2].(map[string]any)
	resultBlock := third["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_result", resultBlock["type"])
	assert.Equal(t, toolUse["id"], resultBlock["tool_use_id"])

	// The tool schema field is renamed to input_schema.
	toolSpecs := payload["tools"].([]any)
	require.Len(t, toolSpecs, 9)
	for _, ts := range toolSpecs {
		spec := ts.(map[string]any)
		assert.Contains(t, spec, "input_schema")
		assert.NotContains(t, spec, "parameters")
	}
}

func TestCodec_Encode_ImageBlock(t *testing.T) {
	codec := Codec{Model: "claude-sonnet-4-5"}

	body, err := codec.Encode(llm.Request{
		History: []llm.ConversationTurn{
			{Role: "user", Parts: []llm.Part{
				{Text: "what's in this screenshot?"},
				{InlineImage: &llm.InlineImage{MIMEType: "image/png", Data: "aGVsbG8="}},
			}},
		},
	})
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	blocks := payload["messages"].([]any)[0].(map[string]any)["content"].([]any)
	require.Len(t, blocks, 2)

	image := blocks[1].(map[string]any)
	assert.Equal(t, "image", image["type"])
	source := image["source"].(map[string]any)
	assert.Equal(t, "base64", source["type"])
	assert.Equal(t, "image/png", source["media_type"])
	assert.Equal(t, "aGVsbG8=", source["data"])
}

func TestCodec_Decode(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected llm.CanonicalResponse
	}{
		{
			name: "chat reply",
			body: `{"content":[
				{"type":"tool_use","id":"toolu_1","name":"chat","input":{"response":"Hello! How can I help you today?"}}
			]}`,
			expected: llm.CanonicalResponse{
				Actions: []llm.ActionCall{
					{Name: "chat", Args: map[string]any{"response": "Hello! How can I help you today?"}},
				},
			},
		},
		{
			name: "interleaved blocks keep emission order",
			body: `{"content":[
				{"type":"text","text":"Planning "},
				{"type":"tool_use","id":"toolu_1","name":"plan_steps","input":{"steps":["one"]}},
				{"type":"text","text":"now."},
				{"type":"tool_use","id":"toolu_2","name":"list_files","input":{}}
			]}`,
			expected: llm.CanonicalResponse{
				Text: "Planning now.",
				Actions: []llm.ActionCall{
					{Name: "plan_steps", Args: map[string]any{"steps": []any{"one"}}},
					{Name: "list_files", Args: map[string]any{}},
				},
			},
		},
		{
			name: "null input becomes empty map",
			body: `{"content":[
				{"type":"tool_use","id":"toolu_1","name":"run_build_and_lint","input":null}
			]}`,
			expected: llm.CanonicalResponse{
				Actions: []llm.ActionCall{
					{Name: "run_build_and_lint", Args: map[string]any{}},
				},
			},
		},
		{
			name: "unknown block types are skipped",
			body: `{"content":[
				{"type":"thinking","text":"hidden"},
				{"type":"text","text":"visible"}
			]}`,
			expected: llm.CanonicalResponse{Text: "visible"},
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
	codec := Codec{Model: "claude-sonnet-4-5"}

	turn := llm.ConversationTurn{Role: "assistant", Parts: []llm.Part{
		{Text: "Applying the plan."},
		{FunctionCall: &llm.FunctionCall{Name: tools.PlanSteps, Args: map[string]any{"steps": []any{"one", "two"}}}},
		{FunctionCall: &llm.FunctionCall{Name: tools.DeleteFile, Args: map[string]any{"path": "stale.txt"}}},
	}}

	body, err := codec.Encode(llm.Request{History: []llm.ConversationTurn{turn}})
	require.NoError(t, err)

	// Echo the encoded message's blocks back as a reply and decode them.
	var payload struct {
		Messages []struct {
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.Messages, 1)
	echo := []byte(`{"content":` + string(payload.Messages[0].Content) + `}`)

	resp, err := codec.Decode(echo)
	require.NoError(t, err)

	assert.Equal(t, "Applying the plan.", resp.Text)
	require.Len(t, resp.Actions, 2)
	assert.Equal(t, tools.PlanSteps, resp.Actions[0].Name)
	assert.Equal(t, map[string]any{"steps": []any{"one", "two"}}, resp.Actions[0].Args)
	assert.Equal(t, tools.DeleteFile, resp.Actions[1].Name)
	assert.Equal(t, map[string]any{"path": "stale.txt"}, resp.Actions[1].Args)
}

func TestCodec_Decode_InvalidJSON(t *testing.T) {
	codec := Codec{}
	_, err := codec.Decode([]byte(`not json`))
	assert.Error(t, err)
}
