package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/codeloom/site-builder/agent-gateway/internal/llm"
)

const defaultMaxTokens = 8192

// Codec translates between the canonical shapes and the Anthropic Messages
// wire format. This is the content-block variant: the tool schema field is
// renamed to input_schema, a turn's parts become an ordered content-block
// list, and decoding scans the reply's blocks in order — text blocks are
// concatenated and tool_use blocks become ActionCalls without reordering,
// because the workflow engine applies them in exactly that order.
type Codec struct {
	Model string
}

type messagesRequest struct {
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	System    string         `json:"system,omitempty"`
	Messages  []message      `json:"messages"`
	Tools     []toolSpec     `json:"tools,omitempty"`
}

type message struct {
	Role    string  `json:"role"`
	Content []block `json:"content"`
}

type block struct {
	Type string `json:"type"`

	// text block
	Text string `json:"text,omitempty"`

	// image block
	Source *imageSource `json:"source,omitempty"`

	// tool_use block
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result block
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type toolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type messagesResponse struct {
	Content []block `json:"content"`
}

// Encode renders the canonical request as a Messages payload.
func (c Codec) Encode(req llm.Request) ([]byte, error) {
	payload := messagesRequest{
		Model:     c.Model,
		MaxTokens: defaultMaxTokens,
		System:    req.Instruction,
		Messages:  toMessages(req.History),
	}
	if req.Tools != nil && req.Tools.Len() > 0 {
		payload.Tools = make([]toolSpec, 0, req.Tools.Len())
		for _, def := range req.Tools.Definitions() {
			payload.Tools = append(payload.Tools, toolSpec{
				Name:        def.Name,
				Description: def.Description,
				InputSchema: def.ParameterSchema(),
			})
		}
	}
	return json.Marshal(payload)
}

// Decode scans the reply's block list in emission order.
func (Codec) Decode(body []byte) (llm.CanonicalResponse, error) {
	var response messagesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return llm.CanonicalResponse{}, err
	}

	var text strings.Builder
	var actions []llm.ActionCall
	for _, b := range response.Content {
		switch b.Type {
		case "text":
			text.WriteString(b.Text)
		case "tool_use":
			input := b.Input
			if input == nil {
				input = map[string]any{}
			}
			actions = append(actions, llm.ActionCall{Name: b.Name, Args: input})
		}
	}
	return llm.CanonicalResponse{Text: text.String(), Actions: actions}, nil
}

func toMessages(history []llm.ConversationTurn) []message {
	result := make([]message, 0, len(history))
	for _, turn := range history {
		blocks := make([]block, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			switch {
			case p.FunctionCall != nil:
				blocks = append(blocks, block{
					Type:  "tool_use",
					ID:    "call_" + p.FunctionCall.Name,
					Name:  p.FunctionCall.Name,
					Input: p.FunctionCall.Args,
				})
			case p.FunctionResult != nil:
				content, _ := json.Marshal(p.FunctionResult.Response)
				blocks = append(blocks, block{
					Type:      "tool_result",
					ToolUseID: "call_" + p.FunctionResult.Name,
					Content:   string(content),
				})
			case p.InlineImage != nil:
				blocks = append(blocks, block{
					Type: "image",
					Source: &imageSource{
						Type:      "base64",
						MediaType: p.InlineImage.MIMEType,
						Data:      p.InlineImage.Data,
					},
				})
			default:
				if p.Text != "" {
					blocks = append(blocks, block{Type: "text", Text: p.Text})
				}
			}
		}
		if len(blocks) == 0 {
			continue
		}
		result = append(result, message{Role: mapRole(turn.Role), Content: blocks})
	}
	return result
}

func mapRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant", "model":
		return "assistant"
	default:
		return "user"
	}
}
