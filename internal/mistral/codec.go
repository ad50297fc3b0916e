package mistral

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/codeloom/site-builder/agent-gateway/internal/llm"
)

// Codec translates between the canonical shapes and the Mistral
// chat-completions wire format. This is the flat-chat variant: the tool
// schema is wrapped under an extra "function" envelope, and a multi-part
// turn is flattened into one string by joining its text parts. Inline
// images cannot be represented in this format and are dropped — a known,
// documented limitation of the flat-chat protocol, not something to paper
// over silently.
type Codec struct {
	Model string
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []toolSpec    `json:"tools,omitempty"`
}

type toolSpec struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	Choices []choice `json:"choices"`
}

type choice struct {
	Message responseMessage `json:"message"`
}

type responseMessage struct {
	Content   json.RawMessage    `json:"content"`
	ToolCalls []responseToolCall `json:"tool_calls"`
}

type responseToolCall struct {
	ID       string               `json:"id"`
	Type     string               `json:"type"`
	Function responseToolFunction `json:"function"`
}

type responseToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Encode renders the canonical request as a chat-completions payload. The
// system instruction becomes the leading system message.
func (c Codec) Encode(req llm.Request) ([]byte, error) {
	messages := make([]chatMessage, 0, len(req.History)+1)
	if req.Instruction != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.Instruction})
	}
	messages = append(messages, toChatMessages(req.History)...)

	payload := chatRequest{
		Model:    c.Model,
		Messages: messages,
	}
	if req.Tools != nil && req.Tools.Len() > 0 {
		payload.Tools = make([]toolSpec, 0, req.Tools.Len())
		for _, def := range req.Tools.Definitions() {
			payload.Tools = append(payload.Tools, toolSpec{
				Type: "function",
				Function: functionSpec{
					Name:        def.Name,
					Description: def.Description,
					Parameters:  def.ParameterSchema(),
				},
			})
		}
	}
	return json.Marshal(payload)
}

// Decode maps the first choice onto the canonical response. Tool-call
// arguments arrive serialized as text; a call whose arguments fail to parse
// yields an ArgumentParseError alongside a degraded response that keeps any
// partial text and carries zero actions.
func (Codec) Decode(body []byte) (llm.CanonicalResponse, error) {
	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return llm.CanonicalResponse{}, err
	}
	if len(response.Choices) == 0 {
		return llm.CanonicalResponse{}, errors.New("mistral empty response")
	}

	msg := response.Choices[0].Message
	text := extractContent(msg.Content)

	var actions []llm.ActionCall
	for _, call := range msg.ToolCalls {
		name := strings.TrimSpace(call.Function.Name)
		if name == "" {
			continue
		}
		args := map[string]any{}
		raw := strings.TrimSpace(call.Function.Arguments)
		if raw != "" && raw != "null" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return llm.CanonicalResponse{Text: text}, &llm.ArgumentParseError{
					Tool: name,
					Raw:  call.Function.Arguments,
					Err:  err,
				}
			}
		}
		actions = append(actions, llm.ActionCall{Name: name, Args: args})
	}
	return llm.CanonicalResponse{Text: text, Actions: actions}, nil
}

func toChatMessages(history []llm.ConversationTurn) []chatMessage {
	result := make([]chatMessage, 0, len(history))
	for _, turn := range history {
		msg := chatMessage{Role: mapRole(turn.Role)}
		var texts []string
		for i, p := range turn.Parts {
			switch {
			case p.FunctionCall != nil:
				args, _ := json.Marshal(p.FunctionCall.Args)
				msg.ToolCalls = append(msg.ToolCalls, toolCall{
					ID:   fmt.Sprintf("call-%s-%d", p.FunctionCall.Name, i),
					Type: "function",
					Function: toolFunction{
						Name:      p.FunctionCall.Name,
						Arguments: string(args),
					},
				})
			case p.FunctionResult != nil:
				// A result cannot ride on the same flattened message; it
				// becomes its own tool-role message.
				content, _ := json.Marshal(p.FunctionResult.Response)
				result = append(result, chatMessage{
					Role:       "tool",
					Content:    string(content),
					ToolCallID: fmt.Sprintf("call-%s-%d", p.FunctionResult.Name, i),
				})
			case p.InlineImage != nil:
				// Dropped: flat-chat has no image slot.
			default:
				if p.Text != "" {
					texts = append(texts, p.Text)
				}
			}
		}
		msg.Content = strings.Join(texts, "\n")
		if msg.Content == "" && len(msg.ToolCalls) == 0 {
			continue
		}
		result = append(result, msg)
	}
	return result
}

func mapRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant", "model":
		return "assistant"
	case "system":
		return "system"
	default:
		return "user"
	}
}

// extractContent tolerates both plain-string and block-list content shapes.
func extractContent(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var blocks []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var b strings.Builder
		for _, blk := range blocks {
			b.WriteString(blk.Text)
		}
		return b.String()
	}
	return ""
}
