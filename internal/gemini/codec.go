package gemini

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/codeloom/site-builder/agent-gateway/internal/llm"
)

// Codec translates between the canonical request/response shapes and the
// Gemini generateContent wire format. This is the structured-declaration
// variant: tool schemas map field-for-field, history parts map 1:1, and
// decoding is near-identity because the backend already segments text and
// function calls.
type Codec struct{}

type generateRequest struct {
	SystemInstruction *content  `json:"system_instruction,omitempty"`
	Contents          []content `json:"contents"`
	Tools             []toolSet `json:"tools,omitempty"`
}

type toolSet struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text             string          `json:"text,omitempty"`
	InlineData       *inlineData     `json:"inlineData,omitempty"`
	FunctionCall     *functionCall   `json:"functionCall,omitempty"`
	FunctionResponse *functionResult `json:"functionResponse,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type functionResult struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}

// Encode renders the canonical request as a generateContent payload.
func (Codec) Encode(req llm.Request) ([]byte, error) {
	payload := generateRequest{
		Contents: toContents(req.History),
	}
	if req.Instruction != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: req.Instruction}}}
	}
	if req.Tools != nil && req.Tools.Len() > 0 {
		decls := make([]functionDeclaration, 0, req.Tools.Len())
		for _, def := range req.Tools.Definitions() {
			decls = append(decls, functionDeclaration{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.ParameterSchema(),
			})
		}
		payload.Tools = []toolSet{{FunctionDeclarations: decls}}
	}
	return json.Marshal(payload)
}

// Decode maps the first candidate's parts onto the canonical response,
// concatenating text parts and collecting function calls in emission order.
func (Codec) Decode(body []byte) (llm.CanonicalResponse, error) {
	var response generateResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return llm.CanonicalResponse{}, err
	}
	if len(response.Candidates) == 0 {
		return llm.CanonicalResponse{}, errors.New("gemini empty response")
	}

	var text strings.Builder
	var actions []llm.ActionCall
	for _, p := range response.Candidates[0].Content.Parts {
		if p.Text != "" {
			text.WriteString(p.Text)
		}
		if p.FunctionCall != nil {
			args := p.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			actions = append(actions, llm.ActionCall{Name: p.FunctionCall.Name, Args: args})
		}
	}
	return llm.CanonicalResponse{Text: text.String(), Actions: actions}, nil
}

func toContents(history []llm.ConversationTurn) []content {
	result := make([]content, 0, len(history))
	for _, turn := range history {
		parts := make([]part, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			converted := part{Text: p.Text}
			if p.InlineImage != nil {
				converted.InlineData = &inlineData{MIMEType: p.InlineImage.MIMEType, Data: p.InlineImage.Data}
			}
			if p.FunctionCall != nil {
				converted.FunctionCall = &functionCall{Name: p.FunctionCall.Name, Args: p.FunctionCall.Args}
			}
			if p.FunctionResult != nil {
				converted.FunctionResponse = &functionResult{Name: p.FunctionResult.Name, Response: p.FunctionResult.Response}
			}
			parts = append(parts, converted)
		}
		result = append(result, content{Role: mapRole(turn.Role), Parts: parts})
	}
	return result
}

func mapRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant", "model":
		return "model"
	default:
		return "user"
	}
}
