// Package dialect converts between the client-facing wire dialects (OpenAI
// Chat Completions, OpenAI Text Completions, OpenAI-style Gemini, Anthropic
// Messages) and the gateway's canonical Responses-shaped representation.
// The converters hold no shared state between calls; they are not all pure:
// synthetic ids come from random UUIDs, and inlining remote images for
// Gemini fetches them over the network.
package dialect

import (
	"fmt"
	"strings"

	"github.com/rsp2com/gateway/pkg/canonical"
	"github.com/rsp2com/gateway/pkg/gwerrors"
)

// ChatMessage is one entry of a Chat Completions "messages" array. Content
// may be a plain string or a parts array, so it is kept as interface{} and
// normalized by ChatToCanonical.
type ChatMessage struct {
	Role             string         `json:"role"`
	Content          interface{}    `json:"content,omitempty"`
	ReasoningContent string         `json:"reasoning_content,omitempty"`
	Name             string         `json:"name,omitempty"`
	ToolCallID       string         `json:"tool_call_id,omitempty"`
	ToolCalls        []ChatToolCall `json:"tool_calls,omitempty"`
}

// ChatToolCall is one assistant tool_calls entry. Index is only populated
// on streaming deltas, where OpenAI's wire format needs it to tell the
// client which in-progress tool call a fragment belongs to.
type ChatToolCall struct {
	Index    *int             `json:"index,omitempty"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function ChatToolCallFunc `json:"function"`
}

// ChatToolCallFunc is the nested function payload of a ChatToolCall.
type ChatToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatTool is a Chat-dialect tool definition, `{type:function,function:{...}}`.
type ChatTool struct {
	Type     string       `json:"type"`
	Function ChatToolFunc `json:"function"`
}

// ChatToolFunc is the nested body of a ChatTool.
type ChatToolFunc struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Strict      bool                   `json:"strict,omitempty"`
}

// ChatRequest is an inbound /v1/chat/completions body.
type ChatRequest struct {
	Model            string        `json:"model"`
	Messages         []ChatMessage `json:"messages"`
	Tools            []ChatTool    `json:"tools,omitempty"`
	ToolChoice       interface{}   `json:"tool_choice,omitempty"`
	Stream           bool          `json:"stream,omitempty"`
	Temperature      *float64      `json:"temperature,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	MaxTokens        *int          `json:"max_tokens,omitempty"`
	ReasoningEffort  string        `json:"reasoning_effort,omitempty"`
	PreviousRespID   string        `json:"previous_response_id,omitempty"`
	SafetyIdentifier string        `json:"safety_identifier,omitempty"`
	User             string        `json:"user,omitempty"`
}

// ChatToolsToResponses flattens `{type:function,function:{...}}` tool defs
// into the Responses API's flat shape. Unknown tool types pass through
// untouched.
func ChatToolsToResponses(tools []ChatTool) []canonical.Tool {
	out := make([]canonical.Tool, 0, len(tools))
	for _, t := range tools {
		if t.Type != "function" {
			out = append(out, canonical.Tool{Type: t.Type})
			continue
		}
		out = append(out, canonical.Tool{
			Type:        "function",
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
			Strict:      t.Function.Strict,
		})
	}
	return out
}

// ChatToolChoiceToResponses maps a Chat tool_choice value to its Responses
// equivalent. Strings pass through unchanged; the nested function form is
// flattened.
func ChatToolChoiceToResponses(choice interface{}) interface{} {
	m, ok := choice.(map[string]interface{})
	if !ok {
		return choice
	}
	if m["type"] != "function" {
		return choice
	}
	fn, ok := m["function"].(map[string]interface{})
	if !ok {
		return choice
	}
	return map[string]interface{}{"type": "function", "name": fn["name"]}
}

// ChatToCanonical converts an inbound Chat Completions request into the
// canonical Responses-shaped request. system/developer messages concatenate
// into Instructions; tool messages become function_call_output items
// (dropped when tool_call_id is missing); assistant messages become a
// message item plus one function_call item per tool call, falling back to
// reasoning_content when there is no text. Returns InvalidRequest when the
// resulting input list is empty.
func ChatToCanonical(req ChatRequest) (*canonical.Request, error) {
	out := &canonical.Request{
		Model:                req.Model,
		Stream:               req.Stream,
		Temperature:          req.Temperature,
		TopP:                 req.TopP,
		PreviousResponseID:   req.PreviousRespID,
		SafetyIdentifier:     req.SafetyIdentifier,
		User:                 req.User,
	}
	if req.MaxTokens != nil {
		out.MaxOutputTokens = req.MaxTokens
	}
	if req.ReasoningEffort != "" {
		out.Reasoning = &canonical.Reasoning{Effort: req.ReasoningEffort}
	}
	if len(req.Tools) > 0 {
		out.Tools = ChatToolsToResponses(req.Tools)
	}
	if req.ToolChoice != nil {
		out.ToolChoice = ChatToolChoiceToResponses(req.ToolChoice)
	}

	var instructions []string
	var input []canonical.InputItem

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system", "developer":
			if text := flattenChatContent(msg.Content); text != "" {
				instructions = append(instructions, text)
			}

		case "tool":
			if msg.ToolCallID == "" {
				continue
			}
			input = append(input, canonical.NewFunctionCallOutput(msg.ToolCallID, flattenChatContent(msg.Content)))

		case "assistant":
			parts, hasText := chatContentToParts(msg.Content, false)
			if !hasText && msg.ReasoningContent != "" {
				parts = []canonical.ContentPart{{Type: canonical.ContentOutputText, Text: msg.ReasoningContent}}
				hasText = true
			}
			if hasText {
				input = append(input, canonical.NewMessage("assistant", parts))
			}
			for _, tc := range msg.ToolCalls {
				input = append(input, canonical.NewFunctionCall("", tc.ID, tc.Function.Name, tc.Function.Arguments))
			}

		default: // "user" and anything else
			parts, _ := chatContentToParts(msg.Content, true)
			input = append(input, canonical.NewMessage("user", parts))
		}
	}

	if len(input) == 0 {
		return nil, gwerrors.InvalidRequest("chat request has no convertible messages")
	}

	out.Instructions = strings.Join(instructions, "\n")
	out.Input = input
	return out, nil
}

// chatContentToParts normalizes a Chat message's possibly-polymorphic
// content field (string or parts array) into canonical content parts.
// inputSide selects input_text/input_image vs output_text part types.
func chatContentToParts(content interface{}, inputSide bool) ([]canonical.ContentPart, bool) {
	textType := canonical.ContentOutputText
	if inputSide {
		textType = canonical.ContentInputText
	}

	switch v := content.(type) {
	case nil:
		return nil, false
	case string:
		if v == "" {
			return nil, false
		}
		return []canonical.ContentPart{{Type: textType, Text: v}}, true
	case []interface{}:
		var parts []canonical.ContentPart
		hasText := false
		for _, raw := range v {
			m, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			switch m["type"] {
			case "text":
				if text, _ := m["text"].(string); text != "" {
					parts = append(parts, canonical.ContentPart{Type: textType, Text: text})
					hasText = true
				}
			case "image_url":
				url := extractImageURL(m["image_url"])
				if url != "" && inputSide {
					ref := ClassifyImage(url)
					var imageURL interface{} = ref.URL
					if ref.IsDataURL {
						imageURL = ref.DataURL()
					}
					parts = append(parts, canonical.ContentPart{Type: canonical.ContentInputImage, ImageURL: imageURL})
				}
			}
		}
		return parts, hasText
	default:
		return nil, false
	}
}

func extractImageURL(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		if u, ok := t["url"].(string); ok {
			return u
		}
	}
	return ""
}

// flattenChatContent reduces a possibly-polymorphic content field to a
// single string, used for system/developer instructions and tool outputs.
func flattenChatContent(content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case []interface{}:
		var sb strings.Builder
		for _, raw := range v {
			m, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(text)
			}
		}
		return sb.String()
	default:
		return ""
	}
}

// ChatCompletionIDAndObject builds the id/object pair a Chat Completions
// response needs, derived from the canonical response id.
func ChatCompletionIDAndObject(responseID string, stream bool) (id, object string) {
	object = "chat.completion"
	if stream {
		object = "chat.completion.chunk"
	}
	return fmt.Sprintf("chatcmpl_%s", strings.TrimPrefix(responseID, "resp_")), object
}
