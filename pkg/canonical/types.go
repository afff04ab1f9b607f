// Package canonical defines the OpenAI "Responses API"-shaped request and
// response types that the gateway uses as its internal representation.
// Every inbound dialect is normalized into these types before upstream
// selection, and every upstream event is translated out of them.
package canonical

import "encoding/json"

// Request is a canonical Responses-style request body.
type Request struct {
	Model                string                 `json:"model"`
	Instructions         string                 `json:"instructions,omitempty"`
	Input                []InputItem            `json:"input"`
	Tools                []Tool                 `json:"tools,omitempty"`
	ToolChoice           interface{}            `json:"tool_choice,omitempty"`
	Reasoning            *Reasoning             `json:"reasoning,omitempty"`
	MaxOutputTokens      *int                   `json:"max_output_tokens,omitempty"`
	Temperature          *float64               `json:"temperature,omitempty"`
	TopP                 *float64               `json:"top_p,omitempty"`
	Stream               bool                   `json:"stream"`
	PreviousResponseID   string                 `json:"previous_response_id,omitempty"`
	PromptCacheRetention string                 `json:"prompt_cache_retention,omitempty"`
	SafetyIdentifier     string                 `json:"safety_identifier,omitempty"`
	User                 string                 `json:"user,omitempty"`
	Extra                map[string]interface{} `json:"-"`
}

// Reasoning carries the Responses-style reasoning effort knob.
type Reasoning struct {
	Effort string `json:"effort,omitempty"`
}

// Tool is a flattened function tool definition (Responses shape, not the
// nested Chat `{type:function,function:{...}}` wrapper).
type Tool struct {
	Type        string                 `json:"type"`
	Name        string                 `json:"name,omitempty"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Strict      bool                   `json:"strict,omitempty"`
}

// ItemKind discriminates the three shapes an InputItem may take.
type ItemKind string

const (
	KindMessage            ItemKind = "message"
	KindFunctionCall       ItemKind = "function_call"
	KindFunctionCallOutput ItemKind = "function_call_output"
)

// ContentPartType discriminates ContentPart.
type ContentPartType string

const (
	ContentInputText  ContentPartType = "input_text"
	ContentInputImage ContentPartType = "input_image"
	ContentOutputText ContentPartType = "output_text"
)

// ContentPart is one piece of a user/assistant message's content array.
type ContentPart struct {
	Type     ContentPartType
	Text     string
	ImageURL interface{} // string or {"url": string}
}

// InputItem is one entry of Request.Input. Exactly one of the type-specific
// field groups is populated, discriminated by Kind.
type InputItem struct {
	Kind ItemKind

	// message
	Role       string
	Content    []ContentPart
	FlatString bool // render Content as a bare string instead of a parts array

	// function_call
	ID               string
	CallID           string
	Name             string
	Arguments        string
	ThoughtSignature string
	Thought          string

	// function_call_output
	Output string
}

// NewMessage builds a message-kind InputItem.
func NewMessage(role string, content []ContentPart) InputItem {
	return InputItem{Kind: KindMessage, Role: role, Content: content}
}

// NewFunctionCall builds a function_call-kind InputItem.
func NewFunctionCall(id, callID, name, arguments string) InputItem {
	return InputItem{Kind: KindFunctionCall, ID: id, CallID: callID, Name: name, Arguments: arguments}
}

// NewFunctionCallOutput builds a function_call_output-kind InputItem.
func NewFunctionCallOutput(callID, output string) InputItem {
	return InputItem{Kind: KindFunctionCallOutput, CallID: callID, Output: output}
}

// MarshalJSON renders an InputItem according to its Kind, matching the
// Responses API's input-item wire shapes.
func (i InputItem) MarshalJSON() ([]byte, error) {
	switch i.Kind {
	case KindFunctionCall:
		m := map[string]interface{}{
			"type":      "function_call",
			"call_id":   i.CallID,
			"name":      i.Name,
			"arguments": i.Arguments,
		}
		if i.ID != "" {
			m["id"] = i.ID
		}
		if i.ThoughtSignature != "" {
			m["thought_signature"] = i.ThoughtSignature
		}
		if i.Thought != "" {
			m["thought"] = i.Thought
		}
		return json.Marshal(m)
	case KindFunctionCallOutput:
		return json.Marshal(map[string]interface{}{
			"type":    "function_call_output",
			"call_id": i.CallID,
			"output":  i.Output,
		})
	default:
		return json.Marshal(map[string]interface{}{
			"role":    i.Role,
			"content": i.messageContentJSON(),
		})
	}
}

func (i InputItem) messageContentJSON() interface{} {
	if i.FlatString {
		var buf string
		for _, p := range i.Content {
			buf += p.Text
		}
		return buf
	}
	parts := make([]interface{}, 0, len(i.Content))
	for _, p := range i.Content {
		switch p.Type {
		case ContentInputImage:
			parts = append(parts, map[string]interface{}{"type": "input_image", "image_url": p.ImageURL})
		case ContentOutputText:
			parts = append(parts, map[string]interface{}{"type": "output_text", "text": p.Text})
		default:
			parts = append(parts, map[string]interface{}{"type": "input_text", "text": p.Text})
		}
	}
	return parts
}

// HasImages reports whether the input contains any input_image parts.
func (r *Request) HasImages() bool {
	for _, item := range r.Input {
		if item.Kind != KindMessage {
			continue
		}
		for _, p := range item.Content {
			if p.Type == ContentInputImage {
				return true
			}
		}
	}
	return false
}

// HasToolItems reports whether the input contains function_call or
// function_call_output items.
func (r *Request) HasToolItems() bool {
	for _, item := range r.Input {
		if item.Kind == KindFunctionCall || item.Kind == KindFunctionCallOutput {
			return true
		}
	}
	return false
}

// ConcatenatedPrompt flattens the entire input into one user-visible string,
// used by the single-concatenated-prompt upstream variant.
func (r *Request) ConcatenatedPrompt() string {
	var out string
	for _, item := range r.Input {
		if item.Kind != KindMessage {
			continue
		}
		for _, p := range item.Content {
			if p.Type == ContentInputText || p.Type == ContentOutputText {
				if out != "" {
					out += "\n"
				}
				out += p.Text
			}
		}
	}
	return out
}
