package dialect

import (
	"github.com/rsp2com/gateway/pkg/canonical"
	"github.com/rsp2com/gateway/pkg/gwerrors"
)

// LooksLikeResponsesRequest heuristically detects a native Responses-API-
// shaped body posted to the Chat-completions endpoint: a top-level "input"
// array with no "messages" field.
func LooksLikeResponsesRequest(raw map[string]interface{}) bool {
	if _, hasMessages := raw["messages"]; hasMessages {
		return false
	}
	_, hasInput := raw["input"].([]interface{})
	return hasInput
}

// ResponsesRequestToCanonical parses a loosely-decoded native Responses-API
// body directly into canonical.Request. canonical.InputItem only has a
// MarshalJSON, not an UnmarshalJSON (its wire shape is discriminated on
// Kind, which isn't itself a wire field), so the input array is walked by
// hand the same way ChatToCanonical decomposes Chat's own polymorphic
// message shapes, rather than attempting a direct json.Unmarshal.
func ResponsesRequestToCanonical(raw map[string]interface{}) (*canonical.Request, error) {
	out := &canonical.Request{}

	out.Model, _ = raw["model"].(string)
	out.Instructions, _ = raw["instructions"].(string)
	out.Stream, _ = raw["stream"].(bool)
	out.PreviousResponseID, _ = raw["previous_response_id"].(string)
	out.SafetyIdentifier, _ = raw["safety_identifier"].(string)
	out.User, _ = raw["user"].(string)

	if v, ok := raw["temperature"].(float64); ok {
		out.Temperature = &v
	}
	if v, ok := raw["top_p"].(float64); ok {
		out.TopP = &v
	}
	if v, ok := raw["max_output_tokens"].(float64); ok {
		n := int(v)
		out.MaxOutputTokens = &n
	}
	if r, ok := raw["reasoning"].(map[string]interface{}); ok {
		if effort, ok := r["effort"].(string); ok && effort != "" {
			out.Reasoning = &canonical.Reasoning{Effort: effort}
		}
	}
	if choice, ok := raw["tool_choice"]; ok {
		out.ToolChoice = choice
	}
	if rawTools, ok := raw["tools"].([]interface{}); ok {
		for _, rt := range rawTools {
			m, ok := rt.(map[string]interface{})
			if !ok {
				continue
			}
			t := canonical.Tool{Type: "function"}
			t.Type, _ = m["type"].(string)
			t.Name, _ = m["name"].(string)
			t.Description, _ = m["description"].(string)
			t.Parameters, _ = m["parameters"].(map[string]interface{})
			t.Strict, _ = m["strict"].(bool)
			out.Tools = append(out.Tools, t)
		}
	}

	rawInput, _ := raw["input"].([]interface{})
	var input []canonical.InputItem
	for _, ri := range rawInput {
		m, ok := ri.(map[string]interface{})
		if !ok {
			continue
		}
		switch m["type"] {
		case "function_call":
			id, _ := m["id"].(string)
			callID, _ := m["call_id"].(string)
			name, _ := m["name"].(string)
			args, _ := m["arguments"].(string)
			input = append(input, canonical.NewFunctionCall(id, callID, name, args))

		case "function_call_output":
			callID, _ := m["call_id"].(string)
			output, _ := m["output"].(string)
			input = append(input, canonical.NewFunctionCallOutput(callID, output))

		default: // "message" and the implicit un-typed message shape
			role, _ := m["role"].(string)
			if role == "" {
				role = "user"
			}
			parts := responsesContentToParts(m["content"])
			if len(parts) > 0 {
				input = append(input, canonical.NewMessage(role, parts))
			}
		}
	}

	if len(input) == 0 {
		return nil, gwerrors.InvalidRequest("responses-native request has no convertible input items")
	}
	out.Input = input
	return out, nil
}

// responsesContentToParts normalizes a Responses-API message's content
// field, a string or an array of typed content parts, into canonical
// content parts.
func responsesContentToParts(content interface{}) []canonical.ContentPart {
	switch v := content.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []canonical.ContentPart{{Type: canonical.ContentInputText, Text: v}}

	case []interface{}:
		var parts []canonical.ContentPart
		for _, raw := range v {
			m, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			partType, _ := m["type"].(string)
			switch partType {
			case "input_text", "output_text":
				if text, _ := m["text"].(string); text != "" {
					parts = append(parts, canonical.ContentPart{Type: canonical.ContentPartType(partType), Text: text})
				}
			case "input_image":
				if url := m["image_url"]; url != nil {
					parts = append(parts, canonical.ContentPart{Type: canonical.ContentInputImage, ImageURL: url})
				}
			}
		}
		return parts

	default:
		return nil
	}
}
