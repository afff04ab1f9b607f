package dialect

import (
	"encoding/json"
	"fmt"

	"github.com/rsp2com/gateway/pkg/idgen"
)

// AnthropicMessage is one entry of an Anthropic Messages "messages" array.
type AnthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []AnthropicBlock-shaped maps
}

// AnthropicRequest is an inbound Anthropic-dialect request body.
type AnthropicRequest struct {
	Model     string             `json:"model"`
	System    interface{}        `json:"system,omitempty"`
	Messages  []AnthropicMessage `json:"messages"`
	Tools     []AnthropicTool    `json:"tools,omitempty"`
	MaxTokens int                `json:"max_tokens,omitempty"`
	Stream    bool               `json:"stream,omitempty"`
}

// AnthropicTool is a native Anthropic tool definition: flat, unlike Chat's
// nested `{type:function,function:{...}}` wrapper.
type AnthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

// LooksLikeAnthropicRequest heuristically detects an Anthropic-shaped body
// posted to the Chat-completions endpoint: native tool_use/tool_result
// content blocks, or a top-level "system" field alongside "messages".
func LooksLikeAnthropicRequest(raw map[string]interface{}) bool {
	if _, hasSystem := raw["system"]; hasSystem {
		if _, hasMessages := raw["messages"]; hasMessages {
			return true
		}
	}
	messages, ok := raw["messages"].([]interface{})
	if !ok {
		return false
	}
	for _, rawMsg := range messages {
		msg, ok := rawMsg.(map[string]interface{})
		if !ok {
			continue
		}
		blocks, ok := msg["content"].([]interface{})
		if !ok {
			continue
		}
		for _, rawBlock := range blocks {
			block, ok := rawBlock.(map[string]interface{})
			if !ok {
				continue
			}
			if block["type"] == "tool_use" || block["type"] == "tool_result" {
				return true
			}
		}
	}
	return false
}

// AnthropicToolsToChat converts native Anthropic tool definitions into the
// nested Chat shape.
func AnthropicToolsToChat(tools []AnthropicTool) []ChatTool {
	out := make([]ChatTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, ChatTool{
			Type: "function",
			Function: ChatToolFunc{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}

// AnthropicToChat converts an Anthropic Messages request to the Chat
// dialect: tool_result blocks (wherever they appear) become separate tool
// role messages keyed by tool_use_id; tool_use blocks in assistant
// messages become tool_calls; base64 image blocks become image_url data
// URLs.
func AnthropicToChat(req AnthropicRequest) ChatRequest {
	out := ChatRequest{Model: req.Model, Stream: req.Stream}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		out.MaxTokens = &mt
	}
	if req.System != nil {
		if s := flattenChatContent(req.System); s != "" {
			out.Messages = append(out.Messages, ChatMessage{Role: "system", Content: s})
		}
	}
	if len(req.Tools) > 0 {
		out.Tools = AnthropicToolsToChat(req.Tools)
	}

	for _, msg := range req.Messages {
		blocks, isBlockArray := msg.Content.([]interface{})
		if !isBlockArray {
			out.Messages = append(out.Messages, ChatMessage{Role: msg.Role, Content: msg.Content})
			continue
		}

		var textParts []interface{}
		var toolCalls []ChatToolCall
		for _, rawBlock := range blocks {
			block, ok := rawBlock.(map[string]interface{})
			if !ok {
				continue
			}
			switch block["type"] {
			case "text":
				text, _ := block["text"].(string)
				textParts = append(textParts, map[string]interface{}{"type": "text", "text": text})

			case "image":
				source, _ := block["source"].(map[string]interface{})
				if source == nil || source["type"] != "base64" {
					continue
				}
				mediaType, _ := source["media_type"].(string)
				data, _ := source["data"].(string)
				dataURL := fmt.Sprintf("data:%s;base64,%s", mediaType, data)
				textParts = append(textParts, map[string]interface{}{
					"type":      "image_url",
					"image_url": map[string]interface{}{"url": dataURL},
				})

			case "tool_use":
				name, _ := block["name"].(string)
				id, _ := block["id"].(string)
				argsJSON, _ := json.Marshal(block["input"])
				toolCalls = append(toolCalls, ChatToolCall{
					ID:       id,
					Type:     "function",
					Function: ChatToolCallFunc{Name: name, Arguments: string(argsJSON)},
				})

			case "tool_result":
				toolUseID, _ := block["tool_use_id"].(string)
				out.Messages = append(out.Messages, ChatMessage{
					Role:       "tool",
					ToolCallID: toolUseID,
					Content:    anthropicToolResultText(block["content"]),
				})
			}
		}

		if len(textParts) > 0 || len(toolCalls) > 0 {
			out.Messages = append(out.Messages, ChatMessage{
				Role:      msg.Role,
				Content:   textParts,
				ToolCalls: toolCalls,
			})
		}
	}

	return out
}

// anthropicToolResultText flattens a tool_result block's content, which
// may be a plain string or a nested block array.
func anthropicToolResultText(content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case []interface{}:
		var out string
		for _, rawBlock := range v {
			block, ok := rawBlock.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := block["text"].(string); ok {
				if out != "" {
					out += "\n"
				}
				out += text
			}
		}
		return out
	default:
		return ""
	}
}

// AnthropicImageBlockFromDataURL builds a native Anthropic image block from
// a data URL, the inverse direction of the base64 ingestion above.
func AnthropicImageBlockFromDataURL(dataURL string) map[string]interface{} {
	ref := ClassifyImage(dataURL)
	if !ref.IsDataURL {
		return map[string]interface{}{"type": "image", "source": map[string]interface{}{"type": "url", "url": dataURL}}
	}
	return map[string]interface{}{
		"type": "image",
		"source": map[string]interface{}{
			"type":       "base64",
			"media_type": ref.MediaType,
			"data":       ref.Base64,
		},
	}
}

// ChatToolCallToAnthropicBlock renders a Chat tool call as a native
// Anthropic tool_use block.
func ChatToolCallToAnthropicBlock(tc ChatToolCall) map[string]interface{} {
	var args interface{}
	_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
	id := tc.ID
	if id == "" {
		id = idgen.AnthropicTool()
	}
	return map[string]interface{}{
		"type":  "tool_use",
		"id":    id,
		"name":  tc.Function.Name,
		"input": args,
	}
}

// ChatToolsToAnthropicTools flattens the nested Chat tool shape into
// native Anthropic tool definitions, the inverse of AnthropicToolsToChat.
func ChatToolsToAnthropicTools(tools []ChatTool) []AnthropicTool {
	out := make([]AnthropicTool, 0, len(tools))
	for _, t := range tools {
		if t.Type != "function" {
			continue
		}
		out = append(out, AnthropicTool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}
	return out
}

// BuildAnthropicRequest assembles the outbound Messages body: system/
// developer messages hoist into the top-level "system" string, the
// remaining messages render as native content blocks (tool_calls become
// tool_use blocks, a "tool" role message becomes a user-turn tool_result
// block), and tools flatten via ChatToolsToAnthropicTools.
func BuildAnthropicRequest(req ChatRequest, maxTokens int) map[string]interface{} {
	body := map[string]interface{}{
		"model":    req.Model,
		"messages": chatMessagesToAnthropic(req.Messages),
	}
	if sys := geminiSystemInstruction(req.Messages); sys != "" {
		body["system"] = sys
	}
	if len(req.Tools) > 0 {
		if tools := ChatToolsToAnthropicTools(req.Tools); len(tools) > 0 {
			body["tools"] = tools
		}
	}
	if req.MaxTokens != nil {
		body["max_tokens"] = *req.MaxTokens
	} else {
		body["max_tokens"] = maxTokens
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	return body
}

func chatMessagesToAnthropic(messages []ChatMessage) []map[string]interface{} {
	var out []map[string]interface{}
	for _, msg := range messages {
		switch msg.Role {
		case "system", "developer":
			continue

		case "tool":
			out = append(out, map[string]interface{}{
				"role": "user",
				"content": []interface{}{map[string]interface{}{
					"type":        "tool_result",
					"tool_use_id": msg.ToolCallID,
					"content":     flattenChatContent(msg.Content),
				}},
			})

		default:
			var blocks []interface{}
			if text := flattenChatContent(msg.Content); text != "" {
				blocks = append(blocks, map[string]interface{}{"type": "text", "text": text})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, ChatToolCallToAnthropicBlock(tc))
			}
			if len(blocks) > 0 {
				out = append(out, map[string]interface{}{"role": msg.Role, "content": blocks})
			}
		}
	}
	return out
}

// AnthropicResponseUsage is the upstream token-accounting block on a
// Messages response.
type AnthropicResponseUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AnthropicResponseBlock is one entry of a Messages response's content
// array.
type AnthropicResponseBlock struct {
	Type  string                 `json:"type"`
	Text  string                 `json:"text,omitempty"`
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`
}

// AnthropicResponse is the whole-body Messages response shape.
type AnthropicResponse struct {
	ID         string                   `json:"id"`
	Content    []AnthropicResponseBlock `json:"content"`
	StopReason string                   `json:"stop_reason,omitempty"`
	Usage      AnthropicResponseUsage   `json:"usage"`
}

// ToChatToolCalls converts the response's tool_use blocks into Chat-dialect
// tool_calls and returns the concatenated text blocks separately, mirroring
// GeminiResponseToChatToolCalls for the Anthropic wire shape.
func (r AnthropicResponse) ToChatToolCalls() (text string, toolCalls []ChatToolCall) {
	for _, b := range r.Content {
		switch b.Type {
		case "text":
			text += b.Text
		case "tool_use":
			argsJSON, _ := json.Marshal(b.Input)
			toolCalls = append(toolCalls, ChatToolCall{
				ID:       b.ID,
				Type:     "function",
				Function: ChatToolCallFunc{Name: b.Name, Arguments: string(argsJSON)},
			})
		}
	}
	return text, toolCalls
}
