package dialect

import (
	"encoding/json"
	"strings"

	"github.com/rsp2com/gateway/pkg/canonical"
	"github.com/rsp2com/gateway/pkg/gwerrors"
	"github.com/rsp2com/gateway/pkg/idgen"
)

// GeminiSchemaKeywordsDropped lists the JSON-Schema keywords Gemini's
// Schema object does not understand and which must be stripped during
// rewriting.
var GeminiSchemaKeywordsDropped = map[string]bool{
	"$id": true, "title": true, "examples": true, "default": true,
	"additionalProperties": true, "definitions": true, "$defs": true,
}

// ToGeminiSchema recursively rewrites a JSON Schema into Gemini's Schema
// shape: `type` is uppercased, `$ref` is resolved against root (with a
// cycle guard), `allOf` branches are shallow-merged, `anyOf` containing a
// `{type:null}` member collapses to `nullable: true` plus the remaining
// branch, and the keywords in GeminiSchemaKeywordsDropped are removed.
func ToGeminiSchema(schema map[string]interface{}) map[string]interface{} {
	return rewriteGeminiSchema(schema, schema, map[string]bool{})
}

func rewriteGeminiSchema(node, root map[string]interface{}, seenRefs map[string]bool) map[string]interface{} {
	if node == nil {
		return nil
	}

	if ref, ok := node["$ref"].(string); ok {
		if seenRefs[ref] {
			return map[string]interface{}{"type": "OBJECT"}
		}
		resolved := resolveRef(root, ref)
		if resolved == nil {
			return map[string]interface{}{"type": "OBJECT"}
		}
		nextSeen := make(map[string]bool, len(seenRefs)+1)
		for k := range seenRefs {
			nextSeen[k] = true
		}
		nextSeen[ref] = true
		return rewriteGeminiSchema(resolved, root, nextSeen)
	}

	if allOf, ok := node["allOf"].([]interface{}); ok {
		merged := map[string]interface{}{}
		for k, v := range node {
			if k != "allOf" {
				merged[k] = v
			}
		}
		for _, branch := range allOf {
			if bm, ok := branch.(map[string]interface{}); ok {
				for k, v := range bm {
					merged[k] = v
				}
			}
		}
		return rewriteGeminiSchema(merged, root, seenRefs)
	}

	if anyOf, ok := node["anyOf"].([]interface{}); ok {
		var nonNull []interface{}
		nullable := false
		for _, branch := range anyOf {
			bm, ok := branch.(map[string]interface{})
			if ok && bm["type"] == "null" {
				nullable = true
				continue
			}
			nonNull = append(nonNull, branch)
		}
		if len(nonNull) == 1 {
			bm, _ := nonNull[0].(map[string]interface{})
			out := rewriteGeminiSchema(bm, root, seenRefs)
			if out == nil {
				out = map[string]interface{}{}
			}
			if nullable {
				out["nullable"] = true
			}
			return out
		}
	}

	out := map[string]interface{}{}
	for k, v := range node {
		if GeminiSchemaKeywordsDropped[k] || k == "$ref" || k == "allOf" || k == "anyOf" {
			continue
		}
		switch k {
		case "type":
			if s, ok := v.(string); ok {
				out["type"] = uppercaseSchemaType(s)
			} else {
				out[k] = v
			}
		case "properties":
			if props, ok := v.(map[string]interface{}); ok {
				rewritten := map[string]interface{}{}
				for pk, pv := range props {
					if pm, ok := pv.(map[string]interface{}); ok {
						rewritten[pk] = rewriteGeminiSchema(pm, root, seenRefs)
					}
				}
				out["properties"] = rewritten
			}
		case "items":
			if im, ok := v.(map[string]interface{}); ok {
				out["items"] = rewriteGeminiSchema(im, root, seenRefs)
			}
		default:
			out[k] = v
		}
	}
	return out
}

func uppercaseSchemaType(t string) string {
	switch t {
	case "object":
		return "OBJECT"
	case "array":
		return "ARRAY"
	case "string":
		return "STRING"
	case "number":
		return "NUMBER"
	case "integer":
		return "INTEGER"
	case "boolean":
		return "BOOLEAN"
	case "null":
		return "NULL"
	default:
		return t
	}
}

// resolveRef resolves a "#/a/b/c" JSON pointer against root.
func resolveRef(root map[string]interface{}, ref string) map[string]interface{} {
	if len(ref) < 2 || ref[0] != '#' {
		return nil
	}
	segments := splitPointer(ref[1:])
	var cur interface{} = root
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil
		}
	}
	m, _ := cur.(map[string]interface{})
	return m
}

func splitPointer(p string) []string {
	var out []string
	cur := ""
	for _, r := range p {
		if r == '/' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// GeminiPart is one entry of a Gemini content "parts" array. Only the
// fields relevant to this gateway's translation are modeled; unrecognized
// fields round-trip via the upstream JSON directly and never pass through
// this struct.
type GeminiPart struct {
	Text             string              `json:"text,omitempty"`
	InlineData       *GeminiInlineData   `json:"inlineData,omitempty"`
	FunctionCall     *GeminiFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *GeminiFunctionResp `json:"functionResponse,omitempty"`
	ThoughtSignature string              `json:"thoughtSignature,omitempty"`
	Thought          string              `json:"thought,omitempty"`
}

// GeminiInlineData is a base64-inlined media blob.
type GeminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// GeminiFunctionCall is a model-issued tool invocation.
type GeminiFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// GeminiFunctionResp is a tool result fed back to the model.
type GeminiFunctionResp struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

// ChatToGeminiContents converts Chat messages into Gemini "contents".
// Assistant tool calls become functionCall parts (with an optional sibling
// thoughtSignature/thought carried in the *same* part); the following tool
// results collapse into one user turn whose functionResponse parts keep the
// order of the preceding functionCall parts.
func ChatToGeminiContents(messages []ChatMessage) []map[string]interface{} {
	var contents []map[string]interface{}
	var pendingCallOrder []ChatToolCall

	for i := 0; i < len(messages); i++ {
		msg := messages[i]
		switch msg.Role {
		case "system", "developer":
			continue // caller is expected to have hoisted these into systemInstruction

		case "user":
			parts := chatContentToGeminiParts(msg.Content)
			contents = append(contents, map[string]interface{}{"role": "user", "parts": parts})

		case "assistant":
			var parts []interface{}
			if text := flattenChatContent(msg.Content); text != "" {
				parts = append(parts, GeminiPart{Text: text})
			}
			pendingCallOrder = pendingCallOrder[:0]
			for _, tc := range msg.ToolCalls {
				parts = append(parts, GeminiPart{FunctionCall: &GeminiFunctionCall{
					Name: tc.Function.Name,
					Args: parseJSONObjectLoose(tc.Function.Arguments),
				}})
				pendingCallOrder = append(pendingCallOrder, tc)
			}
			if len(parts) > 0 {
				contents = append(contents, map[string]interface{}{"role": "model", "parts": parts})
			}

		case "tool":
			// Gather this and any immediately-following tool messages into a
			// single user turn, ordered to match pendingCallOrder.
			var toolMsgs []ChatMessage
			for i < len(messages) && messages[i].Role == "tool" {
				toolMsgs = append(toolMsgs, messages[i])
				i++
			}
			i--
			parts := orderToolResponses(toolMsgs, pendingCallOrder)
			contents = append(contents, map[string]interface{}{"role": "user", "parts": parts})
		}
	}
	return contents
}

func chatContentToGeminiParts(content interface{}) []interface{} {
	var parts []interface{}
	switch v := content.(type) {
	case string:
		if v != "" {
			parts = append(parts, GeminiPart{Text: v})
		}
	case []interface{}:
		for _, raw := range v {
			m, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			switch m["type"] {
			case "text":
				if text, _ := m["text"].(string); text != "" {
					parts = append(parts, GeminiPart{Text: text})
				}
			case "image_url":
				url := extractImageURL(m["image_url"])
				if url == "" {
					continue
				}
				ref := ClassifyImage(url)
				if ref.IsDataURL {
					parts = append(parts, GeminiPart{InlineData: &GeminiInlineData{MimeType: ref.MediaType, Data: ref.Base64}})
				}
			}
		}
	}
	return parts
}

// orderToolResponses emits one functionResponse part per preceding call, in
// call order: each call takes the tool message whose tool_call_id matches
// its id, or else the first tool message not yet taken.
func orderToolResponses(toolMsgs []ChatMessage, callOrder []ChatToolCall) []interface{} {
	var parts []interface{}
	used := make([]bool, len(toolMsgs))
	for _, tc := range callOrder {
		pick := -1
		for j, m := range toolMsgs {
			if !used[j] && tc.ID != "" && m.ToolCallID == tc.ID {
				pick = j
				break
			}
		}
		for j := 0; pick < 0 && j < len(toolMsgs); j++ {
			if !used[j] {
				pick = j
			}
		}
		if pick < 0 {
			break
		}
		used[pick] = true
		parts = append(parts, GeminiPart{FunctionResponse: &GeminiFunctionResp{
			Name:     tc.Function.Name,
			Response: map[string]interface{}{"result": flattenChatContent(toolMsgs[pick].Content)},
		}})
	}
	return parts
}

func parseJSONObjectLoose(s string) map[string]interface{} {
	if s == "" {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}

// GeminiFunctionDecl is one entry of generationConfig-adjacent
// tools[].functionDeclarations.
type GeminiFunctionDecl struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ChatToolsToGeminiDeclarations flattens Chat tool defs into Gemini's
// functionDeclarations shape, rewriting each tool's JSON-Schema parameters
// via ToGeminiSchema.
func ChatToolsToGeminiDeclarations(tools []ChatTool) []GeminiFunctionDecl {
	out := make([]GeminiFunctionDecl, 0, len(tools))
	for _, t := range tools {
		if t.Type != "function" {
			continue
		}
		out = append(out, GeminiFunctionDecl{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  ToGeminiSchema(t.Function.Parameters),
		})
	}
	return out
}

// BuildGeminiRequest assembles the outbound generateContent/
// streamGenerateContent body: contents from ChatToGeminiContents, system/
// developer messages hoisted into systemInstruction, tools wrapped one
// functionDeclarations block deep, and sampling parameters folded into
// generationConfig.
func BuildGeminiRequest(req ChatRequest) map[string]interface{} {
	body := map[string]interface{}{
		"contents": ChatToGeminiContents(req.Messages),
	}

	if sys := geminiSystemInstruction(req.Messages); sys != "" {
		body["systemInstruction"] = map[string]interface{}{
			"parts": []interface{}{map[string]interface{}{"text": sys}},
		}
	}

	if len(req.Tools) > 0 {
		decls := ChatToolsToGeminiDeclarations(req.Tools)
		if len(decls) > 0 {
			body["tools"] = []interface{}{map[string]interface{}{"functionDeclarations": decls}}
		}
	}

	genConfig := map[string]interface{}{}
	if req.Temperature != nil {
		genConfig["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		genConfig["topP"] = *req.TopP
	}
	if req.MaxTokens != nil {
		genConfig["maxOutputTokens"] = *req.MaxTokens
	}
	if len(genConfig) > 0 {
		body["generationConfig"] = genConfig
	}

	return body
}

func geminiSystemInstruction(messages []ChatMessage) string {
	var parts []string
	for _, m := range messages {
		if m.Role != "system" && m.Role != "developer" {
			continue
		}
		if text := flattenChatContent(m.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// GeminiUsageMetadata is the upstream token-accounting block.
type GeminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// GeminiCandidate is one entry of a generateContent response's candidates
// list; this gateway only ever reads the first.
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

// GeminiContent is the role+parts shape a candidate's content carries.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiGenerateContentResponse is the whole-body (or final streamed chunk)
// upstream response shape.
type GeminiGenerateContentResponse struct {
	Candidates    []GeminiCandidate    `json:"candidates"`
	UsageMetadata *GeminiUsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string               `json:"modelVersion,omitempty"`
}

// FirstCandidateParts returns the first candidate's parts, or nil when the
// response carried none (a safety block or an empty turn).
func (r GeminiGenerateContentResponse) FirstCandidateParts() []GeminiPart {
	if len(r.Candidates) == 0 {
		return nil
	}
	return r.Candidates[0].Content.Parts
}

// FirstFinishReason returns the first candidate's finishReason, defaulting
// to "STOP" when the response has no candidate at all.
func (r GeminiGenerateContentResponse) FirstFinishReason() string {
	if len(r.Candidates) == 0 {
		return "STOP"
	}
	return r.Candidates[0].FinishReason
}

// LooksLikeGeminiContentsRequest heuristically detects a native Gemini
// generateContent-shaped body posted to the Chat-completions endpoint: a
// top-level "contents" array with no "messages" field.
func LooksLikeGeminiContentsRequest(raw map[string]interface{}) bool {
	if _, hasMessages := raw["messages"]; hasMessages {
		return false
	}
	_, hasContents := raw["contents"].([]interface{})
	return hasContents
}

// GeminiGenerateContentRequest is an inbound native Gemini generateContent
// body, for a client that speaks Gemini's own wire format directly against
// this gateway's Chat-completions endpoint rather than OpenAI's. "model"
// has no equivalent in Google's own wire format (it rides the URL path
// there); this gateway requires it in the body since it exposes only one
// route for every dialect.
type GeminiGenerateContentRequest struct {
	Model             string                  `json:"model,omitempty"`
	Contents          []GeminiContent         `json:"contents"`
	SystemInstruction *GeminiContent          `json:"systemInstruction,omitempty"`
	Tools             []GeminiToolDecl        `json:"tools,omitempty"`
	GenerationConfig  *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

// GeminiToolDecl is one entry of an inbound request's "tools" array.
type GeminiToolDecl struct {
	FunctionDeclarations []GeminiFunctionDecl `json:"functionDeclarations"`
}

// GeminiGenerationConfig carries the sampling knobs Gemini nests one level
// deep instead of at the request's top level.
type GeminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

// GeminiContentsToCanonical converts an inbound native Gemini
// generateContent request into the canonical Responses-shaped request, the
// inverse of BuildGeminiRequest/ChatToGeminiContents: "model"-role content
// becomes an assistant message (functionCall parts become function_call
// items), "user"-role content becomes a user message (functionResponse
// parts become function_call_output items), and systemInstruction hoists
// into Instructions. functionCall/functionResponse pairs are correlated by
// name and turn order (first in, first out per name), since Gemini's own
// wire format carries no call-id field; the outbound orderToolResponses
// matches on the Chat messages' tool_call_id instead.
func GeminiContentsToCanonical(model string, req GeminiGenerateContentRequest, stream bool) (*canonical.Request, error) {
	out := &canonical.Request{Model: model, Stream: stream}

	if req.SystemInstruction != nil {
		if text := geminiContentText(*req.SystemInstruction); text != "" {
			out.Instructions = text
		}
	}

	for _, t := range req.Tools {
		for _, decl := range t.FunctionDeclarations {
			out.Tools = append(out.Tools, canonical.Tool{
				Type:        "function",
				Name:        decl.Name,
				Description: decl.Description,
				Parameters:  decl.Parameters,
			})
		}
	}

	if req.GenerationConfig != nil {
		out.Temperature = req.GenerationConfig.Temperature
		out.TopP = req.GenerationConfig.TopP
		out.MaxOutputTokens = req.GenerationConfig.MaxOutputTokens
	}

	pendingByName := map[string][]string{}
	var input []canonical.InputItem

	for _, c := range req.Contents {
		role := "user"
		textType := canonical.ContentInputText
		if c.Role == "model" {
			role = "assistant"
			textType = canonical.ContentOutputText
		}

		var parts []canonical.ContentPart
		for _, p := range c.Parts {
			switch {
			case p.Text != "":
				parts = append(parts, canonical.ContentPart{Type: textType, Text: p.Text})

			case p.InlineData != nil && role == "user":
				dataURL := "data:" + p.InlineData.MimeType + ";base64," + p.InlineData.Data
				parts = append(parts, canonical.ContentPart{Type: canonical.ContentInputImage, ImageURL: dataURL})

			case p.FunctionCall != nil:
				callID := idgen.Call()
				pendingByName[p.FunctionCall.Name] = append(pendingByName[p.FunctionCall.Name], callID)
				argsJSON, _ := json.Marshal(p.FunctionCall.Args)
				input = append(input, canonical.NewFunctionCall("", callID, p.FunctionCall.Name, string(argsJSON)))

			case p.FunctionResponse != nil:
				callID := idgen.Call()
				if pending := pendingByName[p.FunctionResponse.Name]; len(pending) > 0 {
					callID = pending[0]
					pendingByName[p.FunctionResponse.Name] = pending[1:]
				}
				output, _ := json.Marshal(p.FunctionResponse.Response)
				input = append(input, canonical.NewFunctionCallOutput(callID, string(output)))
			}
		}
		if len(parts) > 0 {
			input = append(input, canonical.NewMessage(role, parts))
		}
	}

	if len(input) == 0 {
		return nil, gwerrors.InvalidRequest("gemini-native request has no convertible contents")
	}
	out.Input = input
	return out, nil
}

func geminiContentText(c GeminiContent) string {
	var parts []string
	for _, p := range c.Parts {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// GeminiResponseToChatToolCalls converts a Gemini response's functionCall
// parts into Chat-dialect tool_calls with fresh ids; any thoughtSignature
// on the same part is stashed by the caller into the session cache, never
// surfaced to the client.
func GeminiResponseToChatToolCalls(parts []GeminiPart) (text string, toolCalls []ChatToolCall, signatures map[int]string) {
	signatures = map[int]string{}
	for _, p := range parts {
		if p.Text != "" {
			text += p.Text
		}
		if p.FunctionCall != nil {
			argsJSON, _ := json.Marshal(p.FunctionCall.Args)
			idx := len(toolCalls)
			toolCalls = append(toolCalls, ChatToolCall{
				ID:   idgen.Call(),
				Type: "function",
				Function: ChatToolCallFunc{
					Name:      p.FunctionCall.Name,
					Arguments: string(argsJSON),
				},
			})
			if p.ThoughtSignature != "" {
				signatures[idx] = p.ThoughtSignature
			}
		}
	}
	return text, toolCalls, signatures
}
