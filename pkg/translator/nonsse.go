package translator

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rsp2com/gateway/pkg/dialect"
	"github.com/rsp2com/gateway/pkg/gwerrors"
	"github.com/rsp2com/gateway/pkg/sse"
)

// BufferEvents reads the whole of body, bounded by maxBytes, and decodes it
// into a sequence of upstream ResponseEvents — grounded on the
// buffer-then-forward strategy in the CirtusX proxy's bufferAll/
// reconstructAnthropic/reconstructOpenAI, adapted to the gateway's single
// canonical (Responses-API) upstream shape.
//
// When the body never contains an SSE `data:` line but parses as JSON, it
// is treated as a complete Responses response object (the non-SSE
// fallback): a synthetic response.completed event is fabricated from it so
// the same State.Apply/emitter pipeline handles both cases uniformly.
func BufferEvents(body io.Reader, maxBytes int) ([]ResponseEvent, error) {
	limited := io.LimitReader(body, int64(maxBytes)+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, gwerrors.BadGateway("reading upstream body: %v", err)
	}
	if len(raw) > maxBytes {
		return nil, gwerrors.InvalidRequest("upstream response exceeded the buffered non-streaming limit; retry with stream:true")
	}

	parser := sse.NewParser()
	sseEvents := parser.Push(raw)
	sseEvents = append(sseEvents, parser.Finish()...)

	var events []ResponseEvent
	sawData := false
	for _, ev := range sseEvents {
		if ev.Data == "" || ev.Data == "[DONE]" {
			continue
		}
		sawData = true
		var decoded ResponseEvent
		if err := json.Unmarshal([]byte(ev.Data), &decoded); err != nil {
			continue
		}
		events = append(events, decoded)
	}
	if sawData {
		return events, nil
	}

	return fallbackFromJSONBody(raw)
}

// fallbackFromJSONBody handles a non-SSE upstream body: either a complete
// Responses response object, or a string wrapping nested SSE text (some
// upstreams double-encode a streamed body inside a JSON string field when
// a proxy in front of them buffers incorrectly).
func fallbackFromJSONBody(raw []byte) ([]ResponseEvent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, gwerrors.BadGateway("upstream returned an empty non-streaming body")
	}

	var body ResponseBody
	if err := json.Unmarshal(trimmed, &body); err == nil && (body.ID != "" || len(body.Output) > 0 || body.Error != nil) {
		if body.Error != nil {
			return []ResponseEvent{{Type: "error", Error: body.Error}}, nil
		}
		return []ResponseEvent{{Type: "response.completed", Response: &body}}, nil
	}

	var nested string
	if err := json.Unmarshal(trimmed, &nested); err == nil && nested != "" {
		return BufferEvents(bytes.NewReader([]byte(nested)), len(nested)+1)
	}

	return nil, gwerrors.BadGateway("upstream non-streaming body was neither a Responses object nor nested SSE text")
}

// ApplyAll drains events through state, returning the terminal Delta (the
// DeltaCompleted/DeltaFailed that closes the turn) so a caller can build a
// single non-streaming client response from the final accumulated state
// without re-deriving it from individual emitter frames.
func ApplyAll(state *State, events []ResponseEvent) (Delta, error) {
	var last Delta
	for i := range events {
		d := state.Apply(&events[i])
		if d.Kind == DeltaFailed {
			return d, d.Err
		}
		if d.Kind == DeltaCompleted {
			last = d
		}
	}
	return last, nil
}

// ChatCompletionResponse is the non-streaming /v1/chat/completions body.
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   *ChatCompletionUse     `json:"usage,omitempty"`
}

// ChatCompletionChoice is the single non-streaming choice (the gateway
// never fans a response out into multiple choices).
type ChatCompletionChoice struct {
	Index        int                 `json:"index"`
	Message      dialect.ChatMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

// BuildChatCompletionResponse assembles the whole-body Chat Completions
// response from a fully-drained State plus the text/tool-calls visible on
// the terminal Delta.
func BuildChatCompletionResponse(state *State, terminal Delta, createdUnix int64) ChatCompletionResponse {
	hasToolCalls := state.HasToolCalls() || len(terminal.ToolCalls) > 0
	msg := dialect.ChatMessage{Role: "assistant"}
	if text := state.HarvestedText(); text != "" {
		msg.Content = text
	}
	toolCalls := terminal.ToolCalls
	if len(toolCalls) == 0 {
		toolCalls = state.ToolCallsInOrder()
	}
	for _, tc := range toolCalls {
		msg.ToolCalls = append(msg.ToolCalls, dialect.ChatToolCall{
			ID:   tc.CallID,
			Type: "function",
			Function: dialect.ChatToolCallFunc{
				Name:      tc.Name,
				Arguments: tc.Args,
			},
		})
	}

	id := state.ChatID
	resp := ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: createdUnix,
		Model:   state.Model,
		Choices: []ChatCompletionChoice{{
			Message:      msg,
			FinishReason: dialect.MapResponsesFinishReason(terminal.FinishReason, hasToolCalls),
		}},
	}
	if terminal.Usage != nil {
		resp.Usage = &ChatCompletionUse{
			PromptTokens:     terminal.Usage.InputTokens,
			CompletionTokens: terminal.Usage.OutputTokens,
			TotalTokens:      terminal.Usage.TotalTokens,
		}
	}
	return resp
}
