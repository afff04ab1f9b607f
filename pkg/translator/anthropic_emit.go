package translator

import (
	"encoding/json"

	"github.com/rsp2com/gateway/pkg/dialect"
	"github.com/rsp2com/gateway/pkg/idgen"
	"github.com/rsp2com/gateway/pkg/sse"
)

// AnthropicEmitter re-emits Deltas as Anthropic Messages SSE events,
// grounded on the Envoy AI Gateway Anthropic stream parser's block-index
// bookkeeping (inverse direction here: Anthropic is the output dialect,
// Responses the input, but the content_block_start/delta/stop lifecycle is
// the same problem).
type AnthropicEmitter struct {
	state          *State
	messageID      string
	startedMessage bool
	openBlockType  string // "" when no block is open; else "text", "thinking" or "tool_use"
	blockIndex     int
	nextIndex      int
	openToolCallID string
}

// NewAnthropicEmitter builds an emitter bound to state.
func NewAnthropicEmitter(state *State) *AnthropicEmitter {
	return &AnthropicEmitter{state: state}
}

// BuildAnthropicCompletionResponse assembles the whole-body Anthropic
// Messages response from a fully-drained State, mirroring
// BuildChatCompletionResponse for the Anthropic wire shape.
func BuildAnthropicCompletionResponse(state *State, terminal Delta, createdUnix int64) dialect.AnthropicResponse {
	var content []dialect.AnthropicResponseBlock
	if text := state.HarvestedText(); text != "" {
		content = append(content, dialect.AnthropicResponseBlock{Type: "text", Text: text})
	}
	toolCalls := terminal.ToolCalls
	if len(toolCalls) == 0 {
		toolCalls = state.ToolCallsInOrder()
	}
	hasToolCalls := len(toolCalls) > 0
	for _, tc := range toolCalls {
		input := map[string]interface{}{}
		if tc.Args != "" {
			_ = json.Unmarshal([]byte(tc.Args), &input)
		}
		content = append(content, dialect.AnthropicResponseBlock{
			Type:  "tool_use",
			ID:    tc.CallID,
			Name:  tc.Name,
			Input: input,
		})
	}

	resp := dialect.AnthropicResponse{
		ID:         idgen.AnthropicTool(),
		Content:    content,
		StopReason: dialect.ChatFinishReasonToAnthropic(dialect.MapResponsesFinishReason(terminal.FinishReason, hasToolCalls)),
	}
	if terminal.Usage != nil {
		resp.Usage = dialect.AnthropicResponseUsage{
			InputTokens:  terminal.Usage.InputTokens,
			OutputTokens: terminal.Usage.OutputTokens,
		}
	}
	return resp
}

func (e *AnthropicEmitter) event(eventType string, payload map[string]interface{}) (string, error) {
	payload["type"] = eventType
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return sse.Encode(eventType, string(body)), nil
}

func (e *AnthropicEmitter) ensureMessageStarted() ([]string, error) {
	if e.startedMessage {
		return nil, nil
	}
	e.startedMessage = true
	e.messageID = idgen.AnthropicTool()
	ev, err := e.event("message_start", map[string]interface{}{
		"message": map[string]interface{}{
			"id":   e.messageID,
			"type": "message",
			"role": "assistant",
		},
	})
	if err != nil {
		return nil, err
	}
	return []string{ev}, nil
}

func (e *AnthropicEmitter) closeOpenBlock() ([]string, error) {
	if e.openBlockType == "" {
		return nil, nil
	}
	ev, err := e.event("content_block_stop", map[string]interface{}{"index": e.blockIndex})
	if err != nil {
		return nil, err
	}
	e.openBlockType = ""
	return []string{ev}, nil
}

func (e *AnthropicEmitter) startBlock(blockType string, block map[string]interface{}) ([]string, error) {
	var frames []string
	if e.openBlockType != "" && e.openBlockType != blockType {
		closed, err := e.closeOpenBlock()
		if err != nil {
			return nil, err
		}
		frames = append(frames, closed...)
	}
	if e.openBlockType == blockType {
		return frames, nil
	}
	e.openBlockType = blockType
	e.blockIndex = e.nextIndex
	e.nextIndex++
	block["index"] = e.blockIndex
	ev, err := e.event("content_block_start", map[string]interface{}{
		"index":         e.blockIndex,
		"content_block": block,
	})
	if err != nil {
		return nil, err
	}
	return append(frames, ev), nil
}

// Emit converts one Delta into zero or more encoded SSE frames.
func (e *AnthropicEmitter) Emit(d Delta) ([]string, error) {
	var frames []string
	started, err := e.ensureMessageStarted()
	if err != nil {
		return nil, err
	}
	frames = append(frames, started...)

	switch d.Kind {
	case DeltaText:
		if d.Text == "" {
			return frames, nil
		}
		opened, err := e.startBlock("text", map[string]interface{}{"type": "text", "text": ""})
		if err != nil {
			return nil, err
		}
		frames = append(frames, opened...)
		ev, err := e.event("content_block_delta", map[string]interface{}{
			"index": e.blockIndex,
			"delta": map[string]interface{}{"type": "text_delta", "text": d.Text},
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, ev)

	case DeltaReasoningText:
		if d.Text == "" {
			return frames, nil
		}
		opened, err := e.startBlock("thinking", map[string]interface{}{"type": "thinking", "thinking": ""})
		if err != nil {
			return nil, err
		}
		frames = append(frames, opened...)
		ev, err := e.event("content_block_delta", map[string]interface{}{
			"index": e.blockIndex,
			"delta": map[string]interface{}{"type": "thinking_delta", "thinking": d.Text},
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, ev)

	case DeltaToolCallDelta:
		if d.ToolName != "" && d.CallID != e.openToolCallID {
			opened, err := e.startBlock("tool_use", map[string]interface{}{
				"type": "tool_use", "id": d.CallID, "name": d.ToolName, "input": map[string]interface{}{},
			})
			if err != nil {
				return nil, err
			}
			frames = append(frames, opened...)
			e.openToolCallID = d.CallID
		}
		if d.ArgsDelta == "" {
			return frames, nil
		}
		ev, err := e.event("content_block_delta", map[string]interface{}{
			"index": e.blockIndex,
			"delta": map[string]interface{}{"type": "input_json_delta", "partial_json": d.ArgsDelta},
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, ev)

	case DeltaCompleted:
		if e.state.SentFinal() {
			return frames, nil
		}
		e.state.MarkFinalSent()
		for _, tc := range d.ToolCalls {
			opened, err := e.startBlock("tool_use", map[string]interface{}{
				"type": "tool_use", "id": tc.CallID, "name": tc.Name, "input": map[string]interface{}{},
			})
			if err != nil {
				return nil, err
			}
			frames = append(frames, opened...)
			if tc.Args != "" {
				ev, err := e.event("content_block_delta", map[string]interface{}{
					"index": e.blockIndex,
					"delta": map[string]interface{}{"type": "input_json_delta", "partial_json": tc.Args},
				})
				if err != nil {
					return nil, err
				}
				frames = append(frames, ev)
			}
		}
		closed, err := e.closeOpenBlock()
		if err != nil {
			return nil, err
		}
		frames = append(frames, closed...)

		hasToolCalls := len(d.ToolCalls) > 0 || e.state.HasToolCalls()
		stopReason := dialect.ChatFinishReasonToAnthropic(dialect.MapResponsesFinishReason(d.FinishReason, hasToolCalls))
		deltaEv, err := e.event("message_delta", map[string]interface{}{
			"delta": map[string]interface{}{"stop_reason": stopReason},
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, deltaEv)
		stopEv, err := e.event("message_stop", map[string]interface{}{})
		if err != nil {
			return nil, err
		}
		frames = append(frames, stopEv)

	case DeltaFailed:
		return nil, d.Err
	}

	return frames, nil
}
