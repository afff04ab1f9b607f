package translator

import (
	"encoding/json"

	"github.com/rsp2com/gateway/pkg/dialect"
	"github.com/rsp2com/gateway/pkg/idgen"
	"github.com/rsp2com/gateway/pkg/sse"
)

// ChatCompletionChunk is the chat.completion.chunk wire shape emitted on
// /v1/chat/completions streams.
type ChatCompletionChunk struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []ChatChunkChoice  `json:"choices"`
	Usage   *ChatCompletionUse `json:"usage,omitempty"`
}

// ChatChunkChoice is the single choice carried by every chunk (the gateway
// never fans a stream out into multiple choices).
type ChatChunkChoice struct {
	Index        int            `json:"index"`
	Delta        ChatChunkDelta `json:"delta"`
	FinishReason *string        `json:"finish_reason"`
}

// ChatChunkDelta is the incremental content of one chunk.
type ChatChunkDelta struct {
	Role             string                 `json:"role,omitempty"`
	Content          *string                `json:"content,omitempty"`
	ReasoningContent string                 `json:"reasoning_content,omitempty"`
	ToolCalls        []dialect.ChatToolCall `json:"tool_calls,omitempty"`
}

// ChatCompletionUse mirrors the usage block attached to the final chunk.
type ChatCompletionUse struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatEmitter re-emits Deltas from a Responses-API stream as Chat
// Completions SSE chunks, grounded on the Envoy AI Gateway Anthropic→OpenAI
// translator's constructOpenAIChatCompletionChunk / sentFirstChunk gating,
// generalized to the gateway's richer Delta vocabulary (reasoning deltas,
// call-id-stable tool indices, harvested-on-completion fallback).
type ChatEmitter struct {
	state   *State
	created int64
}

// NewChatEmitter builds an emitter that reads ids/model off state as the
// stream discovers them.
func NewChatEmitter(state *State, createdUnix int64) *ChatEmitter {
	return &ChatEmitter{state: state, created: createdUnix}
}

// Emit converts one Delta into zero or more encoded SSE frames.
func (e *ChatEmitter) Emit(d Delta) ([]string, error) {
	switch d.Kind {
	case DeltaText:
		if d.Text == "" {
			return nil, nil
		}
		text := d.Text
		return e.frame(ChatChunkDelta{Content: &text}, nil)

	case DeltaReasoningText:
		if d.Text == "" {
			return nil, nil
		}
		return e.frame(ChatChunkDelta{ReasoningContent: d.Text}, nil)

	case DeltaToolCallDelta:
		tc := dialect.ChatToolCall{Function: dialect.ChatToolCallFunc{Arguments: d.ArgsDelta}}
		if d.ToolName != "" {
			tc.ID = d.CallID
			tc.Type = "function"
			tc.Function.Name = d.ToolName
		}
		idx := d.ToolIndex
		tc.Index = &idx
		return e.frame(ChatChunkDelta{ToolCalls: []dialect.ChatToolCall{tc}}, nil)

	case DeltaCompleted:
		if e.state.SentFinal() {
			return nil, nil
		}
		e.state.MarkFinalSent()
		var frames []string
		for _, tc := range d.ToolCalls {
			idx := tc.OutputIndex
			toolFrames, err := e.frame(ChatChunkDelta{ToolCalls: []dialect.ChatToolCall{{
				Index: &idx,
				ID:    tc.CallID,
				Type:  "function",
				Function: dialect.ChatToolCallFunc{
					Name:      tc.Name,
					Arguments: tc.Args,
				},
			}}}, nil)
			if err != nil {
				return nil, err
			}
			frames = append(frames, toolFrames...)
		}
		finish := dialect.MapResponsesFinishReason(d.FinishReason, e.state.HasToolCalls() || len(d.ToolCalls) > 0)
		chunk := e.baseChunk()
		chunk.Choices = []ChatChunkChoice{{Delta: ChatChunkDelta{}, FinishReason: &finish}}
		if d.Usage != nil {
			chunk.Usage = &ChatCompletionUse{
				PromptTokens:     d.Usage.InputTokens,
				CompletionTokens: d.Usage.OutputTokens,
				TotalTokens:      d.Usage.TotalTokens,
			}
		}
		body, err := json.Marshal(chunk)
		if err != nil {
			return nil, err
		}
		frames = append(frames, sse.Encode("", string(body)), sse.Done())
		return frames, nil

	case DeltaFailed:
		return nil, d.Err

	default:
		return nil, nil
	}
}

func (e *ChatEmitter) baseChunk() ChatCompletionChunk {
	id := e.state.ChatID
	if id == "" && e.state.ResponseID != "" {
		id = idgen.ChatCompletionIDFromResponse(e.state.ResponseID)
	}
	return ChatCompletionChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: e.created,
		Model:   e.state.Model,
	}
}

func (e *ChatEmitter) frame(delta ChatChunkDelta, finishReason *string) ([]string, error) {
	if !e.state.SentRole() {
		delta.Role = "assistant"
		e.state.MarkRoleSent()
	}
	chunk := e.baseChunk()
	chunk.Choices = []ChatChunkChoice{{Delta: delta, FinishReason: finishReason}}
	body, err := json.Marshal(chunk)
	if err != nil {
		return nil, err
	}
	return []string{sse.Encode("", string(body))}, nil
}
