package translator

import (
	"encoding/json"

	"github.com/rsp2com/gateway/pkg/dialect"
	"github.com/rsp2com/gateway/pkg/idgen"
	"github.com/rsp2com/gateway/pkg/sse"
)

// TextCompletionChunk is the text_completion wire shape emitted on legacy
// /v1/completions streams. Unlike the Chat variant there is no role
// priming chunk and no tool_calls: the legacy dialect predates both.
type TextCompletionChunk struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []TextCompletionChoice `json:"choices"`
	Usage   *ChatCompletionUse     `json:"usage,omitempty"`
}

// TextCompletionChoice is the single choice carried by every chunk/response
// (the gateway never fans a completion out into multiple choices).
type TextCompletionChoice struct {
	Text         string      `json:"text"`
	Index        int         `json:"index"`
	Logprobs     interface{} `json:"logprobs"`
	FinishReason *string     `json:"finish_reason"`
}

// TextCompletionEmitter re-emits Deltas from a Responses-API stream as
// legacy text_completion SSE chunks, grounded on ChatEmitter's
// state-driven framing, simplified to the narrower legacy vocabulary
// (text only; reasoning and tool-call deltas never surface here since
// /v1/completions predates both).
type TextCompletionEmitter struct {
	state   *State
	created int64
}

// NewTextCompletionEmitter builds an emitter that reads id/model off state
// as the stream discovers them.
func NewTextCompletionEmitter(state *State, createdUnix int64) *TextCompletionEmitter {
	return &TextCompletionEmitter{state: state, created: createdUnix}
}

// Emit converts one Delta into zero or more encoded SSE frames.
func (e *TextCompletionEmitter) Emit(d Delta) ([]string, error) {
	switch d.Kind {
	case DeltaText:
		if d.Text == "" {
			return nil, nil
		}
		return e.frame(d.Text, nil)

	case DeltaReasoningText, DeltaToolCallDelta:
		return nil, nil

	case DeltaCompleted:
		if e.state.SentFinal() {
			return nil, nil
		}
		e.state.MarkFinalSent()
		finish := dialect.MapResponsesFinishReason(d.FinishReason, false)
		chunk := e.baseChunk()
		chunk.Choices = []TextCompletionChoice{{Text: "", Index: 0, Logprobs: nil, FinishReason: &finish}}
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
		return []string{sse.Encode("", string(body)), sse.Done()}, nil

	case DeltaFailed:
		return nil, d.Err

	default:
		return nil, nil
	}
}

func (e *TextCompletionEmitter) baseChunk() TextCompletionChunk {
	id := ""
	if e.state.ResponseID != "" {
		id = idgen.PrefixTextCompl + e.state.ResponseID
	}
	return TextCompletionChunk{
		ID:      id,
		Object:  "text_completion",
		Created: e.created,
		Model:   e.state.Model,
	}
}

func (e *TextCompletionEmitter) frame(text string, finishReason *string) ([]string, error) {
	chunk := e.baseChunk()
	chunk.Choices = []TextCompletionChoice{{Text: text, Index: 0, Logprobs: nil, FinishReason: finishReason}}
	body, err := json.Marshal(chunk)
	if err != nil {
		return nil, err
	}
	return []string{sse.Encode("", string(body))}, nil
}

// BuildTextCompletionResponse assembles the whole-body legacy completion
// response from a fully-drained State plus the text visible on the
// terminal Delta.
func BuildTextCompletionResponse(state *State, terminal Delta, createdUnix int64) TextCompletionChunk {
	id := ""
	if state.ResponseID != "" {
		id = idgen.PrefixTextCompl + state.ResponseID
	}
	finish := dialect.MapResponsesFinishReason(terminal.FinishReason, false)
	resp := TextCompletionChunk{
		ID:      id,
		Object:  "text_completion",
		Created: createdUnix,
		Model:   state.Model,
		Choices: []TextCompletionChoice{{
			Text:         state.HarvestedText(),
			Index:        0,
			Logprobs:     nil,
			FinishReason: &finish,
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
