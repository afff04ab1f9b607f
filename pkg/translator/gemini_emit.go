package translator

import (
	"encoding/json"

	"github.com/rsp2com/gateway/pkg/dialect"
	"github.com/rsp2com/gateway/pkg/sse"
)

// GeminiEmitter re-emits Deltas as OpenAI-style Gemini streamGenerateContent
// chunks: one SSE event per accumulated text delta, data shaped as
// `{candidates:[{content:{role:"model",parts:[{text}]},index:0}]}`.
type GeminiEmitter struct {
	state *State
}

// NewGeminiEmitter builds an emitter bound to state.
func NewGeminiEmitter(state *State) *GeminiEmitter {
	return &GeminiEmitter{state: state}
}

// BuildGeminiCompletionResponse assembles the whole-body OpenAI-style
// Gemini generateContent response from a fully-drained State, mirroring
// BuildChatCompletionResponse for the Gemini wire shape.
func BuildGeminiCompletionResponse(state *State, terminal Delta, createdUnix int64) dialect.GeminiGenerateContentResponse {
	var parts []dialect.GeminiPart
	if text := state.HarvestedText(); text != "" {
		parts = append(parts, dialect.GeminiPart{Text: text})
	}
	toolCalls := terminal.ToolCalls
	if len(toolCalls) == 0 {
		toolCalls = state.ToolCallsInOrder()
	}
	for _, tc := range toolCalls {
		args := map[string]interface{}{}
		if tc.Args != "" {
			_ = json.Unmarshal([]byte(tc.Args), &args)
		}
		parts = append(parts, dialect.GeminiPart{FunctionCall: &dialect.GeminiFunctionCall{Name: tc.Name, Args: args}})
	}

	resp := dialect.GeminiGenerateContentResponse{
		Candidates: []dialect.GeminiCandidate{{
			Content:      dialect.GeminiContent{Role: "model", Parts: parts},
			FinishReason: geminiFinishReason(dialect.MapResponsesFinishReason(terminal.FinishReason, len(toolCalls) > 0)),
		}},
	}
	if terminal.Usage != nil {
		resp.UsageMetadata = &dialect.GeminiUsageMetadata{
			PromptTokenCount:     terminal.Usage.InputTokens,
			CandidatesTokenCount: terminal.Usage.OutputTokens,
			TotalTokenCount:      terminal.Usage.TotalTokens,
		}
	}
	return resp
}

type geminiStreamChunk struct {
	Candidates []geminiStreamCandidate `json:"candidates"`
}

type geminiStreamCandidate struct {
	Content geminiStreamContent `json:"content"`
	Index   int                 `json:"index"`
}

type geminiStreamContent struct {
	Role  string               `json:"role"`
	Parts []dialect.GeminiPart `json:"parts"`
}

// Emit converts one Delta into zero or more encoded SSE frames.
func (e *GeminiEmitter) Emit(d Delta) ([]string, error) {
	switch d.Kind {
	case DeltaText:
		if d.Text == "" {
			return nil, nil
		}
		return e.part(dialect.GeminiPart{Text: d.Text})

	case DeltaReasoningText:
		if d.Text == "" {
			return nil, nil
		}
		return e.part(dialect.GeminiPart{Text: d.Text, Thought: "true"})

	case DeltaToolCallDelta:
		// Gemini functionCall parts are emitted whole on completion, not as
		// incremental argument fragments; nothing to do mid-stream.
		return nil, nil

	case DeltaCompleted:
		if e.state.SentFinal() {
			return nil, nil
		}
		e.state.MarkFinalSent()
		var frames []string
		for _, tc := range d.ToolCalls {
			args := map[string]interface{}{}
			if tc.Args != "" {
				_ = json.Unmarshal([]byte(tc.Args), &args)
			}
			toolFrames, err := e.part(dialect.GeminiPart{FunctionCall: &dialect.GeminiFunctionCall{Name: tc.Name, Args: args}})
			if err != nil {
				return nil, err
			}
			frames = append(frames, toolFrames...)
		}
		frames = append(frames, sse.Done())
		return frames, nil

	case DeltaFailed:
		return nil, d.Err

	default:
		return nil, nil
	}
}

// geminiFinishReason maps a Chat-dialect finish_reason to Gemini's own
// finishReason enum; tool_calls has no Gemini equivalent, STOP covers it
// since the function call itself is what signals tool use.
func geminiFinishReason(chatFinishReason string) string {
	switch chatFinishReason {
	case "length":
		return "MAX_TOKENS"
	case "content_filter":
		return "SAFETY"
	default:
		return "STOP"
	}
}

func (e *GeminiEmitter) part(part dialect.GeminiPart) ([]string, error) {
	chunk := geminiStreamChunk{Candidates: []geminiStreamCandidate{{
		Content: geminiStreamContent{Role: "model", Parts: []dialect.GeminiPart{part}},
		Index:   0,
	}}}
	body, err := json.Marshal(chunk)
	if err != nil {
		return nil, err
	}
	return []string{sse.Encode("", string(body))}, nil
}
