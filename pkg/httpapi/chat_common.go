package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rsp2com/gateway/pkg/dialect"
	"github.com/rsp2com/gateway/pkg/idgen"
	"github.com/rsp2com/gateway/pkg/sse"
	"github.com/rsp2com/gateway/pkg/telemetry"
	"github.com/rsp2com/gateway/pkg/translator"
)

// requestSpan wraps one upstream-facing run (orchestrator lifecycle or a
// direct Gemini/Anthropic sweep) in an otel span, grounded on
// telemetry.RecordSpan's generic shape. It passes DefaultSettings, which
// leave telemetry disabled, so GetTracer returns a no-op tracer and the
// span is not recorded, even when a tracer provider is set globally.
func requestSpan(ctx context.Context, name, provider, model string, fn func(context.Context) error) error {
	settings := telemetry.DefaultSettings()
	tracer := telemetry.GetTracer(settings)
	_, err := telemetry.RecordSpan(ctx, tracer, telemetry.SpanOptions{
		Name: name,
		Attributes: []attribute.KeyValue{
			attribute.String("rsp2com.provider", provider),
			attribute.String("rsp2com.model", model),
		},
		EndWhenDone: true,
	}, func(spanCtx context.Context, _ trace.Span) (struct{}, error) {
		return struct{}{}, fn(spanCtx)
	})
	return err
}

// writeSSEPreamble sets the headers every streaming response on this
// gateway carries, regardless of which upstream produced it.
func writeSSEPreamble(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)
}

// writeChatChunksOnce renders a whole Gemini/Anthropic reply as a minimal
// three-frame Chat Completions stream: a role-priming chunk, one chunk
// carrying the full text and any tool calls, and a terminal chunk with the
// finish reason, then [DONE]. Used by the two non-canonical upstream arms,
// which only ever see a whole-body reply from their provider.
func writeChatChunksOnce(w http.ResponseWriter, model, text string, toolCalls []dialect.ChatToolCall, finishReason string, usage interface{}, createdUnix int64) error {
	writeSSEPreamble(w)
	id := idgen.ChatCompletion()

	role := "assistant"
	roleChunk := translator.ChatCompletionChunk{
		ID: id, Object: "chat.completion.chunk", Created: createdUnix, Model: model,
		Choices: []translator.ChatChunkChoice{{Delta: translator.ChatChunkDelta{Role: role}, FinishReason: nil}},
	}
	writeJSONFrame(w, roleChunk)

	if text != "" || len(toolCalls) > 0 {
		contentChunk := translator.ChatCompletionChunk{
			ID: id, Object: "chat.completion.chunk", Created: createdUnix, Model: model,
			Choices: []translator.ChatChunkChoice{{Delta: chunkDelta(text, toolCalls), FinishReason: nil}},
		}
		writeJSONFrame(w, contentChunk)
	}

	finish := finishReason
	finalChunk := translator.ChatCompletionChunk{
		ID: id, Object: "chat.completion.chunk", Created: createdUnix, Model: model,
		Choices: []translator.ChatChunkChoice{{FinishReason: &finish}},
		Usage:   chatUsage(usage),
	}
	writeJSONFrame(w, finalChunk)
	w.Write([]byte(sse.Done()))
	flushIfPossible(w)
	return nil
}

// writeChatResponseOnce renders a whole Gemini/Anthropic reply as a
// non-streaming Chat Completions body.
func writeChatResponseOnce(w http.ResponseWriter, model, text string, toolCalls []dialect.ChatToolCall, finishReason string, usage interface{}, createdUnix int64) error {
	msg := dialect.ChatMessage{Role: "assistant", ToolCalls: toolCalls}
	if text != "" {
		msg.Content = text
	}
	resp := translator.ChatCompletionResponse{
		ID:      idgen.ChatCompletion(),
		Object:  "chat.completion",
		Created: createdUnix,
		Model:   model,
		Choices: []translator.ChatCompletionChoice{{Message: msg, FinishReason: finishReason}},
		Usage:   chatUsage(usage),
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(resp)
}

func chunkDelta(text string, toolCalls []dialect.ChatToolCall) translator.ChatChunkDelta {
	d := translator.ChatChunkDelta{ToolCalls: toolCalls}
	if text != "" {
		d.Content = &text
	}
	return d
}

func chatUsage(usage interface{}) *translator.ChatCompletionUse {
	switch u := usage.(type) {
	case *dialect.GeminiUsageMetadata:
		if u == nil {
			return nil
		}
		return &translator.ChatCompletionUse{
			PromptTokens:     u.PromptTokenCount,
			CompletionTokens: u.CandidatesTokenCount,
			TotalTokens:      u.TotalTokenCount,
		}
	case dialect.AnthropicResponseUsage:
		return &translator.ChatCompletionUse{
			PromptTokens:     u.InputTokens,
			CompletionTokens: u.OutputTokens,
			TotalTokens:      u.InputTokens + u.OutputTokens,
		}
	default:
		return nil
	}
}

func writeJSONFrame(w http.ResponseWriter, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		return
	}
	w.Write([]byte(sse.Encode("", string(body))))
	flushIfPossible(w)
}

func flushIfPossible(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
