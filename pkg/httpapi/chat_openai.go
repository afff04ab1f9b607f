package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rsp2com/gateway/pkg/canonical"
	"github.com/rsp2com/gateway/pkg/gwlog"
	"github.com/rsp2com/gateway/pkg/orchestrator"
	"github.com/rsp2com/gateway/pkg/sse"
	"github.com/rsp2com/gateway/pkg/translator"
)

// deltaEmitter is the common surface every client-dialect stream emitter
// implements, letting runOpenAI drive whichever one detectClientDialect
// selected without switching on dialect mid-stream.
type deltaEmitter interface {
	Emit(d translator.Delta) ([]string, error)
}

// newClientEmitter picks the SSE emitter matching cd, bound to state.
func newClientEmitter(cd clientDialect, state *translator.State, created int64) deltaEmitter {
	switch cd {
	case dialectGeminiNative:
		return translator.NewGeminiEmitter(state)
	case dialectResponsesNative:
		return translator.NewResponsesEmitter(state)
	case dialectAnthropic:
		return translator.NewAnthropicEmitter(state)
	default:
		return translator.NewChatEmitter(state, created)
	}
}

// writeNonStreamResponse renders the fully-drained state as cd's
// whole-body response shape.
func writeNonStreamResponse(w http.ResponseWriter, cd clientDialect, state *translator.State, terminal translator.Delta, created int64) error {
	w.Header().Set("Content-Type", "application/json")
	switch cd {
	case dialectGeminiNative:
		return json.NewEncoder(w).Encode(translator.BuildGeminiCompletionResponse(state, terminal, created))
	case dialectResponsesNative:
		return json.NewEncoder(w).Encode(translator.BuildResponsesCompletionResponse(state, terminal, created))
	case dialectAnthropic:
		return json.NewEncoder(w).Encode(translator.BuildAnthropicCompletionResponse(state, terminal, created))
	default:
		return json.NewEncoder(w).Encode(translator.BuildChatCompletionResponse(state, terminal, created))
	}
}

// runOpenAI sends canonicalReq through the request orchestrator's
// session/trim/variant-sweep lifecycle, then re-emits the upstream's own
// Responses-shaped SSE stream in whichever client dialect cd selects.
func runOpenAI(ctx context.Context, orch *orchestrator.Orchestrator, canonicalReq *canonical.Request, cd clientDialect, sessionIDHeader, authKey string, bufferCap int, w http.ResponseWriter) error {
	marshal := func(v map[string]interface{}) ([]byte, error) { return json.Marshal(v) }
	prepared, err := orch.Run(ctx, sessionIDHeader, authKey, canonicalReq, marshal)
	if err != nil {
		return err
	}
	defer prepared.Accepted.Response.Body.Close()

	state := translator.NewState()
	created := time.Now().Unix()

	if canonicalReq.Stream {
		writeSSEPreamble(w)
		emitter := newClientEmitter(cd, state, created)
		terminal := streamResponsesEvents(prepared.Accepted.Response.Body, state, func(d translator.Delta) {
			frames, ferr := emitter.Emit(d)
			if ferr != nil {
				gwlog.Errorf("chat stream: %v", ferr)
				return
			}
			for _, f := range frames {
				w.Write([]byte(f))
			}
			flushIfPossible(w)
		})
		orch.Finalize(ctx, prepared.SessionKey, state)
		if terminal.Err != nil {
			gwlog.Errorf("chat stream ended with error: %v", terminal.Err)
		}
		return nil
	}

	events, err := translator.BufferEvents(prepared.Accepted.Response.Body, bufferCap)
	if err != nil {
		return err
	}
	terminal, err := translator.ApplyAll(state, events)
	if err != nil {
		return err
	}
	orch.Finalize(ctx, prepared.SessionKey, state)

	return writeNonStreamResponse(w, cd, state, terminal, created)
}

// streamResponsesEvents drains body through an incremental SSE parser,
// applying each event to state and invoking onDelta for the resulting
// Delta, returning the final (DeltaCompleted/DeltaFailed) Delta observed.
func streamResponsesEvents(body io.ReadCloser, state *translator.State, onDelta func(translator.Delta)) translator.Delta {
	parser := sse.NewParser()
	buf := make([]byte, 4096)
	var terminal translator.Delta

	apply := func(events []sse.Event) {
		for _, ev := range events {
			if sse.IsDone(ev) {
				continue
			}
			var revt translator.ResponseEvent
			if err := json.Unmarshal([]byte(ev.Data), &revt); err != nil {
				continue
			}
			d := state.Apply(&revt)
			onDelta(d)
			if d.Kind == translator.DeltaCompleted || d.Kind == translator.DeltaFailed {
				terminal = d
			}
		}
	}

	for {
		n, err := body.Read(buf)
		if n > 0 {
			apply(parser.Push(buf[:n]))
		}
		if err != nil {
			apply(parser.Finish())
			break
		}
	}
	if !state.SentFinal() {
		final := translator.Delta{Kind: translator.DeltaCompleted, FinishReason: "stop"}
		onDelta(final)
		terminal = final
	}
	return terminal
}
