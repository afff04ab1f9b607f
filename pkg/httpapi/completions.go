package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rsp2com/gateway/pkg/dialect"
	"github.com/rsp2com/gateway/pkg/gwerrors"
	"github.com/rsp2com/gateway/pkg/gwlog"
	"github.com/rsp2com/gateway/pkg/orchestrator"
	"github.com/rsp2com/gateway/pkg/translator"
)

// CompletionsHandler answers the legacy POST /v1/completions,
// /completions. There is no Gemini/Anthropic arm here: the legacy text
// dialect only ever talks to the Responses upstream, the same one the
// Chat dialect's default arm uses.
func (d *ChatDeps) CompletionsHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, int64(d.Config.MaxInputChars)*4+1<<20))
	if err != nil {
		WriteGatewayError(w, gwerrors.InvalidRequest("reading request body: %v", err))
		return
	}

	var req dialect.TextCompletionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		WriteGatewayError(w, gwerrors.InvalidRequest("invalid text completion body: %v", err))
		return
	}
	if req.Model == "" {
		WriteGatewayError(w, gwerrors.InvalidRequest("model is required"))
		return
	}

	canonicalReq, err := dialect.TextCompletionToCanonical(req)
	if err != nil {
		WriteGatewayError(w, err)
		return
	}

	marshal := func(v map[string]interface{}) ([]byte, error) { return json.Marshal(v) }
	sessionIDHeader := r.Header.Get("x-session-id")
	var prepared *orchestrator.Prepared
	spanErr := requestSpan(r.Context(), "rsp2com.completions.openai", "openai-responses", req.Model, func(ctx context.Context) error {
		p, runErr := d.Orchestrator.Run(ctx, sessionIDHeader, Token(r), canonicalReq, marshal)
		if runErr != nil {
			return runErr
		}
		prepared = p
		return nil
	})
	if spanErr != nil {
		WriteGatewayError(w, spanErr)
		return
	}
	defer prepared.Accepted.Response.Body.Close()

	state := translator.NewState()
	created := time.Now().Unix()

	if req.Stream {
		writeSSEPreamble(w)
		emitter := translator.NewTextCompletionEmitter(state, created)
		terminal := streamResponsesEvents(prepared.Accepted.Response.Body, state, func(delta translator.Delta) {
			frames, ferr := emitter.Emit(delta)
			if ferr != nil {
				gwlog.Errorf("text completion stream: %v", ferr)
				return
			}
			for _, f := range frames {
				w.Write([]byte(f))
			}
			flushIfPossible(w)
		})
		d.Orchestrator.Finalize(r.Context(), prepared.SessionKey, state)
		if terminal.Err != nil {
			gwlog.Errorf("text completion stream ended with error: %v", terminal.Err)
		}
		return
	}

	events, err := translator.BufferEvents(prepared.Accepted.Response.Body, d.Config.MaxBufferedSSEBytes)
	if err != nil {
		WriteGatewayError(w, err)
		return
	}
	terminal, err := translator.ApplyAll(state, events)
	if err != nil {
		WriteGatewayError(w, err)
		return
	}
	d.Orchestrator.Finalize(r.Context(), prepared.SessionKey, state)

	resp := translator.BuildTextCompletionResponse(state, terminal, created)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
