package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rsp2com/gateway/pkg/canonical"
	"github.com/rsp2com/gateway/pkg/dialect"
	"github.com/rsp2com/gateway/pkg/gwconfig"
	"github.com/rsp2com/gateway/pkg/gwerrors"
	"github.com/rsp2com/gateway/pkg/orchestrator"
	"github.com/rsp2com/gateway/pkg/session"
	"github.com/rsp2com/gateway/pkg/upstream"
	"github.com/rsp2com/gateway/pkg/urlbuilder"
)

// ChatDeps bundles the collaborators ChatHandler needs, one instance built
// once per process and shared across requests (mirrors Orchestrator's own
// share-across-requests shape).
type ChatDeps struct {
	Config       *gwconfig.Config
	Orchestrator *orchestrator.Orchestrator
	GeminiSel    *upstream.Selector
	AnthropicSel *upstream.Selector
	Sessions     *session.Manager
}

// clientDialect identifies the wire shape a request body arrived in, and
// therefore which emitter renders the response back.
type clientDialect int

const (
	dialectChat clientDialect = iota
	dialectAnthropic
	dialectGeminiNative
	dialectResponsesNative
)

// detectClientDialect inspects a loosely-decoded body for the shape
// heuristics specific to each native dialect, the same approach
// LooksLikeAnthropicRequest already uses: a request carrying "messages" is
// always Chat or Anthropic-over-Chat, never a native Gemini/Responses body,
// since those dialects have no "messages" field of their own.
func detectClientDialect(raw map[string]interface{}) clientDialect {
	switch {
	case dialect.LooksLikeAnthropicRequest(raw):
		return dialectAnthropic
	case dialect.LooksLikeGeminiContentsRequest(raw):
		return dialectGeminiNative
	case dialect.LooksLikeResponsesRequest(raw):
		return dialectResponsesNative
	default:
		return dialectChat
	}
}

// ChatHandler answers POST /v1/chat/completions, /chat/completions. The
// body is decoded loosely first to detect which client dialect it arrived
// in; Chat and Anthropic-shaped bodies route through the existing
// model-based provider switch below, while native Gemini/Responses-shaped
// bodies are only accepted when the model routes to the OpenAI/Responses
// upstream, since the Gemini/Anthropic provider paths bypass the canonical
// representation entirely and have no converter back from these shapes.
func (d *ChatDeps) ChatHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, int64(d.Config.MaxInputChars)*4+1<<20))
	if err != nil {
		WriteGatewayError(w, gwerrors.InvalidRequest("reading request body: %v", err))
		return
	}

	var loose map[string]interface{}
	if err := json.Unmarshal(raw, &loose); err != nil {
		WriteGatewayError(w, gwerrors.InvalidRequest("invalid JSON body: %v", err))
		return
	}

	cd := detectClientDialect(loose)
	if cd == dialectGeminiNative || cd == dialectResponsesNative {
		d.handleNativeDialect(w, r, raw, loose, cd)
		return
	}

	var chatReq dialect.ChatRequest
	if cd == dialectAnthropic {
		var aReq dialect.AnthropicRequest
		if err := json.Unmarshal(raw, &aReq); err != nil {
			WriteGatewayError(w, gwerrors.InvalidRequest("invalid anthropic-shaped body: %v", err))
			return
		}
		chatReq = dialect.AnthropicToChat(aReq)
	} else if err := json.Unmarshal(raw, &chatReq); err != nil {
		WriteGatewayError(w, gwerrors.InvalidRequest("invalid chat completions body: %v", err))
		return
	}

	if chatReq.Model == "" || len(chatReq.Messages) == 0 {
		WriteGatewayError(w, gwerrors.InvalidRequest("model and messages are required"))
		return
	}

	provider := ProviderForModel(chatReq.Model)
	var runErr error
	switch provider {
	case urlbuilder.ProviderGemini:
		sessionKey := d.geminiSessionKey(r, chatReq)
		runErr = requestSpan(r.Context(), "rsp2com.chat.gemini", string(provider), chatReq.Model, func(ctx context.Context) error {
			return runGemini(ctx, d.GeminiSel, d.Sessions, d.Config, chatReq, sessionKey, w, chatReq.Stream)
		})
	case urlbuilder.ProviderAnthropic:
		runErr = requestSpan(r.Context(), "rsp2com.chat.anthropic", string(provider), chatReq.Model, func(ctx context.Context) error {
			return runAnthropic(ctx, d.AnthropicSel, d.Config, chatReq, w, chatReq.Stream)
		})
	default:
		sessionIDHeader := r.Header.Get("x-session-id")
		authKey := Token(r)
		canonicalReq, cerr := dialect.ChatToCanonical(chatReq)
		if cerr != nil {
			WriteGatewayError(w, cerr)
			return
		}
		runErr = requestSpan(r.Context(), "rsp2com.chat.openai", string(provider), chatReq.Model, func(ctx context.Context) error {
			return runOpenAI(ctx, d.Orchestrator, canonicalReq, dialectChat, sessionIDHeader, authKey, d.Config.MaxBufferedSSEBytes, w)
		})
	}
	if runErr != nil {
		WriteGatewayError(w, runErr)
	}
}

// handleNativeDialect serves a request whose body already arrived shaped
// as native Gemini generateContent or native Responses-API JSON. Both
// shapes are converted directly into the canonical request and run through
// the OpenAI/Responses upstream path; a model that routes to Gemini or
// Anthropic has no reverse converter available from these shapes, so it is
// rejected rather than silently answered in the wrong dialect.
func (d *ChatDeps) handleNativeDialect(w http.ResponseWriter, r *http.Request, raw []byte, loose map[string]interface{}, cd clientDialect) {
	model, _ := loose["model"].(string)
	if model == "" {
		WriteGatewayError(w, gwerrors.InvalidRequest("model is required"))
		return
	}
	if provider := ProviderForModel(model); provider != urlbuilder.ProviderOpenAIResponses {
		WriteGatewayError(w, gwerrors.InvalidRequest("model %q routes to %s, which has no converter from this request's wire shape", model, provider))
		return
	}

	stream, _ := loose["stream"].(bool)
	var canonicalReq *canonical.Request
	var err error
	switch cd {
	case dialectGeminiNative:
		var gReq dialect.GeminiGenerateContentRequest
		if uerr := json.Unmarshal(raw, &gReq); uerr != nil {
			WriteGatewayError(w, gwerrors.InvalidRequest("invalid gemini-shaped body: %v", uerr))
			return
		}
		canonicalReq, err = dialect.GeminiContentsToCanonical(model, gReq, stream)
	default: // dialectResponsesNative
		canonicalReq, err = dialect.ResponsesRequestToCanonical(loose)
	}
	if err != nil {
		WriteGatewayError(w, err)
		return
	}

	sessionIDHeader := r.Header.Get("x-session-id")
	authKey := Token(r)
	runErr := requestSpan(r.Context(), "rsp2com.chat.openai", string(urlbuilder.ProviderOpenAIResponses), model, func(ctx context.Context) error {
		return runOpenAI(ctx, d.Orchestrator, canonicalReq, cd, sessionIDHeader, authKey, d.Config.MaxBufferedSSEBytes, w)
	})
	if runErr != nil {
		WriteGatewayError(w, runErr)
	}
}

// geminiSessionKey derives the same content-addressed key the Responses
// orchestrator would, via the canonical conversion, purely so thought
// signatures for a stateless Gemini turn land under a stable key; the
// conversion error (an empty input list) is never fatal here, it just
// falls back to an unkeyed ("") cache miss for this turn.
func (d *ChatDeps) geminiSessionKey(r *http.Request, req dialect.ChatRequest) string {
	canonicalReq, err := dialect.ChatToCanonical(req)
	if err != nil {
		return ""
	}
	return orchestrator.DeriveSessionKey(r.Header.Get("x-session-id"), Token(r), canonicalReq)
}
