package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rsp2com/gateway/pkg/dialect"
	"github.com/rsp2com/gateway/pkg/gwconfig"
	"github.com/rsp2com/gateway/pkg/gwerrors"
	"github.com/rsp2com/gateway/pkg/session"
	"github.com/rsp2com/gateway/pkg/upstream"
	"github.com/rsp2com/gateway/pkg/urlbuilder"
)

// resolveGeminiModel substitutes the configured default when the client
// asked for the bare "gemini" model name.
func resolveGeminiModel(model string, cfg *gwconfig.Config) string {
	if model == "gemini" && cfg.GeminiDefaultModel != "" {
		return cfg.GeminiDefaultModel
	}
	return model
}

// runGemini sends req to the configured Gemini upstream and writes a
// Chat-dialect response. Gemini routing never builds a canonical Responses
// request: ChatToGeminiContents/BuildGeminiRequest talk to Gemini's own
// generateContent wire shape directly, and the reply is translated back to
// Chat without ever round-tripping through the Responses representation.
// The upstream call always asks for the non-streaming shape; a client that
// requested stream:true still gets an SSE response, just delivered as one
// coalesced chunk rather than token-by-token, since Gemini's own streaming
// wire format carries no continuation state this gateway needs to track
// turn-by-turn the way it does for the Responses upstream.
func runGemini(ctx context.Context, selector *upstream.Selector, sessions *session.Manager, cfg *gwconfig.Config, req dialect.ChatRequest, sessionKey string, w http.ResponseWriter, wantsStream bool) error {
	req.Model = resolveGeminiModel(req.Model, cfg)

	body := dialect.BuildGeminiRequest(req)
	urls, err := urlbuilder.BuildAll(cfg.GeminiBaseURL, urlbuilder.ProviderGemini, "")
	if err != nil {
		return gwerrors.ServerMisconfigured("gemini base url: %v", err)
	}
	for i, u := range urls {
		urls[i] = u + "/" + req.Model + ":generateContent"
	}

	headers := UpstreamHeaders(cfg.GeminiAPIKey, false, false)
	marshal := func(v map[string]interface{}) ([]byte, error) { return json.Marshal(v) }

	accepted, err := selector.Sweep(ctx, urls, []map[string]interface{}{body}, headers, marshal)
	if err != nil {
		return err
	}
	defer accepted.Response.Body.Close()

	var upstreamResp dialect.GeminiGenerateContentResponse
	if err := json.NewDecoder(accepted.Response.Body).Decode(&upstreamResp); err != nil {
		return gwerrors.BadGateway("decoding gemini response: %v", err)
	}

	text, toolCalls, sigs := dialect.GeminiResponseToChatToolCalls(upstreamResp.FirstCandidateParts())
	storeGeminiThoughtSignatures(ctx, sessions, sessionKey, toolCalls, sigs)

	finish := geminiFinishReasonToChat(upstreamResp.FirstFinishReason(), len(toolCalls) > 0)
	created := time.Now().Unix()

	if wantsStream {
		return writeChatChunksOnce(w, req.Model, text, toolCalls, finish, upstreamResp.UsageMetadata, created)
	}
	return writeChatResponseOnce(w, req.Model, text, toolCalls, finish, upstreamResp.UsageMetadata, created)
}

func geminiFinishReasonToChat(reason string, hasToolCalls bool) string {
	if hasToolCalls {
		return "tool_calls"
	}
	switch reason {
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION":
		return "content_filter"
	default:
		return "stop"
	}
}

// storeGeminiThoughtSignatures caches every freshly observed signature,
// keyed by the tool-call id minted for the client response. Replaying a
// cached signature back onto a later outgoing request isn't wired yet:
// dialect.ChatToolCall carries no field for it, so a multi-turn Gemini
// tool-call conversation round-trips through this gateway today the same
// way it would through any client that drops the signature on the floor.
func storeGeminiThoughtSignatures(ctx context.Context, sessions *session.Manager, sessionKey string, toolCalls []dialect.ChatToolCall, sigs map[int]string) {
	if len(sigs) == 0 {
		return
	}
	updates := make(map[string]session.ThoughtSignature, len(sigs))
	for idx, sig := range sigs {
		if idx >= len(toolCalls) {
			continue
		}
		updates[toolCalls[idx].ID] = session.ThoughtSignature{ThoughtSignature: sig, Name: toolCalls[idx].Function.Name}
	}
	sessions.MergeThoughtSignatures(ctx, sessionKey, updates)
}
