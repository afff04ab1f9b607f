package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rsp2com/gateway/pkg/dialect"
	"github.com/rsp2com/gateway/pkg/gwconfig"
	"github.com/rsp2com/gateway/pkg/gwerrors"
	"github.com/rsp2com/gateway/pkg/upstream"
	"github.com/rsp2com/gateway/pkg/urlbuilder"
)

// resolveClaudeModel substitutes the configured default when the client
// asked for the bare "claude" model name.
func resolveClaudeModel(model string, cfg *gwconfig.Config) string {
	if model == "claude" && cfg.ClaudeDefaultModel != "" {
		return cfg.ClaudeDefaultModel
	}
	return model
}

// runAnthropic sends req to the configured Anthropic upstream and writes a
// Chat-dialect response, same non-canonical bypass as runGemini: the
// request is built directly from the Chat-shaped req via
// BuildAnthropicRequest, never through the Responses representation.
func runAnthropic(ctx context.Context, selector *upstream.Selector, cfg *gwconfig.Config, req dialect.ChatRequest, w http.ResponseWriter, wantsStream bool) error {
	req.Model = resolveClaudeModel(req.Model, cfg)

	body := dialect.BuildAnthropicRequest(req, cfg.ClaudeMaxTokens)
	urls, err := urlbuilder.BuildAll(cfg.ClaudeBaseURL, urlbuilder.ProviderAnthropic, cfg.ClaudeMessagesPath)
	if err != nil {
		return gwerrors.ServerMisconfigured("claude base url: %v", err)
	}

	headers := UpstreamHeaders(cfg.ClaudeAPIKey, false, false)
	headers["anthropic-version"] = "2023-06-01"
	marshal := func(v map[string]interface{}) ([]byte, error) { return json.Marshal(v) }

	accepted, err := selector.Sweep(ctx, urls, []map[string]interface{}{body}, headers, marshal)
	if err != nil {
		return err
	}
	defer accepted.Response.Body.Close()

	var upstreamResp dialect.AnthropicResponse
	if err := json.NewDecoder(accepted.Response.Body).Decode(&upstreamResp); err != nil {
		return gwerrors.BadGateway("decoding anthropic response: %v", err)
	}

	text, toolCalls := upstreamResp.ToChatToolCalls()
	finish := anthropicStopReasonToChat(upstreamResp.StopReason, len(toolCalls) > 0)
	created := time.Now().Unix()

	if wantsStream {
		return writeChatChunksOnce(w, req.Model, text, toolCalls, finish, upstreamResp.Usage, created)
	}
	return writeChatResponseOnce(w, req.Model, text, toolCalls, finish, upstreamResp.Usage, created)
}

func anthropicStopReasonToChat(reason string, hasToolCalls bool) string {
	if hasToolCalls || reason == "tool_use" {
		return "tool_calls"
	}
	switch reason {
	case "max_tokens":
		return "length"
	default:
		return "stop"
	}
}
