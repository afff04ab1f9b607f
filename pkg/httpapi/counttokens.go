package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rsp2com/gateway/pkg/gwlog"
	"github.com/rsp2com/gateway/pkg/urlbuilder"
)

// countTokensPath is the Anthropic-native token-counting endpoint, always
// a sibling of the messages endpoint regardless of ClaudeMessagesPath.
const countTokensPath = "/v1/messages/count_tokens"

// bytesPerTokenEstimate is the local fallback rate, matching Anthropic's
// own documented rule of thumb for a rough character-based estimate.
const bytesPerTokenEstimate = 4

// imageBlockTokenEstimate is the flat per-block cost attributed to any
// image content block when estimating locally, since an image's true
// token cost depends on pixel dimensions this gateway never decodes.
const imageBlockTokenEstimate = 1500

// CountTokensHandler answers POST .../count_tokens (Anthropic only): the
// raw body is forwarded upstream unmodified, and only on a failed sweep
// does the gateway fall back to a local byte-count estimate, never
// silently substituting an estimate for a reachable upstream's own count.
func (d *ChatDeps) CountTokensHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, int64(d.Config.MaxInputChars)*4+1<<20))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "reading request body: "+err.Error(), "bad_request")
		return
	}

	if body, ok := d.forwardCountTokens(r.Context(), raw); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
		return
	}

	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), "bad_request")
		return
	}

	estimate := estimateTokens(parsed)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"input_tokens": estimate})
}

// forwardCountTokens sweeps the configured Anthropic upstream with the raw
// body unchanged, returning its response body verbatim. A false second
// return means every candidate failed and the caller should fall back to
// a local estimate.
func (d *ChatDeps) forwardCountTokens(ctx context.Context, raw []byte) ([]byte, bool) {
	urls, err := urlbuilder.BuildAll(d.Config.ClaudeBaseURL, urlbuilder.ProviderAnthropic, countTokensPath)
	if err != nil {
		gwlog.Errorf("count_tokens: building claude urls: %v", err)
		return nil, false
	}

	headers := map[string]string{
		"content-type":      "application/json",
		"x-api-key":         d.Config.ClaudeAPIKey,
		"anthropic-version": "2023-06-01",
	}
	// The variant is a placeholder: marshal ignores it and always returns
	// the client's raw body, since count_tokens forwards verbatim rather
	// than re-encoding a converted request.
	variants := []map[string]interface{}{{}}
	marshal := func(map[string]interface{}) ([]byte, error) { return raw, nil }

	accepted, err := d.AnthropicSel.Sweep(ctx, urls, variants, headers, marshal)
	if err != nil {
		gwlog.Errorf("count_tokens: upstream sweep failed, falling back to local estimate: %v", err)
		return nil, false
	}
	defer accepted.Response.Body.Close()

	body := new(bytes.Buffer)
	if _, err := io.Copy(body, accepted.Response.Body); err != nil {
		gwlog.Errorf("count_tokens: reading upstream body: %v", err)
		return nil, false
	}
	return body.Bytes(), true
}

// estimateTokens walks a decoded JSON value recursively, summing
// ceil(len(bytes)/4) for every string leaf, attributing
// imageBlockTokenEstimate to any block whose "type" is "image", and
// recursing through maps, arrays, and content blocks alike.
func estimateTokens(v interface{}) int {
	switch val := v.(type) {
	case string:
		return ceilDiv(len(val), bytesPerTokenEstimate)
	case map[string]interface{}:
		if t, ok := val["type"].(string); ok && t == "image" {
			return imageBlockTokenEstimate
		}
		total := 0
		for _, child := range val {
			total += estimateTokens(child)
		}
		return total
	case []interface{}:
		total := 0
		for _, child := range val {
			total += estimateTokens(child)
		}
		return total
	default:
		return 0
	}
}

func ceilDiv(a, b int) int {
	if a == 0 {
		return 0
	}
	return (a + b - 1) / b
}
