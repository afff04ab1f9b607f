package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsp2com/gateway/pkg/gwconfig"
	"github.com/rsp2com/gateway/pkg/upstream"
)

func TestEstimateTokens_SumsStringLeavesAndImageBlocks(t *testing.T) {
	doc := map[string]interface{}{
		"model": "claude-sonnet-4",
		"messages": []interface{}{
			map[string]interface{}{
				"role": "user",
				"content": []interface{}{
					map[string]interface{}{"type": "text", "text": strings.Repeat("a", 8)},
					map[string]interface{}{"type": "image", "source": map[string]interface{}{"data": "abc"}},
				},
			},
		},
	}

	got := estimateTokens(doc)
	// "claude-sonnet-4" (15 bytes -> 4) + "user" (4->1) + block type "text" (4->1) + text body (8->2) + image flat cost.
	assert.Equal(t, ceilDiv(len("claude-sonnet-4"), 4)+ceilDiv(len("user"), 4)+ceilDiv(len("text"), 4)+ceilDiv(8, 4)+imageBlockTokenEstimate, got)
}

func TestEstimateTokens_EmptyStringIsZero(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, 0, ceilDiv(0, 4))
	assert.Equal(t, 1, ceilDiv(1, 4))
	assert.Equal(t, 1, ceilDiv(4, 4))
	assert.Equal(t, 2, ceilDiv(5, 4))
}

func TestCountTokensHandler_ForwardsUpstreamBodyVerbatim(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages/count_tokens", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"input_tokens":42}`))
	}))
	defer upstreamSrv.Close()

	deps := &ChatDeps{
		Config: &gwconfig.Config{ClaudeBaseURL: upstreamSrv.URL, ClaudeAPIKey: "sk-test", MaxInputChars: 1000},
		AnthropicSel: &upstream.Selector{HTTPClient: upstreamSrv.Client()},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/messages/count_tokens", strings.NewReader(`{"model":"claude-sonnet-4","messages":[]}`))
	w := httptest.NewRecorder()
	deps.CountTokensHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(42), body["input_tokens"])
}

func TestCountTokensHandler_FallsBackToLocalEstimateWhenUpstreamFails(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer upstreamSrv.Close()

	deps := &ChatDeps{
		Config: &gwconfig.Config{ClaudeBaseURL: upstreamSrv.URL, ClaudeAPIKey: "sk-test", MaxInputChars: 1000},
		AnthropicSel: &upstream.Selector{HTTPClient: upstreamSrv.Client()},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/messages/count_tokens", strings.NewReader(`{"model":"claude-sonnet-4","messages":[{"role":"user","content":"hi"}]}`))
	w := httptest.NewRecorder()
	deps.CountTokensHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	_, ok := body["input_tokens"]
	assert.True(t, ok)
}
