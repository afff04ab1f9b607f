package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsp2com/gateway/pkg/canonical"
	"github.com/rsp2com/gateway/pkg/session"
	"github.com/rsp2com/gateway/pkg/translator"
	"github.com/rsp2com/gateway/pkg/upstream"
	"github.com/rsp2com/gateway/pkg/urlbuilder"
)

type stubClient struct {
	calls int
}

func (c *stubClient) Do(req *http.Request) (*http.Response, error) {
	c.calls++
	body, _ := json.Marshal(map[string]interface{}{
		"id":     "resp_1",
		"object": "response",
		"status": "completed",
		"output": []map[string]interface{}{
			{"type": "message", "role": "assistant", "content": []map[string]interface{}{{"type": "output_text", "text": "hi"}}},
		},
	})
	return &http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
	}, nil
}

func newTestOrchestrator(client *stubClient, store session.Store) *Orchestrator {
	return &Orchestrator{
		Selector:       upstream.NewSelector(client),
		Sessions:       session.NewManager(store),
		Limits:         Limits{MaxTurns: 12, MaxMessages: 40, MaxInputChars: 300_000},
		BaseURLs:       "https://api.openai.com/v1",
		Provider:       urlbuilder.ProviderOpenAIResponses,
		ConfiguredPath: "/responses",
		Headers:        map[string]string{"Authorization": "Bearer test"},
	}
}

func marshalVariant(v map[string]interface{}) ([]byte, error) { return json.Marshal(v) }

func TestOrchestrator_Run_SweepsAndReturnsAccepted(t *testing.T) {
	client := &stubClient{}
	o := newTestOrchestrator(client, session.NewMemoryStore())

	req := &canonical.Request{Model: "gpt-5", Input: []canonical.InputItem{userMsg("hi")}}
	prepared, err := o.Run(context.Background(), "", "worker-key", req, marshalVariant)
	require.NoError(t, err)
	require.NotNil(t, prepared.Accepted)
	assert.NotEmpty(t, prepared.SessionKey)
	assert.Equal(t, 1, client.calls)
}

func TestOrchestrator_Finalize_PersistsResponseIDAndSignatures(t *testing.T) {
	store := session.NewMemoryStore()
	o := newTestOrchestrator(&stubClient{}, store)
	ctx := context.Background()

	state := translator.NewState()
	state.Apply(&translator.ResponseEvent{
		Type: "response.completed",
		Response: &translator.ResponseBody{
			ID: "resp_99",
			Output: []translator.OutputItem{
				{Type: "function_call", CallID: "fc_abc", Name: "search", ThoughtSignature: "sig-xyz"},
			},
		},
	})

	o.Finalize(ctx, "sess-key", state)

	id, ok := o.Sessions.PreviousResponseID(ctx, "sess-key")
	require.True(t, ok)
	assert.Equal(t, "resp_99", id)

	sigs := o.Sessions.ThoughtSignatures(ctx, "sess-key")
	require.Contains(t, sigs, "abc")
	assert.Equal(t, "sig-xyz", sigs["abc"].ThoughtSignature)
}

func TestOrchestrator_BuildDeltaOrFull_UsesDeltaWhenSafe(t *testing.T) {
	o := newTestOrchestrator(&stubClient{}, session.NewMemoryStore())
	req := &canonical.Request{
		Instructions: "be helpful",
		Input: []canonical.InputItem{
			userMsg("turn 1"),
			assistantMsg("reply 1"),
			userMsg("turn 2"),
		},
	}

	out := o.buildDeltaOrFull(req, "resp_prev")
	assert.Equal(t, "resp_prev", out.PreviousResponseID)
	assert.Empty(t, out.Instructions)
	require.Len(t, out.Input, 1)
	assert.Equal(t, "turn 2", out.Input[0].Content[0].Text)
}

func TestOrchestrator_BuildDeltaOrFull_FullWhenNoPriorAssistantTurn(t *testing.T) {
	o := newTestOrchestrator(&stubClient{}, session.NewMemoryStore())
	req := &canonical.Request{Input: []canonical.InputItem{userMsg("hi")}}

	out := o.buildDeltaOrFull(req, "resp_prev")
	assert.Empty(t, out.PreviousResponseID)
}
