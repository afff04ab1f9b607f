package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResponse struct {
	status      int
	contentType string
	body        string
}

type stubClient struct {
	responses []stubResponse
	calls     int
	onRequest func(req *http.Request)
}

func (c *stubClient) Do(req *http.Request) (*http.Response, error) {
	if c.onRequest != nil {
		c.onRequest(req)
	}
	idx := c.calls
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	c.calls++
	r := c.responses[idx]
	return &http.Response{
		StatusCode: r.status,
		Header:     http.Header{"Content-Type": []string{r.contentType}},
		Body:       io.NopCloser(bytes.NewBufferString(r.body)),
	}, nil
}

func marshalJSON(v map[string]interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func TestSweep_AcceptsFirstNonSSESuccess(t *testing.T) {
	client := &stubClient{responses: []stubResponse{
		{status: 200, contentType: "application/json", body: `{"ok":true}`},
	}}
	s := NewSelector(client)
	accepted, err := s.Sweep(context.Background(), []string{"https://a.example/v1/responses"},
		[]map[string]interface{}{{"model": "gpt-x"}}, nil, marshalJSON)
	require.NoError(t, err)
	require.NotNil(t, accepted)
	assert.Equal(t, "https://a.example/v1/responses", accepted.URL)
}

func TestSweep_HopsURLOn404(t *testing.T) {
	client := &stubClient{responses: []stubResponse{
		{status: 404, contentType: "application/json", body: `{"error":"unknown route"}`},
	}}
	s := NewSelector(client)
	_, err := s.Sweep(context.Background(), []string{"https://a.example/v1/responses"},
		[]map[string]interface{}{{"model": "gpt-x"}}, nil, marshalJSON)
	require.Error(t, err)
}

func TestSweep_RetriesNextVariantOnRetryableBody(t *testing.T) {
	client := &stubClient{responses: []stubResponse{
		{status: 400, contentType: "application/json", body: `{"error":"unrecognized field"}`},
		{status: 200, contentType: "application/json", body: `{"ok":true}`},
	}}
	s := NewSelector(client)
	accepted, err := s.Sweep(context.Background(), []string{"https://a.example/v1/responses"},
		[]map[string]interface{}{{"a": 1}, {"b": 2}}, nil, marshalJSON)
	require.NoError(t, err)
	require.NotNil(t, accepted)
	assert.Equal(t, map[string]interface{}{"b": 2}, accepted.Variant)
}

func TestSweep_EmptySSEFallsBackToStreamFalseRetry(t *testing.T) {
	calls := 0
	client := &stubClient{
		responses: []stubResponse{
			{status: 200, contentType: "text/event-stream", body: ""},
			{status: 200, contentType: "application/json", body: `{"ok":true}`},
		},
		onRequest: func(req *http.Request) { calls++ },
	}
	s := NewSelector(client)
	accepted, err := s.Sweep(context.Background(), []string{"https://a.example/v1/responses"},
		[]map[string]interface{}{{"stream": true}}, nil, marshalJSON)
	require.NoError(t, err)
	require.NotNil(t, accepted)
	assert.Equal(t, 2, calls)
	assert.Equal(t, false, accepted.Variant["stream"])
}
