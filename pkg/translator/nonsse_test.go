package translator

import (
	"strings"
	"testing"

	"github.com/rsp2com/gateway/pkg/gwerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferEvents_DecodesSSEStream(t *testing.T) {
	body := "data: {\"type\":\"response.created\",\"response\":{\"id\":\"resp_1\"}}\n\n" +
		"data: {\"type\":\"response.output_text.delta\",\"delta\":\"hi\"}\n\n" +
		"data: {\"type\":\"response.completed\",\"response\":{\"id\":\"resp_1\"}}\n\n" +
		"data: [DONE]\n\n"

	events, err := BufferEvents(strings.NewReader(body), 4096)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "response.created", events[0].Type)
	assert.Equal(t, "response.completed", events[2].Type)
}

func TestBufferEvents_OverflowReturnsError(t *testing.T) {
	body := strings.Repeat("data: {\"type\":\"response.output_text.delta\",\"delta\":\"x\"}\n\n", 100)
	_, err := BufferEvents(strings.NewReader(body), 32)
	require.Error(t, err)
	ge, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "invalid_request", string(ge.Kind))
}

func TestBufferEvents_FallsBackToWholeJSONBody(t *testing.T) {
	body := `{"id":"resp_2","object":"response","output":[{"type":"message","content":[{"type":"output_text","text":"fallback"}]}]}`

	events, err := BufferEvents(strings.NewReader(body), 4096)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "response.completed", events[0].Type)
	require.NotNil(t, events[0].Response)
	assert.Equal(t, "resp_2", events[0].Response.ID)
}

func TestBufferEvents_FallsBackToNestedSSEString(t *testing.T) {
	nested := "data: {\"type\":\"response.output_text.delta\",\"delta\":\"nested\"}\n\n"
	body := `"` + strings.ReplaceAll(nested, "\"", "\\\"") + `"`
	body = strings.ReplaceAll(body, "\n", "\\n")

	events, err := BufferEvents(strings.NewReader(body), 4096)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "response.output_text.delta", events[0].Type)
	assert.Equal(t, "nested", events[0].Delta)
}

func TestApplyAll_ReturnsTerminalCompletedDelta(t *testing.T) {
	state := NewState()
	events := []ResponseEvent{
		{Type: "response.created", Response: &ResponseBody{ID: "resp_3"}},
		{Type: "response.output_text.delta", Delta: "hello"},
		{Type: "response.completed", Response: &ResponseBody{ID: "resp_3"}},
	}
	terminal, err := ApplyAll(state, events)
	require.NoError(t, err)
	assert.Equal(t, DeltaCompleted, terminal.Kind)
	assert.Equal(t, "hello", state.HarvestedText())
}

func TestApplyAll_StopsAtFailure(t *testing.T) {
	state := NewState()
	events := []ResponseEvent{
		{Type: "response.created", Response: &ResponseBody{ID: "resp_4"}},
		{Type: "response.failed", Error: &ResponseError{Message: "boom"}},
	}
	_, err := ApplyAll(state, events)
	require.Error(t, err)
}

func TestBuildChatCompletionResponse_AssemblesTextAndToolCalls(t *testing.T) {
	state := NewState()
	events := []ResponseEvent{
		{Type: "response.created", Response: &ResponseBody{ID: "resp_5", Model: "gpt-5"}},
		{
			Type: "response.completed",
			Response: &ResponseBody{
				ID: "resp_5",
				Output: []OutputItem{
					{Type: "message", Content: []ContentPart{{Type: "output_text", Text: "final answer"}}},
					{Type: "function_call", ID: "item_1", CallID: "call_1", Name: "search", Arguments: `{"q":"x"}`},
				},
			},
		},
	}
	terminal, err := ApplyAll(state, events)
	require.NoError(t, err)

	resp := BuildChatCompletionResponse(state, terminal, 12345)
	assert.Equal(t, "chatcmpl_resp_5", resp.ID)
	assert.Equal(t, "gpt-5", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "final answer", resp.Choices[0].Message.Content)
	require.Len(t, resp.Choices[0].Message.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.Choices[0].Message.ToolCalls[0].ID)
	assert.Equal(t, "tool_calls", resp.Choices[0].FinishReason)
}
