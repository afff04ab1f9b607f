package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsp2com/gateway/pkg/canonical"
	"github.com/rsp2com/gateway/pkg/gwerrors"
)

func TestChatToCanonical_SystemBecomesInstructions(t *testing.T) {
	req := ChatRequest{
		Model: "gpt-4o",
		Messages: []ChatMessage{
			{Role: "system", Content: "be terse"},
			{Role: "developer", Content: "no markdown"},
			{Role: "user", Content: "hi"},
		},
	}
	out, err := ChatToCanonical(req)
	require.NoError(t, err)
	assert.Equal(t, "be terse\nno markdown", out.Instructions)
	require.Len(t, out.Input, 1)
	assert.Equal(t, "user", out.Input[0].Role)
}

func TestChatToCanonical_ToolMessageDroppedWithoutCallID(t *testing.T) {
	req := ChatRequest{
		Model: "gpt-4o",
		Messages: []ChatMessage{
			{Role: "user", Content: "hi"},
			{Role: "tool", Content: "result"},
		},
	}
	out, err := ChatToCanonical(req)
	require.NoError(t, err)
	require.Len(t, out.Input, 1)
}

func TestChatToCanonical_ToolMessageBecomesFunctionCallOutput(t *testing.T) {
	req := ChatRequest{
		Model: "gpt-4o",
		Messages: []ChatMessage{
			{Role: "user", Content: "hi"},
			{Role: "tool", ToolCallID: "call_1", Content: "42"},
		},
	}
	out, err := ChatToCanonical(req)
	require.NoError(t, err)
	require.Len(t, out.Input, 2)
	assert.Equal(t, canonical.KindFunctionCallOutput, out.Input[1].Kind)
	assert.Equal(t, "call_1", out.Input[1].CallID)
	assert.Equal(t, "42", out.Input[1].Output)
}

func TestChatToCanonical_AssistantToolCalls(t *testing.T) {
	req := ChatRequest{
		Model: "gpt-4o",
		Messages: []ChatMessage{
			{Role: "user", Content: "weather?"},
			{
				Role: "assistant",
				ToolCalls: []ChatToolCall{
					{ID: "call_1", Type: "function", Function: ChatToolCallFunc{Name: "get_weather", Arguments: `{"city":"nyc"}`}},
				},
			},
		},
	}
	out, err := ChatToCanonical(req)
	require.NoError(t, err)
	require.Len(t, out.Input, 2)
	fc := out.Input[1]
	assert.Equal(t, canonical.KindFunctionCall, fc.Kind)
	assert.Equal(t, "get_weather", fc.Name)
	assert.Equal(t, "call_1", fc.CallID)
}

func TestChatToCanonical_AssistantReasoningFallback(t *testing.T) {
	req := ChatRequest{
		Model: "gpt-4o",
		Messages: []ChatMessage{
			{Role: "user", Content: "hi"},
			{Role: "assistant", ReasoningContent: "thinking..."},
		},
	}
	out, err := ChatToCanonical(req)
	require.NoError(t, err)
	require.Len(t, out.Input, 2)
	assert.Equal(t, "thinking...", out.Input[1].Content[0].Text)
}

func TestChatToCanonical_EmptyInputIsInvalidRequest(t *testing.T) {
	_, err := ChatToCanonical(ChatRequest{Model: "gpt-4o", Messages: []ChatMessage{{Role: "system", Content: "only instructions"}}})
	require.Error(t, err)
	ge, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.KindInvalidRequest, ge.Kind)
}

func TestChatToolsToResponses_FlattensFunctionTools(t *testing.T) {
	tools := []ChatTool{
		{Type: "function", Function: ChatToolFunc{Name: "f", Description: "d", Parameters: map[string]interface{}{"type": "object"}}},
	}
	out := ChatToolsToResponses(tools)
	require.Len(t, out, 1)
	assert.Equal(t, "f", out[0].Name)
	assert.Equal(t, "d", out[0].Description)
}

func TestChatToolChoiceToResponses_FlattensFunctionChoice(t *testing.T) {
	choice := map[string]interface{}{
		"type":     "function",
		"function": map[string]interface{}{"name": "f"},
	}
	out := ChatToolChoiceToResponses(choice)
	m, ok := out.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "f", m["name"])
}

func TestChatToolChoiceToResponses_StringPassesThrough(t *testing.T) {
	assert.Equal(t, "auto", ChatToolChoiceToResponses("auto"))
}
