package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_Apply_CreatedCapturesIdsAndModel(t *testing.T) {
	s := NewState()
	d := s.Apply(&ResponseEvent{Type: "response.created", Response: &ResponseBody{ID: "resp_1", Model: "gpt-5"}})
	assert.Equal(t, DeltaNone, d.Kind)
	assert.Equal(t, "resp_1", s.ResponseID)
	assert.Equal(t, "chatcmpl_resp_1", s.ChatID)
	assert.Equal(t, "gpt-5", s.Model)
}

func TestState_Apply_TextDeltaAccumulatesAndEmits(t *testing.T) {
	s := NewState()
	d := s.Apply(&ResponseEvent{Type: "response.output_text.delta", Delta: "hello"})
	assert.Equal(t, DeltaText, d.Kind)
	assert.Equal(t, "hello", d.Text)
	assert.Equal(t, "hello", s.HarvestedText())
}

func TestState_Apply_TextDoneSkippedWhenDeltaAlreadySeen(t *testing.T) {
	s := NewState()
	s.Apply(&ResponseEvent{Type: "response.output_text.delta", Delta: "hi"})
	d := s.Apply(&ResponseEvent{Type: "response.output_text.done", Text: "hi"})
	assert.Equal(t, DeltaNone, d.Kind)
}

func TestState_Apply_TextDoneEmitsWhenNoDeltaSeen(t *testing.T) {
	s := NewState()
	d := s.Apply(&ResponseEvent{Type: "response.output_text.done", Text: "whole answer"})
	assert.Equal(t, DeltaText, d.Kind)
	assert.Equal(t, "whole answer", d.Text)
}

func TestState_ReconcileReasoning_PrefixEmitsSuffixOnly(t *testing.T) {
	s := NewState()
	d1 := s.Apply(&ResponseEvent{Type: "response.reasoning.delta", Delta: "Let me think"})
	assert.Equal(t, "Let me think", d1.Text)
	d2 := s.Apply(&ResponseEvent{Type: "response.reasoning.delta", Delta: "Let me think about this"})
	assert.Equal(t, DeltaReasoningText, d2.Kind)
	assert.Equal(t, " about this", d2.Text)
}

func TestState_ReconcileReasoning_RestartEmitsNothing(t *testing.T) {
	s := NewState()
	s.Apply(&ResponseEvent{Type: "response.reasoning.delta", Delta: "Let me think about this"})
	d := s.Apply(&ResponseEvent{Type: "response.reasoning.delta", Delta: "Let me think"})
	assert.Equal(t, DeltaNone, d.Kind)
}

func TestState_ReconcileReasoning_DivergentIsAdditive(t *testing.T) {
	s := NewState()
	s.Apply(&ResponseEvent{Type: "response.reasoning.delta", Delta: "foo"})
	d := s.Apply(&ResponseEvent{Type: "response.reasoning.delta", Delta: "bar"})
	assert.Equal(t, DeltaReasoningText, d.Kind)
	assert.Equal(t, "bar", d.Text)
}

func TestState_ToolCall_DeltaThenDoneKeyedByItemID(t *testing.T) {
	s := NewState()
	d1 := s.Apply(&ResponseEvent{Type: "response.function_call_arguments.delta", ItemID: "item_1", Delta: `{"a":`})
	assert.Equal(t, DeltaToolCallDelta, d1.Kind)
	assert.Equal(t, `{"a":`, d1.ArgsDelta)

	d2 := s.Apply(&ResponseEvent{Type: "response.function_call_arguments.delta", ItemID: "item_1", Delta: `1}`})
	assert.Equal(t, d1.ToolIndex, d2.ToolIndex)

	d3 := s.Apply(&ResponseEvent{
		Type: "response.output_item.done",
		Item: &OutputItem{Type: "function_call", ID: "item_1", CallID: "call_abc", Name: "lookup", Arguments: `{"a":1}`},
	})
	require.Equal(t, DeltaToolCallDelta, d3.Kind)
	assert.Equal(t, "call_abc", d3.CallID)

	calls := s.ToolCallsInOrder()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_abc", calls[0].CallID)
	assert.Equal(t, "lookup", calls[0].Name)
	assert.Equal(t, `{"a":1}`, calls[0].Args)
	assert.True(t, s.HasToolCalls())
}

func TestState_ToolCall_DoneOverwritesAccumulatedArgsRegardless(t *testing.T) {
	s := NewState()
	s.Apply(&ResponseEvent{Type: "response.function_call_arguments.delta", ItemID: "item_9", Delta: `{"x":1`})
	d := s.Apply(&ResponseEvent{
		Type: "response.function_call_arguments.done",
		ItemID: "item_9", CallID: "call_9", Arguments: `{"x":2}`,
	})
	assert.Equal(t, DeltaToolCallDelta, d.Kind)
	calls := s.ToolCallsInOrder()
	require.Len(t, calls, 1)
	assert.Equal(t, `{"x":2}`, calls[0].Args)
}

func TestState_Apply_CompletedHarvestsWhenNoDeltasSeen(t *testing.T) {
	s := NewState()
	d := s.Apply(&ResponseEvent{
		Type: "response.completed",
		Response: &ResponseBody{
			ID: "resp_2",
			Output: []OutputItem{
				{Type: "message", Content: []ContentPart{{Type: "output_text", Text: "harvested"}}},
				{Type: "function_call", ID: "item_5", CallID: "call_5", Name: "search", Arguments: `{"q":"x"}`},
			},
		},
	})
	require.Equal(t, DeltaCompleted, d.Kind)
	assert.Equal(t, "harvested", s.HarvestedText())
	require.Len(t, d.ToolCalls, 1)
	assert.Equal(t, "call_5", d.ToolCalls[0].CallID)
	assert.True(t, s.HasToolCalls())
}

func TestState_Apply_CompletedSkipsHarvestWhenDeltasAlreadySeen(t *testing.T) {
	s := NewState()
	s.Apply(&ResponseEvent{Type: "response.output_text.delta", Delta: "streamed"})
	d := s.Apply(&ResponseEvent{
		Type: "response.completed",
		Response: &ResponseBody{
			ID: "resp_3",
			Output: []OutputItem{
				{Type: "message", Content: []ContentPart{{Type: "output_text", Text: "should not be harvested"}}},
			},
		},
	})
	assert.Equal(t, DeltaCompleted, d.Kind)
	assert.Nil(t, d.ToolCalls)
	assert.Equal(t, "streamed", s.HarvestedText())
}

func TestState_Apply_FailedWrapsStreamError(t *testing.T) {
	s := NewState()
	d := s.Apply(&ResponseEvent{Type: "response.failed", Error: &ResponseError{Code: "server_error", Message: "boom"}})
	require.Equal(t, DeltaFailed, d.Kind)
	require.Error(t, d.Err)
	assert.Equal(t, "server_error: boom", d.Err.Error())
}

func TestState_SentRoleAndSentFinalGates(t *testing.T) {
	s := NewState()
	assert.False(t, s.SentRole())
	s.MarkRoleSent()
	assert.True(t, s.SentRole())

	assert.False(t, s.SentFinal())
	s.MarkFinalSent()
	assert.True(t, s.SentFinal())
}
