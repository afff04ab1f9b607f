package translator

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeTextCompletionChunk(t *testing.T, frame string) TextCompletionChunk {
	t.Helper()
	line := strings.TrimPrefix(frame, "data: ")
	line = strings.TrimSuffix(line, "\n\n")
	var chunk TextCompletionChunk
	require.NoError(t, json.Unmarshal([]byte(line), &chunk))
	return chunk
}

func TestTextCompletionEmitter_TextDeltaCarriesNoRole(t *testing.T) {
	state := NewState()
	emitter := NewTextCompletionEmitter(state, 1000)

	frames, err := emitter.Emit(Delta{Kind: DeltaText, Text: "once upon a time"})
	require.NoError(t, err)
	require.Len(t, frames, 1)

	chunk := decodeTextCompletionChunk(t, frames[0])
	require.Len(t, chunk.Choices, 1)
	assert.Equal(t, "once upon a time", chunk.Choices[0].Text)
	assert.Nil(t, chunk.Choices[0].FinishReason)
}

func TestTextCompletionEmitter_ReasoningAndToolDeltasAreSuppressed(t *testing.T) {
	state := NewState()
	emitter := NewTextCompletionEmitter(state, 1000)

	frames, err := emitter.Emit(Delta{Kind: DeltaReasoningText, Text: "thinking"})
	require.NoError(t, err)
	assert.Nil(t, frames)

	frames2, err := emitter.Emit(Delta{Kind: DeltaToolCallDelta, ArgsDelta: `{}`})
	require.NoError(t, err)
	assert.Nil(t, frames2)
}

func TestTextCompletionEmitter_CompletedEmitsTerminalChunkThenDone(t *testing.T) {
	state := NewState()
	emitter := NewTextCompletionEmitter(state, 1000)
	emitter.Emit(Delta{Kind: DeltaText, Text: "hi"})

	frames, err := emitter.Emit(Delta{Kind: DeltaCompleted, FinishReason: "stop"})
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, "data: [DONE]\n\n", frames[1])

	chunk := decodeTextCompletionChunk(t, frames[0])
	require.NotNil(t, chunk.Choices[0].FinishReason)
	assert.Equal(t, "stop", *chunk.Choices[0].FinishReason)
}

func TestTextCompletionEmitter_CompletedIsIdempotent(t *testing.T) {
	state := NewState()
	emitter := NewTextCompletionEmitter(state, 1000)
	emitter.Emit(Delta{Kind: DeltaCompleted, FinishReason: "stop"})

	frames, err := emitter.Emit(Delta{Kind: DeltaCompleted, FinishReason: "stop"})
	require.NoError(t, err)
	assert.Nil(t, frames)
}

func TestBuildTextCompletionResponse_UsesHarvestedTextAndFinishReason(t *testing.T) {
	state := NewState()
	state.Apply(&ResponseEvent{
		Type:     "response.completed",
		Response: &ResponseBody{ID: "resp_1", Output: []OutputItem{{Type: "message", Content: []ContentPart{{Type: "output_text", Text: "done"}}}}},
	})
	resp := BuildTextCompletionResponse(state, Delta{Kind: DeltaCompleted, FinishReason: "stop"}, 1000)
	assert.Equal(t, "text_completion", resp.Object)
	assert.Equal(t, "done", resp.Choices[0].Text)
	require.NotNil(t, resp.Choices[0].FinishReason)
	assert.Equal(t, "stop", *resp.Choices[0].FinishReason)
}
