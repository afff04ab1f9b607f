package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextCompletionToCanonical_StringPrompt(t *testing.T) {
	req := TextCompletionRequest{Model: "gpt-3.5-turbo-instruct", Prompt: "write a haiku"}
	out, err := TextCompletionToCanonical(req)
	require.NoError(t, err)
	require.Len(t, out.Input, 1)
	assert.Equal(t, "user", out.Input[0].Role)
	assert.Equal(t, "write a haiku", out.Input[0].Content[0].Text)
}

func TestTextCompletionToCanonical_BatchPromptUsesFirst(t *testing.T) {
	req := TextCompletionRequest{Model: "gpt-3.5-turbo-instruct", Prompt: []interface{}{"first", "second"}}
	out, err := TextCompletionToCanonical(req)
	require.NoError(t, err)
	assert.Equal(t, "first", out.Input[0].Content[0].Text)
}

func TestTextCompletionToCanonical_EmptyPromptFails(t *testing.T) {
	_, err := TextCompletionToCanonical(TextCompletionRequest{Model: "gpt-3.5-turbo-instruct", Prompt: ""})
	require.Error(t, err)
}

func TestTextCompletionToCanonical_MaxTokensCarried(t *testing.T) {
	mt := 64
	req := TextCompletionRequest{Model: "m", Prompt: "hi", MaxTokens: &mt}
	out, err := TextCompletionToCanonical(req)
	require.NoError(t, err)
	require.NotNil(t, out.MaxOutputTokens)
	assert.Equal(t, 64, *out.MaxOutputTokens)
}
