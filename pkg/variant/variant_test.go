package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsp2com/gateway/pkg/canonical"
)

func simpleRequest() *canonical.Request {
	maxTokens := 100
	return &canonical.Request{
		Model:           "gpt-5",
		Instructions:    "be terse",
		MaxOutputTokens: &maxTokens,
		Input: []canonical.InputItem{
			canonical.NewMessage("user", []canonical.ContentPart{{Type: canonical.ContentInputText, Text: "hi"}}),
		},
	}
}

func TestGenerate_BaseVariantAlwaysPresent(t *testing.T) {
	variants := Generate(simpleRequest())
	require.NotEmpty(t, variants)
	assert.Equal(t, "gpt-5", variants[0]["model"])
}

func TestGenerate_MaxTokensRenameVariant(t *testing.T) {
	variants := Generate(simpleRequest())
	found := false
	for _, v := range variants {
		if mt, ok := v["max_tokens"]; ok {
			assert.EqualValues(t, 100, mt)
			assert.NotContains(t, v, "max_output_tokens")
			found = true
		}
	}
	assert.True(t, found, "expected a max_tokens-renamed variant")
}

func TestGenerate_InstructionsPrependedVariant(t *testing.T) {
	variants := Generate(simpleRequest())
	found := false
	for _, v := range variants {
		if _, has := v["instructions"]; has {
			continue
		}
		input, ok := v["input"].([]interface{})
		if !ok || len(input) == 0 {
			continue
		}
		first, ok := input[0].(map[string]interface{})
		if ok && first["role"] == "system" {
			found = true
		}
	}
	assert.True(t, found, "expected an instructions-prepended variant")
}

func TestGenerate_FlatStringVariant_NoImagesOrTools(t *testing.T) {
	variants := Generate(simpleRequest())
	found := false
	for _, v := range variants {
		input, ok := v["input"].([]interface{})
		if !ok || len(input) != 1 {
			continue
		}
		msg, ok := input[0].(map[string]interface{})
		if !ok {
			continue
		}
		if _, isString := msg["content"].(string); isString {
			found = true
		}
	}
	assert.True(t, found, "expected a flat-string-content variant")
}

func TestGenerate_ConcatenatedPromptVariant(t *testing.T) {
	variants := Generate(simpleRequest())
	found := false
	for _, v := range variants {
		input, ok := v["input"].([]interface{})
		if !ok || len(input) != 1 {
			continue
		}
		msg := input[0].(map[string]interface{})
		if msg["role"] != "user" {
			continue
		}
		if parts, ok := msg["content"].([]interface{}); ok && len(parts) == 1 {
			found = true
		}
	}
	assert.True(t, found)
}

func TestGenerate_ReasoningEffortVariants(t *testing.T) {
	req := simpleRequest()
	req.Reasoning = &canonical.Reasoning{Effort: "high"}
	variants := Generate(req)

	var sawNested, sawFlat, sawNeither bool
	for _, v := range variants {
		if r, ok := v["reasoning"].(map[string]interface{}); ok && r["effort"] == "high" {
			sawNested = true
		}
		if eff, ok := v["reasoning_effort"]; ok && eff == "high" {
			sawFlat = true
		}
		_, hasReasoning := v["reasoning"]
		_, hasFlat := v["reasoning_effort"]
		if !hasReasoning && !hasFlat {
			sawNeither = true
		}
	}
	assert.True(t, sawNested)
	assert.True(t, sawFlat)
	assert.True(t, sawNeither)
}

func TestGenerate_DedupesStructurallyIdenticalVariants(t *testing.T) {
	req := &canonical.Request{
		Model: "gpt-5",
		Input: []canonical.InputItem{
			canonical.NewMessage("user", []canonical.ContentPart{{Type: canonical.ContentInputText, Text: "hi"}}),
		},
	}
	variants := Generate(req)
	seen := map[string]bool{}
	for _, v := range variants {
		key := stableString(v)
		require.False(t, seen[key], "found duplicate variant")
		seen[key] = true
	}
}

func TestGenerate_ImageURLObjectFormVariant(t *testing.T) {
	req := &canonical.Request{
		Model: "gpt-5",
		Input: []canonical.InputItem{
			canonical.NewMessage("user", []canonical.ContentPart{
				{Type: canonical.ContentInputImage, ImageURL: "https://example.com/cat.png"},
			}),
		},
	}
	variants := Generate(req)
	found := false
	for _, v := range variants {
		input := v["input"].([]interface{})
		msg := input[0].(map[string]interface{})
		parts, ok := msg["content"].([]interface{})
		if !ok {
			continue
		}
		part := parts[0].(map[string]interface{})
		if urlObj, ok := part["image_url"].(map[string]interface{}); ok {
			assert.Equal(t, "https://example.com/cat.png", urlObj["url"])
			found = true
		}
	}
	assert.True(t, found, "expected an image_url-object-form variant")
}
