package httpapi

import (
	"strings"

	"github.com/rsp2com/gateway/pkg/urlbuilder"
)

// ProviderForModel applies the gateway's model-id prefix routing rule: a
// model beginning with "gemini" goes to Gemini, one beginning with
// "claude" goes to Anthropic, everything else goes to OpenAI Responses.
func ProviderForModel(model string) urlbuilder.Provider {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "gemini"):
		return urlbuilder.ProviderGemini
	case strings.HasPrefix(lower, "claude"):
		return urlbuilder.ProviderAnthropic
	default:
		return urlbuilder.ProviderOpenAIResponses
	}
}
