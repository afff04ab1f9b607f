package dialect

import (
	"github.com/rsp2com/gateway/pkg/canonical"
	"github.com/rsp2com/gateway/pkg/gwerrors"
)

// TextCompletionRequest is an inbound legacy /v1/completions body. Prompt
// is polymorphic (a single string or a batch array); this gateway only
// ever forwards the first prompt of a batch, since the canonical request
// carries one conversation, not many.
type TextCompletionRequest struct {
	Model       string      `json:"model"`
	Prompt      interface{} `json:"prompt"`
	Suffix      string      `json:"suffix,omitempty"`
	Stream      bool        `json:"stream,omitempty"`
	MaxTokens   *int        `json:"max_tokens,omitempty"`
	Temperature *float64    `json:"temperature,omitempty"`
	TopP        *float64    `json:"top_p,omitempty"`
	Echo        bool        `json:"echo,omitempty"`
	User        string      `json:"user,omitempty"`
}

// TextCompletionToCanonical converts a legacy Text Completions request into
// the canonical Responses-shaped request: the prompt becomes a single user
// message. †Fails with InvalidRequest when the prompt is empty, matching
// the empty-input-list failure ChatToCanonical reports for its own dialect.
func TextCompletionToCanonical(req TextCompletionRequest) (*canonical.Request, error) {
	prompt := flattenPrompt(req.Prompt)
	if prompt == "" {
		return nil, gwerrors.InvalidRequest("text completion request has an empty prompt")
	}

	out := &canonical.Request{
		Model:       req.Model,
		Stream:      req.Stream,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		User:        req.User,
		Input: []canonical.InputItem{
			canonical.NewMessage("user", []canonical.ContentPart{{Type: canonical.ContentInputText, Text: prompt}}),
		},
	}
	if req.MaxTokens != nil {
		out.MaxOutputTokens = req.MaxTokens
	}
	return out, nil
}

// flattenPrompt reduces the polymorphic prompt field (string, or a batch
// array of strings) to the single string this gateway forwards.
func flattenPrompt(prompt interface{}) string {
	switch v := prompt.(type) {
	case string:
		return v
	case []interface{}:
		for _, raw := range v {
			if s, ok := raw.(string); ok && s != "" {
				return s
			}
		}
		return ""
	default:
		return ""
	}
}
