// Package urlbuilder normalizes configured base URLs into the ordered,
// deduplicated candidate endpoint lists the upstream selector sweeps.
package urlbuilder

import (
	"fmt"
	"regexp"
	"strings"
)

// Provider discriminates the per-provider endpoint-inference rules.
type Provider string

const (
	ProviderOpenAIResponses Provider = "openai-responses"
	ProviderGemini          Provider = "gemini"
	ProviderAnthropic       Provider = "anthropic"
)

var collapseDoubleSlash = regexp.MustCompile(`/{2,}`)
var collapseDoubleV1 = regexp.MustCompile(`/v1/+v1`)

// maxCollapsePasses bounds the fixed-point iteration collapsing repeated
// path segments.
const maxCollapsePasses = 6

// normalizePath collapses `//+` to `/` and `/v1/+v1` to `/v1`, iterating to
// a fixed point, bounded at maxCollapsePasses.
func normalizePath(p string) string {
	for i := 0; i < maxCollapsePasses; i++ {
		next := collapseDoubleSlash.ReplaceAllString(p, "/")
		next = collapseDoubleV1.ReplaceAllString(next, "/v1")
		if next == p {
			return next
		}
		p = next
	}
	return p
}

// normalizeBase rejects the bare scheme words and defaults to https://.
func normalizeBase(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("urlbuilder: empty base url")
	}
	lower := strings.ToLower(trimmed)
	if lower == "http" || lower == "https" {
		return "", fmt.Errorf("urlbuilder: base url %q is a bare scheme", trimmed)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	return strings.TrimRight(trimmed, "/"), nil
}

// endpointSuffix is the configured-or-inferred target path for a base,
// e.g. "/v1/responses".
func endpointSuffix(provider Provider, configuredPath string) []string {
	if configuredPath != "" {
		return []string{normalizePath(ensureLeadingSlash(configuredPath))}
	}
	switch provider {
	case ProviderGemini:
		return []string{"/v1beta/models"}
	case ProviderAnthropic:
		return []string{"/v1/messages"}
	default: // OpenAI Responses: the two fixed suffixes; Build orders the candidates
		return []string{"/responses", "/v1/responses"}
	}
}

func ensureLeadingSlash(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

// Build produces the ordered, deduplicated candidate endpoint list for one
// base URL. When the base already ends in the target endpoint it is kept
// as-is; otherwise the path is appended, inferring from the base's own
// shape (a base ending `/v1` or `/openai/v1` takes `/responses` directly).
// For OpenAI Responses with no configured path, the candidates inferred,
// `/v1/responses`, `/responses` are emitted in that priority order,
// deduplicated and skipping any that would double up to `/v1/v1/responses`;
// the inferred one always equals one of the other two, so at most two
// distinct URLs result.
func Build(rawBase string, provider Provider, configuredPath string) ([]string, error) {
	base, err := normalizeBase(rawBase)
	if err != nil {
		return nil, err
	}

	if configuredPath != "" {
		return []string{joinAndNormalize(base, endpointSuffix(provider, configuredPath)[0])}, nil
	}

	if provider != ProviderOpenAIResponses {
		return []string{joinAndNormalize(base, endpointSuffix(provider, "")[0])}, nil
	}

	target := "/responses"
	if strings.HasSuffix(base, target) {
		return []string{base}, nil
	}

	var candidates []string
	seen := map[string]bool{}
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			candidates = append(candidates, u)
		}
	}

	if strings.HasSuffix(base, "/v1") || strings.HasSuffix(base, "/openai/v1") {
		add(joinAndNormalize(base, "/responses"))
	}
	if u := joinAndNormalize(base, "/v1/responses"); !strings.Contains(u, "/v1/v1/responses") {
		add(u)
	}
	add(joinAndNormalize(base, "/responses"))

	return candidates, nil
}

func joinAndNormalize(base, suffix string) string {
	return base + normalizePath(suffix)
}

// BuildAll expands a comma-separated list of base URLs into one flattened,
// order-preserving, deduplicated candidate list.
func BuildAll(commaSeparated string, provider Provider, configuredPath string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, raw := range strings.Split(commaSeparated, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		urls, err := Build(raw, provider, configuredPath)
		if err != nil {
			return nil, err
		}
		for _, u := range urls {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out, nil
}
