// Package variant expands a canonical Responses request into the ordered,
// deduplicated list of equivalent upstream body shapes the selector sweeps
// through, compensating for upstreams that only accept a subset of the
// Responses API's surface.
package variant

import (
	"encoding/json"
	"sort"

	"github.com/rsp2com/gateway/pkg/canonical"
)

// Generate builds the ordered, deduplicated variant list for req. Ordering
// is first-match-wins during upstream selection, so earlier variants are
// preferred; the expansion is applied cumulatively, each step branching off
// every variant produced so far.
func Generate(req *canonical.Request) []map[string]interface{} {
	base := toBody(req)
	variants := []map[string]interface{}{base}

	if _, ok := base["max_output_tokens"]; ok {
		variants = append(variants, withMaxTokensRenamed(variants)...)
	}

	if _, hasInstr := base["instructions"]; hasInstr {
		if _, isArray := base["input"].([]interface{}); isArray {
			variants = append(variants, withInstructionsPrepended(variants)...)
		}
	}

	if !req.HasImages() && !req.HasToolItems() {
		variants = append(variants, withFlatStringInput(variants, req)...)
		variants = append(variants, singleConcatenatedPrompt(req))
	}

	variants = append(variants, withImageURLObjectForm(variants)...)

	if req.Reasoning != nil && req.Reasoning.Effort != "" {
		variants = append(variants, withReasoningEffortVariants(variants, req.Reasoning.Effort)...)
	}

	if req.PromptCacheRetention != "" || req.SafetyIdentifier != "" {
		variants = append(variants, withCacheAndSafetyRemoved(variants)...)
	}

	return dedup(variants)
}

func toBody(req *canonical.Request) map[string]interface{} {
	raw, _ := json.Marshal(req)
	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)
	for k, v := range req.Extra {
		if _, exists := body[k]; !exists {
			body[k] = v
		}
	}
	return body
}

func cloneBody(b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// withMaxTokensRenamed renames max_output_tokens to max_tokens for every
// variant produced so far.
func withMaxTokensRenamed(variants []map[string]interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for _, v := range variants {
		mot, ok := v["max_output_tokens"]
		if !ok {
			continue
		}
		nv := cloneBody(v)
		delete(nv, "max_output_tokens")
		nv["max_tokens"] = mot
		out = append(out, nv)
	}
	return out
}

// withInstructionsPrepended deletes instructions and prepends a system
// message carrying the same text, for every variant produced so far whose
// input is still an array.
func withInstructionsPrepended(variants []map[string]interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for _, v := range variants {
		instr, ok := v["instructions"].(string)
		if !ok || instr == "" {
			continue
		}
		input, ok := v["input"].([]interface{})
		if !ok {
			continue
		}
		nv := cloneBody(v)
		delete(nv, "instructions")
		sysMsg := map[string]interface{}{
			"role":    "system",
			"content": []interface{}{map[string]interface{}{"type": "input_text", "text": instr}},
		}
		newInput := make([]interface{}, 0, len(input)+1)
		newInput = append(newInput, sysMsg)
		newInput = append(newInput, input...)
		nv["input"] = newInput
		out = append(out, nv)
	}
	return out
}

// withFlatStringInput replaces each message's content with a flattened
// plain string, applicable only when there are no images or tool items.
func withFlatStringInput(variants []map[string]interface{}, req *canonical.Request) []map[string]interface{} {
	flat := flattenMessages(req)
	var out []map[string]interface{}
	for _, v := range variants {
		if _, ok := v["input"].([]interface{}); !ok {
			continue
		}
		nv := cloneBody(v)
		nv["input"] = flat
		out = append(out, nv)
	}
	return out
}

func flattenMessages(req *canonical.Request) []interface{} {
	var flat []interface{}
	for _, item := range req.Input {
		if item.Kind != canonical.KindMessage {
			continue
		}
		var text string
		for _, p := range item.Content {
			text += p.Text
		}
		flat = append(flat, map[string]interface{}{"role": item.Role, "content": text})
	}
	return flat
}

// singleConcatenatedPrompt builds the one-shot variant whose entire input
// is a single user message containing the full concatenated prompt.
func singleConcatenatedPrompt(req *canonical.Request) map[string]interface{} {
	body := toBody(req)
	delete(body, "instructions")
	body["input"] = []interface{}{
		map[string]interface{}{
			"role": "user",
			"content": []interface{}{
				map[string]interface{}{"type": "input_text", "text": req.ConcatenatedPrompt()},
			},
		},
	}
	return body
}

// withImageURLObjectForm rewrites bare-string image_url values to the
// {"url": "..."} object form, for every variant carrying input_image parts.
func withImageURLObjectForm(variants []map[string]interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for _, v := range variants {
		input, ok := v["input"].([]interface{})
		if !ok {
			continue
		}
		rewritten, changed := rewriteImageURLs(input)
		if !changed {
			continue
		}
		nv := cloneBody(v)
		nv["input"] = rewritten
		out = append(out, nv)
	}
	return out
}

func rewriteImageURLs(input []interface{}) ([]interface{}, bool) {
	changed := false
	out := make([]interface{}, len(input))
	for i, rawItem := range input {
		item, ok := rawItem.(map[string]interface{})
		if !ok {
			out[i] = rawItem
			continue
		}
		content, ok := item["content"].([]interface{})
		if !ok {
			out[i] = rawItem
			continue
		}
		newContent := make([]interface{}, len(content))
		for j, rawPart := range content {
			part, ok := rawPart.(map[string]interface{})
			if !ok || part["type"] != "input_image" {
				newContent[j] = rawPart
				continue
			}
			url, ok := part["image_url"].(string)
			if !ok {
				newContent[j] = rawPart
				continue
			}
			newPart := cloneBody(part)
			newPart["image_url"] = map[string]interface{}{"url": url}
			newContent[j] = newPart
			changed = true
		}
		newItem := cloneBody(item)
		newItem["content"] = newContent
		out[i] = newItem
	}
	return out, changed
}

// withReasoningEffortVariants produces, for each variant already carrying a
// reasoning effort, three further variants: nested {effort}, a flat
// reasoning_effort string, and both removed.
func withReasoningEffortVariants(variants []map[string]interface{}, effort string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, v := range variants {
		if _, ok := v["reasoning"]; !ok {
			continue
		}
		nested := cloneBody(v)
		nested["reasoning"] = map[string]interface{}{"effort": effort}
		out = append(out, nested)

		flat := cloneBody(v)
		delete(flat, "reasoning")
		flat["reasoning_effort"] = effort
		out = append(out, flat)

		neither := cloneBody(v)
		delete(neither, "reasoning")
		out = append(out, neither)
	}
	return out
}

// withCacheAndSafetyRemoved produces, for each variant, copies with
// prompt_cache_retention removed, safety_identifier removed, and both
// removed.
func withCacheAndSafetyRemoved(variants []map[string]interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for _, v := range variants {
		_, hasCache := v["prompt_cache_retention"]
		_, hasSafety := v["safety_identifier"]
		if !hasCache && !hasSafety {
			continue
		}
		if hasCache {
			nv := cloneBody(v)
			delete(nv, "prompt_cache_retention")
			out = append(out, nv)
		}
		if hasSafety {
			nv := cloneBody(v)
			delete(nv, "safety_identifier")
			out = append(out, nv)
		}
		if hasCache && hasSafety {
			nv := cloneBody(v)
			delete(nv, "prompt_cache_retention")
			delete(nv, "safety_identifier")
			out = append(out, nv)
		}
	}
	return out
}

// dedup removes structurally-equal variants via stable stringification,
// preserving first-seen order.
func dedup(variants []map[string]interface{}) []map[string]interface{} {
	seen := make(map[string]bool, len(variants))
	out := make([]map[string]interface{}, 0, len(variants))
	for _, v := range variants {
		key := stableString(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// stableString renders v with map keys sorted so structurally-identical
// bodies always produce the same string regardless of map iteration order.
func stableString(v interface{}) string {
	b, _ := json.Marshal(sortedValue(v))
	return string(b)
}

func sortedValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(orderedMap, 0, len(keys))
		for _, k := range keys {
			out = append(out, orderedPair{k, sortedValue(t[k])})
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = sortedValue(e)
		}
		return out
	default:
		return t
	}
}

type orderedPair struct {
	Key   string
	Value interface{}
}

type orderedMap []orderedPair

// MarshalJSON renders the pairs in their already-sorted order, which
// encoding/json's default map handling would otherwise re-sort only by
// re-sorting map[string]interface{} (which is already what we want, but
// doing it explicitly keeps stableString independent of Go's map codec
// behavior across versions).
func (m orderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, p := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, _ := json.Marshal(p.Key)
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		valJSON, _ := json.Marshal(p.Value)
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}
