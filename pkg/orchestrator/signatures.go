package orchestrator

import (
	"github.com/rsp2com/gateway/pkg/canonical"
	"github.com/rsp2com/gateway/pkg/idgen"
	"github.com/rsp2com/gateway/pkg/session"
	"github.com/rsp2com/gateway/pkg/translator"
)

// ApplyCachedThoughtSignatures fills in cached thought_signature/thought
// values for function_call items that lack them, and applies the drop
// policy for function_call items that remain unsignable: when the
// request carries previous_response_id and a matching function_call_output
// is present, the unsatisfied function_call item is dropped entirely
// (upstream otherwise rejects the turn); it is never dropped when
// previous_response_id is absent, since that would orphan the
// function_call_output. It does not mutate req; it returns a new Request
// with an updated Input slice.
func ApplyCachedThoughtSignatures(req *canonical.Request, cache map[string]session.ThoughtSignature) *canonical.Request {
	if len(req.Input) == 0 {
		return req
	}

	outputCallIDs := make(map[string]bool)
	for _, item := range req.Input {
		if item.Kind == canonical.KindFunctionCallOutput {
			outputCallIDs[idgen.NormalizeCallID(item.CallID)] = true
		}
	}

	anchored := req.PreviousResponseID != ""

	out := make([]canonical.InputItem, 0, len(req.Input))
	for _, item := range req.Input {
		if item.Kind != canonical.KindFunctionCall {
			out = append(out, item)
			continue
		}

		if item.ThoughtSignature == "" {
			if sig, ok := cache[idgen.NormalizeCallID(item.CallID)]; ok {
				item.ThoughtSignature = sig.ThoughtSignature
				item.Thought = sig.Thought
			}
		}

		if item.ThoughtSignature == "" && anchored && outputCallIDs[idgen.NormalizeCallID(item.CallID)] {
			continue // dropped: unsignable function_call with a matching output, anchored turn
		}
		out = append(out, item)
	}

	clone := *req
	clone.Input = out
	return &clone
}

// ExtractThoughtSignatureUpdates converts the tool-signature entries
// observed on a completed stream into the call_id → ThoughtSignature
// update map the session manager merges in.
func ExtractThoughtSignatureUpdates(entries []translator.ToolSignature) map[string]session.ThoughtSignature {
	updates := make(map[string]session.ThoughtSignature, len(entries))
	for _, e := range entries {
		updates[e.CallID] = session.ThoughtSignature{
			ThoughtSignature: e.ThoughtSignature,
			Thought:          e.Thought,
			Name:             e.Name,
		}
	}
	return updates
}
