// Package orchestrator glues the dialect converters, variant generator,
// upstream selector, stream translator, and session store into one
// per-request lifecycle: derive a session key, patch in cached thought
// signatures, decide whether a delta or full request is safe, sweep the
// configured upstreams, and persist session state once the stream
// completes.
package orchestrator

import (
	"context"

	"github.com/rsp2com/gateway/pkg/canonical"
	"github.com/rsp2com/gateway/pkg/gwlog"
	"github.com/rsp2com/gateway/pkg/session"
	"github.com/rsp2com/gateway/pkg/translator"
	"github.com/rsp2com/gateway/pkg/upstream"
	"github.com/rsp2com/gateway/pkg/urlbuilder"
	"github.com/rsp2com/gateway/pkg/variant"
)

// Orchestrator runs the request lifecycle against a configured upstream.
type Orchestrator struct {
	Selector *upstream.Selector
	Sessions *session.Manager
	Limits   Limits

	// BaseURLs is the comma-separated configured base (or full endpoint)
	// list, Provider/ConfiguredPath select the urlbuilder inference rules,
	// and Headers carries the per-upstream auth header(s) for every sweep.
	BaseURLs       string
	Provider       urlbuilder.Provider
	ConfiguredPath string
	Headers        map[string]string
}

// Prepared is everything Run produces before the upstream sweep, kept
// around so the caller (the HTTP layer, which owns dialect-specific SSE
// writing) can finalize the session store once the stream completes.
type Prepared struct {
	SessionKey string
	Request    *canonical.Request
	Accepted   *upstream.Accepted
}

// Run executes steps 1-4 of the request lifecycle: derive the session
// key, apply cached thought signatures (with the drop policy), decide
// delta vs full, generate variants, build candidate URLs, and sweep the
// upstream. On an upstream failure plausibly caused by a stale
// previous_response_id, it retries once with a full (non-delta) request.
func (o *Orchestrator) Run(ctx context.Context, sessionIDHeader, authKey string, req *canonical.Request, marshal func(map[string]interface{}) ([]byte, error)) (*Prepared, error) {
	sessionKey := DeriveSessionKey(sessionIDHeader, authKey, req)

	cache := o.Sessions.ThoughtSignatures(ctx, sessionKey)
	patched := ApplyCachedThoughtSignatures(req, cache)

	previousResponseID, _ := o.Sessions.PreviousResponseID(ctx, sessionKey)

	finalReq := o.buildDeltaOrFull(patched, previousResponseID)
	accepted, err := o.sweep(ctx, finalReq, marshal)
	if err != nil && previousResponseID != "" {
		gwlog.Infof("orchestrator: retrying %s as a full request after upstream error: %v", sessionKey, err)
		fullReq := Trim(patched, o.Limits)
		fullReq.PreviousResponseID = ""
		accepted, err = o.sweep(ctx, fullReq, marshal)
		finalReq = fullReq
	}
	if err != nil {
		return nil, err
	}

	return &Prepared{SessionKey: sessionKey, Request: finalReq, Accepted: accepted}, nil
}

func (o *Orchestrator) sweep(ctx context.Context, req *canonical.Request, marshal func(map[string]interface{}) ([]byte, error)) (*upstream.Accepted, error) {
	urls, err := urlbuilder.BuildAll(o.BaseURLs, o.Provider, o.ConfiguredPath)
	if err != nil {
		return nil, err
	}
	variants := variant.Generate(req)
	return o.Selector.Sweep(ctx, urls, variants, o.Headers, marshal)
}

// Finalize persists the new previous_response_id and any freshly observed
// thought signatures once a stream has fully drained. Best-effort: any
// store failure is already swallowed inside pkg/session.
func (o *Orchestrator) Finalize(ctx context.Context, sessionKey string, state *translator.State) {
	if state.ResponseID != "" {
		o.Sessions.SetPreviousResponseID(ctx, sessionKey, state.ResponseID)
	}
	if updates := ExtractThoughtSignatureUpdates(state.ToolSignatures()); len(updates) > 0 {
		o.Sessions.MergeThoughtSignatures(ctx, sessionKey, updates)
	}
}

// buildDeltaOrFull implements step 3: a delta request (carrying
// previous_response_id and only the items after the last assistant turn)
// is safe when there is a previous response to anchor to, at least one
// assistant message has already occurred, and the whole conversation is
// still within the configured trim limits. Otherwise a full, trimmed
// request is built instead.
func (o *Orchestrator) buildDeltaOrFull(req *canonical.Request, previousResponseID string) *canonical.Request {
	if previousResponseID == "" {
		return Trim(req, o.Limits)
	}

	lastAssistant := lastAssistantMessageIndex(req.Input)
	if lastAssistant < 0 {
		return Trim(req, o.Limits)
	}

	if exceedsLimits(req, o.Limits) {
		return Trim(req, o.Limits)
	}

	clone := *req
	clone.Input = append([]canonical.InputItem(nil), req.Input[lastAssistant+1:]...)
	clone.PreviousResponseID = previousResponseID
	clone.Instructions = ""
	return &clone
}

func lastAssistantMessageIndex(items []canonical.InputItem) int {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Kind == canonical.KindMessage && items[i].Role == "assistant" {
			return i
		}
	}
	return -1
}

func exceedsLimits(req *canonical.Request, limits Limits) bool {
	_, turns := splitSystemAndTurns(req.Input)
	if turnCountExceeds(turns, limits.MaxTurns) {
		return true
	}
	systemItems, _ := splitSystemAndTurns(req.Input)
	if messageCountExceeds(systemItems, turns, limits.MaxMessages) {
		return true
	}
	return charCountExceeds(req.Instructions, systemItems, turns, limits.MaxInputChars)
}
