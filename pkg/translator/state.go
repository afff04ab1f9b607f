package translator

import "strings"

// DeltaKind classifies one normalized step of the translated stream. Each
// dialect emitter switches on Kind to decide what SSE chunk(s), if any, to
// produce; State.Apply is the single place that understands the upstream
// Responses-API event shapes, extended with the reasoning and tool-call
// full/delta upsert reconciliation the gateway needs.
type DeltaKind int

const (
	DeltaNone DeltaKind = iota
	DeltaRoleOnly
	DeltaText
	DeltaReasoningText
	DeltaToolCallDelta
	DeltaCompleted
	DeltaFailed
)

// ToolCallRecord tracks one function call across
// response.output_item.added/function_call_arguments.delta/done events,
// keyed by the upstream item id (call_id when no item id is given), since
// argument deltas carry only item_id; CallID is replaced by the real
// call_id once known, and the Chat-dialect tool_calls index stays stable
// across the whole stream.
type ToolCallRecord struct {
	CallID      string
	Name        string
	Args        string
	OutputIndex int
}

// Delta is the normalized unit State.Apply hands to a dialect emitter.
type Delta struct {
	Kind         DeltaKind
	Text         string // for DeltaText/DeltaReasoningText: the suffix to emit
	CallID       string
	ToolName     string // the call's name on output_item.added/done events; empty on argument events
	ArgsDelta    string // fragment to emit, already deduped against what's been sent
	ToolIndex    int
	FinishReason string // raw upstream reason; map via dialect.MapResponsesFinishReason
	Usage        *Usage
	ToolCalls    []*ToolCallRecord // harvested set, only populated on DeltaCompleted when no deltas were seen
	Err          error
}

// State accumulates everything that spans multiple events in an upstream
// Responses-API SSE stream: response/chat ids, per-call tool-call
// records in first-seen order, and the reasoning/text "so far" strings used
// for prefix-delta reconciliation.
type State struct {
	ResponseID string
	ChatID     string
	Model      string
	CreatedAt  int64

	sentRole        bool
	sentFinal       bool
	hasToolCalls    bool
	sawTextDelta    bool
	sawReasoningDelta bool

	textSoFar      string
	reasoningSoFar string

	toolOrder []string
	toolByID  map[string]*ToolCallRecord
	nextIndex int

	lastOutput []OutputItem
	lastUsage  *Usage
}

// NewState returns an empty accumulator ready to consume the first event
// of a stream.
func NewState() *State {
	return &State{toolByID: make(map[string]*ToolCallRecord)}
}

// SentRole reports whether the role-only priming chunk has already gone
// out, so a Chat emitter knows whether the next text/tool/reasoning delta
// also needs to carry `role: assistant`.
func (s *State) SentRole() bool { return s.sentRole }

// MarkRoleSent flips SentRole after an emitter has produced the priming
// chunk (or has folded the role onto the first real delta).
func (s *State) MarkRoleSent() { s.sentRole = true }

// SentFinal and MarkFinalSent guard against emitting the terminal frame
// twice (e.g. both response.completed and a synthesized end-of-stream
// fallback firing).
func (s *State) SentFinal() bool { return s.sentFinal }
func (s *State) MarkFinalSent()  { s.sentFinal = true }

// HasToolCalls reports whether any function call was observed, which
// overrides the terminal finish_reason regardless of the upstream's
// reported one.
func (s *State) HasToolCalls() bool { return s.hasToolCalls }

// ToolCallsInOrder returns every tracked tool call in first-seen order.
func (s *State) ToolCallsInOrder() []*ToolCallRecord {
	out := make([]*ToolCallRecord, 0, len(s.toolOrder))
	for _, id := range s.toolOrder {
		out = append(out, s.toolByID[id])
	}
	return out
}

// upsertDelta accumulates a function_call_arguments.delta fragment. key is
// the event's item_id — the only correlating field delta events carry —
// and is reused as the record's provisional call_id until a full-mode
// upsert (which knows the real call_id) supplies one.
func (s *State) upsertDelta(key, argsDelta string) *ToolCallRecord {
	tc := s.recordFor(key)
	tc.Args += argsDelta
	return tc
}

// upsertFull reconciles a "done"-style event carrying the authoritative
// name/arguments against whatever deltas have already accumulated under
// key. When the accumulated value is a prefix of the authoritative one
// (the normal case — deltas covered a leading portion) the authoritative
// value is simply accepted; a divergent accumulated value is discarded in
// favor of the authoritative one too, since the done/item event is ground
// truth either way. callID, once known, replaces the provisional key used
// for Chat-dialect tool_call ids.
func (s *State) upsertFull(key, callID, name, args string) *ToolCallRecord {
	tc := s.recordFor(key)
	if callID != "" {
		tc.CallID = callID
	}
	if name != "" {
		tc.Name = name
	}
	if args != "" {
		// Whether tc.Args (accumulated via deltas) is a prefix of args or
		// not, args is the authoritative value and wins.
		tc.Args = args
	}
	return tc
}

func (s *State) recordFor(key string) *ToolCallRecord {
	tc, ok := s.toolByID[key]
	if !ok {
		tc = &ToolCallRecord{CallID: key, OutputIndex: s.nextIndex}
		s.nextIndex++
		s.toolByID[key] = tc
		s.toolOrder = append(s.toolOrder, key)
	}
	return tc
}

// reconcileReasoning implements the prefix/suffix reconciliation for
// upstreams that send cumulative reasoning strings instead of true deltas:
// a chunk starting with what's already been seen contributes only its
// suffix; a chunk that is itself a prefix of what's already been seen is a
// client-side restart and contributes nothing; anything else is treated as
// an additive delta.
func (s *State) reconcileReasoning(chunk string) string {
	switch {
	case strings.HasPrefix(chunk, s.reasoningSoFar):
		suffix := chunk[len(s.reasoningSoFar):]
		s.reasoningSoFar = chunk
		return suffix
	case strings.HasPrefix(s.reasoningSoFar, chunk):
		return ""
	default:
		s.reasoningSoFar += chunk
		return chunk
	}
}

// Apply advances State by one upstream event and returns the Delta an
// emitter should act on. Events that carry no client-visible change return
// DeltaNone.
func (s *State) Apply(event *ResponseEvent) Delta {
	switch event.Type {
	case "response.created", "response.in_progress":
		if event.Response != nil {
			if event.Response.ID != "" {
				s.ResponseID = event.Response.ID
				s.ChatID = "chatcmpl_" + event.Response.ID
			}
			if event.Response.Model != "" {
				s.Model = event.Response.Model
			}
		}
		return Delta{Kind: DeltaNone}

	case "response.output_item.added", "response.output_item.done":
		if event.Item != nil && event.Item.Type == "function_call" {
			if event.Type == "response.output_item.done" {
				s.hasToolCalls = true
			}
			tc := s.upsertFull(event.Item.ID, event.Item.CallID, event.Item.Name, event.Item.Arguments)
			return Delta{Kind: DeltaToolCallDelta, CallID: tc.CallID, ToolName: tc.Name, ToolIndex: tc.OutputIndex}
		}
		return Delta{Kind: DeltaNone}

	case "response.output_text.delta", "response.refusal.delta":
		s.sawTextDelta = true
		s.textSoFar += event.Delta
		return Delta{Kind: DeltaText, Text: event.Delta}

	case "response.output_text.done", "response.refusal.done":
		if s.sawTextDelta {
			return Delta{Kind: DeltaNone}
		}
		s.textSoFar = event.Text
		return Delta{Kind: DeltaText, Text: event.Text}

	case "response.reasoning.delta", "response.reasoning_summary.delta", "response.reasoning_summary_text.delta":
		s.sawReasoningDelta = true
		suffix := s.reconcileReasoning(event.Delta)
		if suffix == "" {
			return Delta{Kind: DeltaNone}
		}
		return Delta{Kind: DeltaReasoningText, Text: suffix}

	case "response.function_call_arguments.delta":
		tc := s.upsertDelta(event.ItemID, event.Delta)
		return Delta{Kind: DeltaToolCallDelta, CallID: tc.CallID, ArgsDelta: event.Delta, ToolIndex: tc.OutputIndex}

	case "response.function_call_arguments.done", "response.function_call.done":
		key := event.ItemID
		if key == "" {
			key = event.CallID
		}
		tc := s.upsertFull(key, event.CallID, "", event.Arguments)
		return Delta{Kind: DeltaToolCallDelta, CallID: tc.CallID, ToolIndex: tc.OutputIndex}

	case "response.completed", "response.incomplete":
		reason := ""
		var usage *Usage
		if event.Response != nil {
			if event.Response.IncompleteDetails != nil {
				reason = event.Response.IncompleteDetails.Reason
			}
			usage = event.Response.Usage
			if usage != nil {
				s.lastUsage = usage
			}
			if event.Response.ID != "" {
				s.ResponseID = event.Response.ID
			}
			s.lastOutput = event.Response.Output
		}
		d := Delta{Kind: DeltaCompleted, FinishReason: reason, Usage: usage}
		if !s.sawTextDelta && !s.hasToolCalls {
			d.ToolCalls = s.harvestFromOutput()
		}
		return d

	case "response.failed", "error":
		var err error
		if event.Error != nil {
			err = &StreamError{Code: event.Error.Code, Message: event.Error.Message}
		}
		return Delta{Kind: DeltaFailed, FinishReason: "error", Err: err}

	default:
		return Delta{Kind: DeltaNone}
	}
}

// harvestFromOutput reconstructs text/tool calls from a buffered response's
// output array, used when response.completed arrives without any prior
// delta (non-streaming-shaped upstream, or a stream that only ever sent
// the final snapshot).
func (s *State) harvestFromOutput() []*ToolCallRecord {
	for _, item := range s.lastOutput {
		if item.Type == "message" {
			for _, part := range item.Content {
				s.textSoFar += part.Text
			}
		}
		if item.Type == "function_call" {
			key := item.ID
			if key == "" {
				key = item.CallID
			}
			s.upsertFull(key, item.CallID, item.Name, item.Arguments)
			s.hasToolCalls = true
		}
	}
	return s.ToolCallsInOrder()
}

// HarvestedText returns the text accumulated either from deltas or from
// the final harvest, for emitters that need the whole string rather than
// incremental suffixes (e.g. the Gemini and Responses pass-through
// variants' done/final events).
func (s *State) HarvestedText() string { return s.textSoFar }

// ToolSignature is one function_call item's echoed thought signature,
// collected from the final response.completed output array.
type ToolSignature struct {
	CallID           string
	Name             string
	ThoughtSignature string
	Thought          string
}

// ToolSignatures returns a signature entry for every function_call item in
// the most recently completed upstream output array that carries a
// non-empty thought_signature, for callers persisting them to the session
// store.
func (s *State) ToolSignatures() []ToolSignature {
	var out []ToolSignature
	for _, item := range s.lastOutput {
		if item.Type == "function_call" && item.ThoughtSignature != "" {
			out = append(out, ToolSignature{
				CallID:           item.CallID,
				Name:             item.Name,
				ThoughtSignature: item.ThoughtSignature,
				Thought:          item.Thought,
			})
		}
	}
	return out
}

// StreamError is a translated upstream error surfaced mid-stream, after the
// client has already received a 200 and the SSE headers.
type StreamError struct {
	Code    string
	Message string
}

func (e *StreamError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}
