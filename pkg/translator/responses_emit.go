package translator

import (
	"encoding/json"

	"github.com/rsp2com/gateway/pkg/sse"
)

// ResponsesEmitter re-emits Deltas as Responses-API SSE events, for clients
// that posted to the gateway expecting the upstream's own wire shape back
// (the "pass-through" client dialect). Events carry a strictly
// monotonically-increasing sequence_number; even a turn with no text and no
// tool calls still emits one empty message item so downstream parsers
// always see at least one output item.
type ResponsesEmitter struct {
	state    *State
	seq      int
	started  bool
	itemOpen bool
	itemType string
	anyItem  bool
}

// NewResponsesEmitter builds a pass-through emitter bound to state.
func NewResponsesEmitter(state *State) *ResponsesEmitter {
	return &ResponsesEmitter{state: state}
}

// BuildResponsesCompletionResponse assembles the whole-body Responses-API
// object for a client that wants the upstream's own wire shape back,
// mirroring BuildChatCompletionResponse's assembly of a fully-drained
// State into ResponseBody's "pass-through" shape instead of Chat's.
func BuildResponsesCompletionResponse(state *State, terminal Delta, createdUnix int64) ResponseBody {
	status := "completed"
	if terminal.Kind == DeltaFailed {
		status = "failed"
	}

	var output []OutputItem
	if text := state.HarvestedText(); text != "" {
		output = append(output, OutputItem{
			Type:    "message",
			Role:    "assistant",
			Status:  "completed",
			Content: []ContentPart{{Type: "output_text", Text: text}},
		})
	}
	toolCalls := terminal.ToolCalls
	if len(toolCalls) == 0 {
		toolCalls = state.ToolCallsInOrder()
	}
	for _, tc := range toolCalls {
		output = append(output, OutputItem{
			Type:      "function_call",
			CallID:    tc.CallID,
			Name:      tc.Name,
			Arguments: tc.Args,
			Status:    "completed",
		})
	}

	body := ResponseBody{
		ID:     state.ResponseID,
		Object: "response",
		Model:  state.Model,
		Status: status,
		Output: output,
	}
	if terminal.Usage != nil {
		body.Usage = terminal.Usage
	}
	return body
}

func (e *ResponsesEmitter) nextSeq() int {
	e.seq++
	return e.seq
}

func (e *ResponsesEmitter) event(eventType string, payload map[string]interface{}) (string, error) {
	payload["type"] = eventType
	payload["sequence_number"] = e.nextSeq()
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return sse.Encode(eventType, string(body)), nil
}

func (e *ResponsesEmitter) ensureStarted() ([]string, error) {
	if e.started {
		return nil, nil
	}
	e.started = true
	ev, err := e.event("response.created", map[string]interface{}{
		"response": map[string]interface{}{"id": e.state.ResponseID, "model": e.state.Model},
	})
	if err != nil {
		return nil, err
	}
	return []string{ev}, nil
}

func (e *ResponsesEmitter) ensureItemOpen(itemType string) ([]string, error) {
	var frames []string
	if e.itemOpen && e.itemType != itemType {
		closed, err := e.closeItem()
		if err != nil {
			return nil, err
		}
		frames = append(frames, closed...)
	}
	if e.itemOpen {
		return frames, nil
	}
	e.itemOpen = true
	e.itemType = itemType
	e.anyItem = true
	ev, err := e.event("response.output_item.added", map[string]interface{}{
		"item": map[string]interface{}{"type": itemType},
	})
	if err != nil {
		return nil, err
	}
	return append(frames, ev), nil
}

func (e *ResponsesEmitter) closeItem() ([]string, error) {
	if !e.itemOpen {
		return nil, nil
	}
	e.itemOpen = false
	ev, err := e.event("response.output_item.done", map[string]interface{}{
		"item": map[string]interface{}{"type": e.itemType},
	})
	if err != nil {
		return nil, err
	}
	return []string{ev}, nil
}

// Emit converts one Delta into zero or more encoded SSE frames.
func (e *ResponsesEmitter) Emit(d Delta) ([]string, error) {
	var frames []string

	started, err := e.ensureStarted()
	if err != nil {
		return nil, err
	}
	frames = append(frames, started...)

	switch d.Kind {
	case DeltaText:
		if d.Text == "" {
			return frames, nil
		}
		opened, err := e.ensureItemOpen("message")
		if err != nil {
			return nil, err
		}
		frames = append(frames, opened...)
		ev, err := e.event("response.output_text.delta", map[string]interface{}{"delta": d.Text})
		if err != nil {
			return nil, err
		}
		frames = append(frames, ev)

	case DeltaReasoningText:
		if d.Text == "" {
			return frames, nil
		}
		opened, err := e.ensureItemOpen("reasoning")
		if err != nil {
			return nil, err
		}
		frames = append(frames, opened...)
		ev, err := e.event("response.reasoning_text.delta", map[string]interface{}{"delta": d.Text})
		if err != nil {
			return nil, err
		}
		frames = append(frames, ev)

	case DeltaToolCallDelta:
		opened, err := e.ensureItemOpen("function_call")
		if err != nil {
			return nil, err
		}
		frames = append(frames, opened...)
		ev, err := e.event("response.function_call_arguments.delta", map[string]interface{}{
			"item_id": d.CallID,
			"delta":   d.ArgsDelta,
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, ev)

	case DeltaCompleted:
		if e.state.SentFinal() {
			return frames, nil
		}
		e.state.MarkFinalSent()
		if !e.anyItem {
			opened, err := e.ensureItemOpen("message")
			if err != nil {
				return nil, err
			}
			frames = append(frames, opened...)
		}
		closed, err := e.closeItem()
		if err != nil {
			return nil, err
		}
		frames = append(frames, closed...)
		ev, err := e.event("response.completed", map[string]interface{}{
			"response": map[string]interface{}{"id": e.state.ResponseID, "model": e.state.Model},
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, ev, sse.Done())

	case DeltaFailed:
		return nil, d.Err
	}

	return frames, nil
}
