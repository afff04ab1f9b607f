package orchestrator

import "github.com/rsp2com/gateway/pkg/canonical"

// Limits bounds the size of a request's conversation before it is sent
// upstream.
type Limits struct {
	MaxTurns      int
	MaxMessages   int
	MaxInputChars int
}

// turn groups one non-system message with whatever function_call /
// function_call_output items immediately follow it, so trimming drops
// whole turns rather than splitting a call from its output.
type turn struct {
	items []canonical.InputItem
}

// Trim enforces Limits on req's input, dropping the oldest non-system
// turns first. All system messages and the final user turn are always
// preserved. Any function_call left without its function_call_output (or
// vice versa) by the trim is dropped too, since a half-pair is invalid
// upstream.
func Trim(req *canonical.Request, limits Limits) *canonical.Request {
	systemItems, turns := splitSystemAndTurns(req.Input)

	for turnCountExceeds(turns, limits.MaxTurns) ||
		messageCountExceeds(systemItems, turns, limits.MaxMessages) ||
		charCountExceeds(req.Instructions, systemItems, turns, limits.MaxInputChars) {
		if len(turns) <= 1 {
			break // always keep the final user turn
		}
		turns = turns[1:]
	}

	items := make([]canonical.InputItem, 0, len(systemItems)+len(turns)*2)
	items = append(items, systemItems...)
	for _, t := range turns {
		items = append(items, t.items...)
	}

	clone := *req
	clone.Input = dropUnpairedToolItems(items)
	return &clone
}

// splitSystemAndTurns separates system/developer messages (always kept)
// from the rest of the conversation, grouped into turns: one user or
// assistant message plus the function_call/function_call_output items
// immediately trailing it.
func splitSystemAndTurns(items []canonical.InputItem) ([]canonical.InputItem, []turn) {
	var systemItems []canonical.InputItem
	var turns []turn

	for _, item := range items {
		if item.Kind == canonical.KindMessage && (item.Role == "system" || item.Role == "developer") {
			systemItems = append(systemItems, item)
			continue
		}
		if item.Kind == canonical.KindMessage {
			turns = append(turns, turn{items: []canonical.InputItem{item}})
			continue
		}
		// function_call / function_call_output: attach to the current turn,
		// or start a bare tool-only turn if there isn't one yet.
		if len(turns) == 0 {
			turns = append(turns, turn{})
		}
		last := &turns[len(turns)-1]
		last.items = append(last.items, item)
	}
	return systemItems, turns
}

func turnCountExceeds(turns []turn, maxTurns int) bool {
	return maxTurns > 0 && len(turns) > maxTurns
}

func messageCountExceeds(systemItems []canonical.InputItem, turns []turn, maxMessages int) bool {
	if maxMessages <= 0 {
		return false
	}
	count := len(systemItems)
	for _, t := range turns {
		count += len(t.items)
	}
	return count > maxMessages
}

func charCountExceeds(instructions string, systemItems []canonical.InputItem, turns []turn, maxChars int) bool {
	if maxChars <= 0 {
		return false
	}
	total := len(instructions)
	for _, item := range systemItems {
		total += itemCharCount(item)
	}
	for _, t := range turns {
		for _, item := range t.items {
			total += itemCharCount(item)
		}
	}
	return total > maxChars
}

func itemCharCount(item canonical.InputItem) int {
	total := len(item.Arguments) + len(item.Output)
	for _, part := range item.Content {
		total += len(part.Text)
	}
	return total
}

// dropUnpairedToolItems removes any function_call without a matching
// function_call_output in the same slice, and vice versa, since trimming
// may have separated them.
func dropUnpairedToolItems(items []canonical.InputItem) []canonical.InputItem {
	calls := make(map[string]bool)
	outputs := make(map[string]bool)
	for _, item := range items {
		switch item.Kind {
		case canonical.KindFunctionCall:
			calls[item.CallID] = true
		case canonical.KindFunctionCallOutput:
			outputs[item.CallID] = true
		}
	}

	out := make([]canonical.InputItem, 0, len(items))
	for _, item := range items {
		switch item.Kind {
		case canonical.KindFunctionCall:
			if outputs[item.CallID] {
				out = append(out, item)
			}
		case canonical.KindFunctionCallOutput:
			if calls[item.CallID] {
				out = append(out, item)
			}
		default:
			out = append(out, item)
		}
	}
	return out
}
