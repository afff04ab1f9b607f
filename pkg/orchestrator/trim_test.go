package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsp2com/gateway/pkg/canonical"
)

func systemMsg(text string) canonical.InputItem {
	return canonical.NewMessage("system", []canonical.ContentPart{{Type: canonical.ContentInputText, Text: text}})
}

func TestTrim_KeepsEverythingWithinLimits(t *testing.T) {
	req := &canonical.Request{Input: []canonical.InputItem{
		systemMsg("you are helpful"),
		userMsg("hi"),
		assistantMsg("hello"),
		userMsg("again"),
	}}

	out := Trim(req, Limits{MaxTurns: 12, MaxMessages: 40, MaxInputChars: 300_000})
	assert.Len(t, out.Input, 4)
}

func TestTrim_DropsOldestNonSystemTurnsFirst(t *testing.T) {
	req := &canonical.Request{Input: []canonical.InputItem{
		systemMsg("sys"),
		userMsg("turn 1"),
		assistantMsg("reply 1"),
		userMsg("turn 2"),
		assistantMsg("reply 2"),
		userMsg("turn 3"),
	}}

	out := Trim(req, Limits{MaxTurns: 2, MaxMessages: 40, MaxInputChars: 300_000})

	// system message always preserved, and the final user turn is the last item.
	require.NotEmpty(t, out.Input)
	assert.Equal(t, "system", out.Input[0].Role)
	last := out.Input[len(out.Input)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "turn 3", last.Content[0].Text)

	// turn 1 should be gone.
	for _, item := range out.Input {
		if item.Kind == canonical.KindMessage {
			assert.NotEqual(t, "turn 1", textOf(item))
		}
	}
}

func textOf(item canonical.InputItem) string {
	if len(item.Content) == 0 {
		return ""
	}
	return item.Content[0].Text
}

func TestTrim_AlwaysPreservesFinalUserTurnEvenWhenOverLimit(t *testing.T) {
	req := &canonical.Request{Input: []canonical.InputItem{
		userMsg("only turn, way over the char budget"),
	}}

	out := Trim(req, Limits{MaxTurns: 12, MaxMessages: 40, MaxInputChars: 1})
	require.Len(t, out.Input, 1)
}

func TestTrim_DropsUnpairedToolCallAfterTrimmingItsTurnAway(t *testing.T) {
	req := &canonical.Request{Input: []canonical.InputItem{
		userMsg("turn 1"),
		canonical.NewFunctionCall("item_1", "call_1", "search", `{}`),
		assistantMsg("reply 1"),
		userMsg("turn 2"),
		canonical.NewFunctionCallOutput("call_1", "result"),
	}}

	out := Trim(req, Limits{MaxTurns: 1, MaxMessages: 40, MaxInputChars: 300_000})

	for _, item := range out.Input {
		assert.NotEqual(t, canonical.KindFunctionCallOutput, item.Kind, "orphaned output must be dropped")
		assert.NotEqual(t, canonical.KindFunctionCall, item.Kind, "orphaned call must be dropped")
	}
}
