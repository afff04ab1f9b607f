// Package idgen allocates the fixed-prefix synthetic ids the gateway
// emits on output, and normalizes call ids accepted on input.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

const (
	PrefixResponse     = "resp_"
	PrefixMessage      = "msg_"
	PrefixReasoning    = "rs_"
	PrefixFunctionCall = "fc_"
	PrefixCall         = "call_"
	PrefixChatCompl    = "chatcmpl_"
	PrefixTextCompl    = "cmpl_"
	PrefixAnthropicTool = "toolu_"
)

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func Response() string     { return newID(PrefixResponse) }
func Message() string      { return newID(PrefixMessage) }
func Reasoning() string    { return newID(PrefixReasoning) }
func FunctionCall() string { return newID(PrefixFunctionCall) }
func Call() string         { return newID(PrefixCall) }
func ChatCompletion() string { return newID(PrefixChatCompl) }
func TextCompletion() string { return newID(PrefixTextCompl) }
func AnthropicTool() string  { return newID(PrefixAnthropicTool) }

// ChatCompletionIDFromResponse derives a deterministic chatcmpl_ id from an
// upstream response id so repeated translations of the same response agree.
func ChatCompletionIDFromResponse(responseID string) string {
	return PrefixChatCompl + responseID
}

// NormalizeCallID strips a leading literal "fc_" so clients that echo
// output-item ids as call ids still match.
func NormalizeCallID(callID string) string {
	return strings.TrimPrefix(callID, PrefixFunctionCall)
}
