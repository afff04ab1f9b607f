package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rsp2com/gateway/pkg/canonical"
)

func userMsg(text string) canonical.InputItem {
	return canonical.NewMessage("user", []canonical.ContentPart{{Type: canonical.ContentInputText, Text: text}})
}

func assistantMsg(text string) canonical.InputItem {
	return canonical.NewMessage("assistant", []canonical.ContentPart{{Type: canonical.ContentOutputText, Text: text}})
}

func TestDeriveSessionKey_PrefersSessionIDHeaderOverEverythingElse(t *testing.T) {
	req := &canonical.Request{Model: "gpt-5", User: "user-1", Input: []canonical.InputItem{userMsg("hi")}}
	other := &canonical.Request{Model: "gpt-6", User: "user-2", Input: []canonical.InputItem{userMsg("bye")}}

	assert.Equal(t, DeriveSessionKey("sess-abc", "key-a", req), DeriveSessionKey("sess-abc", "key-a", other))
}

func TestDeriveSessionKey_FallsBackToUserFieldWhenNoHeader(t *testing.T) {
	req := &canonical.Request{Model: "gpt-5", User: "user-1", Input: []canonical.InputItem{userMsg("hi")}}
	other := &canonical.Request{Model: "gpt-6", User: "user-1", Input: []canonical.InputItem{userMsg("bye")}}

	assert.Equal(t, DeriveSessionKey("", "key-a", req), DeriveSessionKey("", "key-a", other))
}

func TestDeriveSessionKey_FallsBackToModelAndFirstUserText(t *testing.T) {
	req1 := &canonical.Request{Model: "gpt-5", Input: []canonical.InputItem{userMsg("hi")}}
	req2 := &canonical.Request{Model: "gpt-5", Input: []canonical.InputItem{userMsg("hi"), assistantMsg("hello"), userMsg("again")}}

	assert.Equal(t, DeriveSessionKey("", "key-a", req1), DeriveSessionKey("", "key-a", req2))
}

func TestDeriveSessionKey_ChangesWhenFirstUserTextDiffers(t *testing.T) {
	req1 := &canonical.Request{Model: "gpt-5", Input: []canonical.InputItem{userMsg("hi")}}
	req2 := &canonical.Request{Model: "gpt-5", Input: []canonical.InputItem{userMsg("something else entirely")}}

	assert.NotEqual(t, DeriveSessionKey("", "key-a", req1), DeriveSessionKey("", "key-a", req2))
}

func TestDeriveSessionKey_DifferentAuthKeysDontCollide(t *testing.T) {
	req := &canonical.Request{Model: "gpt-5", Input: []canonical.InputItem{userMsg("hi")}}
	assert.NotEqual(t, DeriveSessionKey("", "key-a", req), DeriveSessionKey("", "key-b", req))
}

func TestDeriveSessionKey_EmptyAuthKeyStillProducesAKey(t *testing.T) {
	req := &canonical.Request{Model: "gpt-5", Input: []canonical.InputItem{userMsg("hi")}}
	assert.NotEmpty(t, DeriveSessionKey("", "", req))
}
