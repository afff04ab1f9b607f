package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/rsp2com/gateway/pkg/canonical"
)

// sessionKeyTextLimit bounds the fallback model+first-user-text key.
const sessionKeyTextLimit = 512

// DeriveSessionKey computes the opaque token identifying a conversational
// thread: the client-supplied x-session-id header wins when present;
// failing that, the request's "user" field; failing that, the model plus
// the first user message's text, truncated to sessionKeyTextLimit runes.
// When authKey is non-empty the chosen base is namespaced by it, so two
// callers sharing an otherwise-identical prompt never collide; an empty
// authKey is acceptable and simply shares a bucket across callers that
// didn't authenticate distinctly.
func DeriveSessionKey(sessionIDHeader, authKey string, req *canonical.Request) string {
	base := sessionKeyBase(sessionIDHeader, req)
	if authKey != "" {
		base = authKey + "\x00" + base
	}
	sum := sha256.Sum256([]byte(base))
	return hex.EncodeToString(sum[:])
}

func sessionKeyBase(sessionIDHeader string, req *canonical.Request) string {
	if sessionIDHeader != "" {
		return sessionIDHeader
	}
	if req.User != "" {
		return req.User
	}
	text := firstUserText(req)
	if r := []rune(text); len(r) > sessionKeyTextLimit {
		text = string(r[:sessionKeyTextLimit])
	}
	return req.Model + "\n" + text
}

func firstUserText(req *canonical.Request) string {
	for _, item := range req.Input {
		if item.Kind != canonical.KindMessage || item.Role != "user" {
			continue
		}
		for _, p := range item.Content {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}
