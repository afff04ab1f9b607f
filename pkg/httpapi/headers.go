package httpapi

// UpstreamHeaders builds the header set attached to every upstream POST:
// content-type is always application/json (the selector itself also sets
// it, so this is belt-and-suspenders for callers building headers ahead of
// the sweep); the upstream key is presented under all three schemes an
// upstream might expect (bearer, x-api-key, x-goog-api-key) since the
// selector has no per-provider branch of its own; accept reflects whether
// this call is streaming; openai-beta is set only for Responses calls.
func UpstreamHeaders(upstreamKey string, streaming, responsesBeta bool) map[string]string {
	h := map[string]string{
		"content-type":   "application/json",
		"authorization":  "Bearer " + upstreamKey,
		"x-api-key":      upstreamKey,
		"x-goog-api-key": upstreamKey,
	}
	if streaming {
		h["accept"] = "text/event-stream"
	} else {
		h["accept"] = "application/json"
	}
	if responsesBeta {
		h["openai-beta"] = "responses=v1"
	}
	return h
}

// ForwardSessionID copies the client's x-session-id header, if present,
// into the upstream header set (used for callers that want upstream-side
// correlation; the gateway's own session key derivation never depends on
// this forwarded copy reaching back).
func ForwardSessionID(headers map[string]string, clientSessionID string) {
	if clientSessionID != "" {
		headers["x-session-id"] = clientSessionID
	}
}
