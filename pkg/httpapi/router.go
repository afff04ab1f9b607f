package httpapi

import (
	"net/http"
)

// NewMux builds the gateway's full route table as a plain http.Handler, so
// every cmd/gateway* entrypoint (chi, gin, fiber, echo) can mount the exact
// same logic behind whatever framework-specific middleware stack it wants,
// by wrapping this handler rather than re-implementing routing. Every route
// sits behind auth.Middleware: the spec makes no exception for /health.
func NewMux(deps *ChatDeps, auth *Authenticator) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", HandleHealth)
	mux.HandleFunc("/v1/health", HandleHealth)
	mux.Handle("/v1/models", HandleModels(deps.Config))
	mux.Handle("/models", HandleModels(deps.Config))
	mux.HandleFunc("/v1/chat/completions", deps.ChatHandler)
	mux.HandleFunc("/chat/completions", deps.ChatHandler)
	mux.HandleFunc("/v1/completions", deps.CompletionsHandler)
	mux.HandleFunc("/completions", deps.CompletionsHandler)
	mux.HandleFunc("/v1/messages/count_tokens", deps.CountTokensHandler)
	mux.HandleFunc("/messages/count_tokens", deps.CountTokensHandler)

	notFound := http.HandlerFunc(WriteNotFound)
	mux.Handle("/", notFound)

	return auth.Middleware(mux)
}
