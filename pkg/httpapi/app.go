package httpapi

import (
	"net/http"
	"strings"

	"github.com/rsp2com/gateway/pkg/gwconfig"
	"github.com/rsp2com/gateway/pkg/gwlog"
	"github.com/rsp2com/gateway/pkg/orchestrator"
	"github.com/rsp2com/gateway/pkg/session"
	"github.com/rsp2com/gateway/pkg/upstream"
	"github.com/rsp2com/gateway/pkg/urlbuilder"
)

// Build assembles the ChatDeps and Authenticator shared by every
// cmd/gateway* entrypoint, so the chi/gin/fiber/echo mains differ only in
// how they mount the resulting http.Handler, not in how they wire it.
func Build(cfg *gwconfig.Config) (*ChatDeps, *Authenticator) {
	store := buildSessionStore(cfg)
	sessions := session.NewManager(store)
	httpClient := &http.Client{Timeout: 0}

	orch := &orchestrator.Orchestrator{
		Selector:       &upstream.Selector{HTTPClient: httpClient},
		Sessions:       sessions,
		Limits:         orchestrator.Limits{MaxTurns: cfg.MaxTurns, MaxMessages: cfg.MaxMessages, MaxInputChars: cfg.MaxInputChars},
		BaseURLs:       cfg.OpenAIBaseURL,
		Provider:       urlbuilder.ProviderOpenAIResponses,
		ConfiguredPath: cfg.ResponsesPath,
		Headers:        UpstreamHeaders(cfg.OpenAIAPIKey, false, true),
	}

	deps := &ChatDeps{
		Config:       cfg,
		Orchestrator: orch,
		GeminiSel:    &upstream.Selector{HTTPClient: httpClient},
		AnthropicSel: &upstream.Selector{HTTPClient: httpClient},
		Sessions:     sessions,
	}
	return deps, NewAuthenticator(cfg.WorkerAuthKeys)
}

func buildSessionStore(cfg *gwconfig.Config) session.Store {
	if cfg.SessionRedisAddr == "" {
		return session.NewMemoryStore()
	}
	addrs := strings.Split(cfg.SessionRedisAddr, ",")
	for i := range addrs {
		addrs[i] = strings.TrimSpace(addrs[i])
	}
	store, err := session.NewRedisStore(session.RedisOptions{Addrs: addrs})
	if err != nil {
		gwlog.Errorf("gateway: redis session store unavailable, falling back to in-memory: %v", err)
		return session.NewMemoryStore()
	}
	return store
}
