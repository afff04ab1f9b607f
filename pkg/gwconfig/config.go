// Package gwconfig loads the gateway's environment-variable configuration
// table into a plain, read-only Config struct. There is no config/viper-style
// library in play: everything is read directly with os.Getenv at startup,
// and a missing required key is fatal.
package gwconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the gateway's fully-resolved, immutable-once-built
// configuration. Nothing in the request path mutates it: the URL list,
// variant list, and headers map derived from it are all built once and
// shared read-only across requests.
type Config struct {
	OpenAIBaseURL   string
	OpenAIAPIKey    string
	ResponsesPath   string
	ReasoningEffort string

	GeminiBaseURL      string
	GeminiAPIKey       string
	GeminiDefaultModel string

	ClaudeBaseURL      string
	ClaudeAPIKey       string
	ClaudeMessagesPath string
	ClaudeDefaultModel string
	ClaudeMaxTokens    int

	WorkerAuthKeys []string

	DefaultModel  string
	Models        []string
	AdapterModels []string

	MaxTurns            int
	MaxMessages         int
	MaxInputChars       int
	MaxBufferedSSEBytes int

	SessionRedisAddr string

	Debug bool
}

const (
	defaultMaxTurns            = 12
	defaultMaxMessages         = 40
	defaultMaxInputChars       = 300_000
	defaultMaxBufferedSSEBytes = 2 << 20 // 2MiB
)

// Load reads Config from the environment, applying defaults for optional
// values. It returns an error when a required key (OPENAI_BASE_URL,
// OPENAI_API_KEY) is missing; callers at process startup should treat that
// as fatal.
func Load() (*Config, error) {
	cfg := &Config{
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		ResponsesPath:      os.Getenv("RESP_RESPONSES_PATH"),
		ReasoningEffort:    os.Getenv("RESP_REASONING_EFFORT"),
		GeminiBaseURL:      os.Getenv("GEMINI_BASE_URL"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiDefaultModel: os.Getenv("GEMINI_DEFAULT_MODEL"),
		ClaudeBaseURL:      os.Getenv("CLAUDE_BASE_URL"),
		ClaudeAPIKey:       os.Getenv("CLAUDE_API_KEY"),
		ClaudeMessagesPath: os.Getenv("CLAUDE_MESSAGES_PATH"),
		ClaudeDefaultModel: os.Getenv("CLAUDE_DEFAULT_MODEL"),
		DefaultModel:       os.Getenv("DEFAULT_MODEL"),
		SessionRedisAddr:   os.Getenv("SESSION_REDIS_ADDR"),
	}

	if cfg.OpenAIBaseURL == "" {
		return nil, fmt.Errorf("gwconfig: OPENAI_BASE_URL is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("gwconfig: OPENAI_API_KEY is required")
	}

	cfg.ClaudeMaxTokens = intEnv("CLAUDE_MAX_TOKENS", 4096)
	cfg.WorkerAuthKeys = collectAuthKeys()
	cfg.Models = splitCSV(os.Getenv("MODELS"))
	cfg.AdapterModels = splitCSV(os.Getenv("ADAPTER_MODELS"))
	cfg.MaxTurns = intEnv("RSP4COPILOT_MAX_TURNS", defaultMaxTurns)
	cfg.MaxMessages = intEnv("RSP4COPILOT_MAX_MESSAGES", defaultMaxMessages)
	cfg.MaxInputChars = intEnv("RSP4COPILOT_MAX_INPUT_CHARS", defaultMaxInputChars)
	cfg.MaxBufferedSSEBytes = intEnv("RESP_MAX_BUFFERED_SSE_BYTES", defaultMaxBufferedSSEBytes)
	cfg.Debug = parseBoolFlag(os.Getenv("RSP4COPILOT_DEBUG"))

	return cfg, nil
}

// collectAuthKeys merges WORKER_AUTH_KEY and the comma-separated
// WORKER_AUTH_KEYS, stripping an accidental leading "Bearer " and
// surrounding quotes from each.
func collectAuthKeys() []string {
	var keys []string
	if k := os.Getenv("WORKER_AUTH_KEY"); k != "" {
		keys = append(keys, normalizeAuthKey(k))
	}
	for _, k := range splitCSV(os.Getenv("WORKER_AUTH_KEYS")) {
		keys = append(keys, normalizeAuthKey(k))
	}
	return keys
}

func normalizeAuthKey(k string) string {
	k = strings.TrimSpace(k)
	k = strings.TrimPrefix(k, "Bearer ")
	k = strings.Trim(k, `"'`)
	return k
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intEnv(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseBoolFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
