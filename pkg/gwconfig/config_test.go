package gwconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_BASE_URL", "OPENAI_API_KEY", "RESP_RESPONSES_PATH", "RESP_REASONING_EFFORT",
		"GEMINI_BASE_URL", "GEMINI_API_KEY", "GEMINI_DEFAULT_MODEL",
		"CLAUDE_BASE_URL", "CLAUDE_API_KEY", "CLAUDE_MESSAGES_PATH", "CLAUDE_DEFAULT_MODEL", "CLAUDE_MAX_TOKENS",
		"WORKER_AUTH_KEY", "WORKER_AUTH_KEYS",
		"DEFAULT_MODEL", "MODELS", "ADAPTER_MODELS",
		"RSP4COPILOT_MAX_TURNS", "RSP4COPILOT_MAX_MESSAGES", "RSP4COPILOT_MAX_INPUT_CHARS",
		"RESP_MAX_BUFFERED_SSE_BYTES", "RSP4COPILOT_DEBUG", "SESSION_REDIS_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingRequiredFieldsError(t *testing.T) {
	clearGatewayEnv(t)
	_, err := Load()
	require.Error(t, err)

	t.Setenv("OPENAI_BASE_URL", "https://api.openai.com")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_DefaultsApplied(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("OPENAI_BASE_URL", "https://api.openai.com")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.ClaudeMaxTokens)
	assert.Equal(t, defaultMaxTurns, cfg.MaxTurns)
	assert.Equal(t, defaultMaxMessages, cfg.MaxMessages)
	assert.Equal(t, defaultMaxInputChars, cfg.MaxInputChars)
	assert.Equal(t, defaultMaxBufferedSSEBytes, cfg.MaxBufferedSSEBytes)
	assert.False(t, cfg.Debug)
	assert.Empty(t, cfg.WorkerAuthKeys)
}

func TestLoad_WorkerAuthKeysMergedAndNormalized(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("OPENAI_BASE_URL", "https://api.openai.com")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("WORKER_AUTH_KEY", `"Bearer key-one"`)
	t.Setenv("WORKER_AUTH_KEYS", "key-two, key-three")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"key-one", "key-two", "key-three"}, cfg.WorkerAuthKeys)
}

func TestLoad_CSVListsTrimWhitespaceAndSkipEmpty(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("OPENAI_BASE_URL", "https://api.openai.com")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MODELS", "gpt-4o, , gemini-2.0-flash")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "gemini-2.0-flash"}, cfg.Models)
}

func TestLoad_DebugFlagHonored(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("OPENAI_BASE_URL", "https://api.openai.com")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RSP4COPILOT_DEBUG", "YES")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
}

func TestLoad_InvalidIntEnvFallsBackToDefault(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("OPENAI_BASE_URL", "https://api.openai.com")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RSP4COPILOT_MAX_TURNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, defaultMaxTurns, cfg.MaxTurns)
}
