package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tldr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadFileEnvOverridesProfile(t *testing.T) {
	path := writeProfile(t, `
provider: openai
max_tokens: 512
style: brief
fetch_timeout: 3s
openai:
  api_key: from-file
  model: gpt-file
telegram:
  allowed_users: [1, 2]
`)

	t.Setenv("TLDR_PROVIDER", "gemini")
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("TLDR_MODEL", "")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, 512, cfg.MaxTokens)
	assert.Equal(t, "brief", cfg.Style)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "from-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-file", cfg.OpenAI.Model)
	assert.Equal(t, []int64{1, 2}, cfg.Telegram.AllowedUsers)
}

func TestLoadFileDefaults(t *testing.T) {
	t.Setenv("TLDR_PROVIDER", "")
	t.Setenv("TLDR_HISTORY_PATH", "")
	t.Setenv("OLLAMA_BASE_URL", "")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, DefaultProvider, cfg.Provider)
	assert.Equal(t, DefaultMaxTokens, cfg.MaxTokens)
	assert.Equal(t, DefaultHistoryPath, cfg.HistoryPath)
	assert.Equal(t, DefaultFetchTimeout, cfg.FetchTimeout)
	assert.Equal(t, DefaultCLITimeout, cfg.CLITimeout)
	assert.Equal(t, DefaultSlackPages, cfg.SlackMaxPages)
	assert.Equal(t, DefaultNotionDepth, cfg.NotionMaxDepth)
	assert.Equal(t, DefaultOllamaBaseURL, cfg.Ollama.BaseURL)
}

func TestLoadFileMissingProfile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadFileBadProfile(t *testing.T) {
	_, err := LoadFile(writeProfile(t, "provider: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestResolveProvider(t *testing.T) {
	cfg := Config{
		Provider:   "XAI",
		MaxTokens:  100,
		CLITimeout: time.Minute,
		XAI:        Backend{APIKey: "xai-key", BaseURL: "https://proxy.example/v1"},
	}

	p, err := cfg.ResolveProvider()
	require.NoError(t, err)

	assert.Equal(t, Provider{
		Name:      "xai",
		APIKey:    "xai-key",
		BaseURL:   "https://proxy.example/v1",
		Model:     "grok-4",
		MaxTokens: 100,
		Timeout:   time.Minute,
	}, p)
}

func TestResolveProviderModelPrecedence(t *testing.T) {
	cfg := Config{Anthropic: Backend{Model: "backend-model"}}

	p, err := cfg.ResolveProviderNamed("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "backend-model", p.Model)

	cfg.Model = "global-model"
	p, err = cfg.ResolveProviderNamed("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "global-model", p.Model)
}

func TestResolveProviderCLIBackends(t *testing.T) {
	for _, name := range []string{"claude-code", "codex"} {
		p, err := Config{}.ResolveProviderNamed(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name)
		assert.Empty(t, p.APIKey)
		assert.Empty(t, p.Model)
	}
}

func TestResolveProviderUnknown(t *testing.T) {
	_, err := Config{}.ResolveProviderNamed("mystery")
	require.Error(t, err)

	_, err = Config{}.ResolveProviderNamed(" ")
	require.Error(t, err)
}
