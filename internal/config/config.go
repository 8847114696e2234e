package config

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultProvider      = "anthropic"
	DefaultMaxTokens     = 2048
	DefaultStyle         = "standard"
	DefaultMaxInputChars = 100_000
	DefaultHistoryPath   = "tldr.sqlite"
	DefaultRetentionDays = 90
	DefaultFetchTimeout  = 10 * time.Second
	DefaultCLITimeout    = 120 * time.Second
	DefaultSlackPages    = 2
	DefaultNotionDepth   = 2
	DefaultOllamaBaseURL = "http://localhost:11434"
)

var defaultModels = map[string]string{
	"anthropic": "claude-sonnet-4-5",
	"openai":    "gpt-5-mini",
	"xai":       "grok-4",
	"gemini":    "gemini-2.5-flash",
	"ollama":    "llama3.2",
}

// Backend holds per-backend credentials. Empty fields fall back to defaults
// when the provider record is resolved.
type Backend struct {
	APIKey  string `env:"API_KEY"  yaml:"api_key,omitempty"`
	BaseURL string `env:"BASE_URL" yaml:"base_url,omitempty"`
	Model   string `env:"MODEL"    yaml:"model,omitempty"`
}

type Telegram struct {
	Token        string  `env:"TELEGRAM_TOKEN" yaml:"token,omitempty"`
	AllowedUsers []int64 `env:"ALLOWED_USERS"  yaml:"allowed_users,omitempty"`
}

// Config is populated from the optional YAML profile first and then from the
// environment, so environment variables always win.
type Config struct {
	Provider      string `env:"TLDR_PROVIDER"        yaml:"provider,omitempty"`
	Model         string `env:"TLDR_MODEL"           yaml:"model,omitempty"`
	MaxTokens     int    `env:"TLDR_MAX_TOKENS"      yaml:"max_tokens,omitempty"`
	Style         string `env:"TLDR_STYLE"           yaml:"style,omitempty"`
	Language      string `env:"TLDR_LANGUAGE"        yaml:"language,omitempty"`
	MaxInputChars int    `env:"TLDR_MAX_INPUT_CHARS" yaml:"max_input_chars,omitempty"`

	HistoryPath          string `env:"TLDR_HISTORY_PATH"           yaml:"history_path,omitempty"`
	HistoryRetentionDays int    `env:"TLDR_HISTORY_RETENTION_DAYS" yaml:"history_retention_days,omitempty"`

	FetchTimeout time.Duration `env:"TLDR_FETCH_TIMEOUT" yaml:"fetch_timeout,omitempty"`
	CLITimeout   time.Duration `env:"TLDR_CLI_TIMEOUT"   yaml:"cli_timeout,omitempty"`
	LogLevel     string        `env:"TLDR_LOG_LEVEL"     yaml:"log_level,omitempty"`

	SlackToken     string `env:"SLACK_TOKEN"            yaml:"slack_token,omitempty"`
	SlackMaxPages  int    `env:"TLDR_SLACK_MAX_PAGES"   yaml:"slack_max_pages,omitempty"`
	NotionToken    string `env:"NOTION_TOKEN"           yaml:"notion_token,omitempty"`
	NotionMaxDepth int    `env:"TLDR_NOTION_MAX_DEPTH"  yaml:"notion_max_depth,omitempty"`

	Anthropic Backend `envPrefix:"ANTHROPIC_" yaml:"anthropic,omitempty"`
	OpenAI    Backend `envPrefix:"OPENAI_"    yaml:"openai,omitempty"`
	Gemini    Backend `envPrefix:"GEMINI_"    yaml:"gemini,omitempty"`
	XAI       Backend `envPrefix:"XAI_"       yaml:"xai,omitempty"`
	Ollama    Backend `envPrefix:"OLLAMA_"    yaml:"ollama,omitempty"`

	Telegram Telegram `yaml:"telegram,omitempty"`
}

// Provider is the resolved record a backend is built from.
type Provider struct {
	Name      string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Load reads the profile named by TLDR_CONFIG (if any) and overlays the
// environment on top of it.
func Load() (Config, error) {
	return LoadFile(os.Getenv("TLDR_CONFIG"))
}

// LoadFile is Load with an explicit profile path. An empty path skips the
// file; a missing file is an error only when the path was given.
func LoadFile(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}

		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()

	return cfg, nil
}

// MustLoad panics on error, like the bot entry point expects.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) applyDefaults() {
	c.Provider = strings.ToLower(cmp.Or(c.Provider, DefaultProvider))
	c.MaxTokens = cmp.Or(c.MaxTokens, DefaultMaxTokens)
	c.Style = cmp.Or(c.Style, DefaultStyle)
	c.MaxInputChars = cmp.Or(c.MaxInputChars, DefaultMaxInputChars)
	c.HistoryPath = cmp.Or(c.HistoryPath, DefaultHistoryPath)
	c.HistoryRetentionDays = cmp.Or(c.HistoryRetentionDays, DefaultRetentionDays)
	c.FetchTimeout = cmp.Or(c.FetchTimeout, DefaultFetchTimeout)
	c.CLITimeout = cmp.Or(c.CLITimeout, DefaultCLITimeout)
	c.LogLevel = cmp.Or(c.LogLevel, "info")
	c.SlackMaxPages = cmp.Or(c.SlackMaxPages, DefaultSlackPages)
	c.NotionMaxDepth = cmp.Or(c.NotionMaxDepth, DefaultNotionDepth)
	c.Ollama.BaseURL = cmp.Or(c.Ollama.BaseURL, DefaultOllamaBaseURL)
}

// ResolveProvider builds the record for the configured provider. TLDR_MODEL
// beats the per-backend model, which beats the built-in default.
func (c Config) ResolveProvider() (Provider, error) {
	return c.ResolveProviderNamed(c.Provider)
}

func (c Config) ResolveProviderNamed(name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	p := Provider{
		Name:      name,
		MaxTokens: c.MaxTokens,
		Timeout:   c.CLITimeout,
	}

	var backend Backend
	switch name {
	case "anthropic":
		backend = c.Anthropic
	case "openai":
		backend = c.OpenAI
	case "gemini":
		backend = c.Gemini
	case "xai":
		backend = c.XAI
	case "ollama":
		backend = c.Ollama
	case "claude-code", "codex":
	case "":
		return Provider{}, errors.New("provider is not set")
	default:
		return Provider{}, fmt.Errorf("unknown provider %q", name)
	}

	p.APIKey = backend.APIKey
	p.BaseURL = backend.BaseURL
	p.Model = cmp.Or(c.Model, backend.Model, defaultModels[name])

	return p, nil
}
