package llm

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config selects and configures the model behind the tutor.
type Config struct {
	// Provider is "anthropic", "openai", "gemini", "openrouter" or "mock".
	Provider string

	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Retry      RetryConfig

	// Timeout bounds one call including retries.
	Timeout time.Duration

	// LogRequests writes every prompt and completion to the event log.
	LogRequests bool
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // for OpenAI-compatible gateways
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string

	// AppTitle and SiteURL are sent as OpenRouter's X-Title and
	// HTTP-Referer attribution headers.
	AppTitle string
	SiteURL  string
}

// RetryConfig configures backoff for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// backend describes how one hosted provider is configured from the
// environment. backends is also the discovery order.
type backend struct {
	name      string
	vendorEnv string
	key       func(*Config) *string
	model     func(*Config) *string
}

var backends = []backend{
	{"gemini", "GEMINI_API_KEY",
		func(c *Config) *string { return &c.Gemini.APIKey },
		func(c *Config) *string { return &c.Gemini.Model }},
	{"openai", "OPENAI_API_KEY",
		func(c *Config) *string { return &c.OpenAI.APIKey },
		func(c *Config) *string { return &c.OpenAI.Model }},
	{"anthropic", "ANTHROPIC_API_KEY",
		func(c *Config) *string { return &c.Anthropic.APIKey },
		func(c *Config) *string { return &c.Anthropic.Model }},
	{"openrouter", "OPENROUTER_API_KEY",
		func(c *Config) *string { return &c.OpenRouter.APIKey },
		func(c *Config) *string { return &c.OpenRouter.Model }},
}

func (b backend) keyEnv() string { return "BOARDPREP_" + strings.ToUpper(b.name) + "_API_KEY" }

// DefaultConfig uses small, fast models: most calls are yes/no judgments
// and short tutoring turns.
func DefaultConfig() Config {
	return Config{
		Provider:  "anthropic",
		Anthropic: AnthropicConfig{Model: "claude-haiku"},
		OpenAI:    OpenAIConfig{Model: "gpt-4o-mini"},
		Gemini:    GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{
			Model:    "google/gemini-2.5-flash",
			BaseURL:  defaultOpenRouterBaseURL,
			AppTitle: "boardprep",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Timeout:     30 * time.Second,
		LogRequests: true,
	}
}

// ConfigFromEnv reads BOARDPREP_* variables on top of DefaultConfig.
//
// Each backend takes BOARDPREP_<NAME>_API_KEY and BOARDPREP_<NAME>_MODEL,
// falling back to the vendor's own key variable (GEMINI_API_KEY and so on).
// Without BOARDPREP_LLM_PROVIDER the first backend with a key wins, in the
// order gemini, openai, anthropic, openrouter. Unparseable numbers and
// durations keep their defaults.
func ConfigFromEnv() Config {
	v := viper.New()
	v.SetEnvPrefix("BOARDPREP")
	v.AutomaticEnv()
	return configFrom(v.GetString, os.Getenv)
}

// configFrom builds a Config from two lookups: env reads a BOARDPREP_
// suffix, vendor reads an unprefixed variable.
func configFrom(env, vendor func(string) string) Config {
	cfg := DefaultConfig()

	for _, b := range backends {
		key := env(b.name + "_api_key")
		if key == "" {
			key = vendor(b.vendorEnv)
		}
		*b.key(&cfg) = key
		if m := env(b.name + "_model"); m != "" {
			*b.model(&cfg) = m
		}
	}
	if u := env("openai_base_url"); u != "" {
		cfg.OpenAI.BaseURL = u
	}
	if u := env("openrouter_base_url"); u != "" {
		cfg.OpenRouter.BaseURL = u
	}
	if t := env("openrouter_app_title"); t != "" {
		cfg.OpenRouter.AppTitle = t
	}
	cfg.OpenRouter.SiteURL = env("openrouter_site_url")

	if p := env("llm_provider"); p != "" {
		cfg.Provider = p
	} else {
		for _, b := range backends {
			if *b.key(&cfg) != "" {
				cfg.Provider = b.name
				break
			}
		}
	}

	if b, err := strconv.ParseBool(env("llm_log")); err == nil {
		cfg.LogRequests = b
	}
	if d, err := time.ParseDuration(env("llm_timeout")); err == nil && d > 0 {
		cfg.Timeout = d
	}
	if n, err := strconv.Atoi(env("llm_max_attempts")); err == nil && n > 0 {
		cfg.Retry.MaxAttempts = n
	}
	return cfg
}

// Validate checks that the selected provider has an API key.
func (c Config) Validate() error {
	if c.Provider == "mock" {
		return nil
	}
	for _, b := range backends {
		if b.name != c.Provider {
			continue
		}
		if *b.key(&c) == "" {
			return fmt.Errorf("%s (or %s) is required for the %s provider", b.keyEnv(), b.vendorEnv, b.name)
		}
		return nil
	}
	return fmt.Errorf("unknown LLM provider: %q", c.Provider)
}
