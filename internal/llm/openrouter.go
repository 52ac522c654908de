package llm

import (
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider talks to OpenRouter's OpenAI-compatible API. Model IDs
// are OpenRouter's vendor-prefixed names, e.g. "anthropic/claude-haiku-4.5",
// and are sent unchanged.
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider creates a provider that attributes its requests to
// cfg.AppTitle and cfg.SiteURL.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openrouter model is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	if config.BaseURL == "" {
		config.BaseURL = defaultOpenRouterBaseURL
	}
	config.HTTPClient = attributingDoer{
		inner:   config.HTTPClient,
		title:   cfg.AppTitle,
		referer: cfg.SiteURL,
	}

	return &OpenRouterProvider{OpenAIProvider: newOpenAIProviderWithConfig(config, cfg.Model)}, nil
}

// attributingDoer adds OpenRouter's app attribution headers.
type attributingDoer struct {
	inner   openai.HTTPDoer
	title   string
	referer string
}

func (d attributingDoer) Do(req *http.Request) (*http.Response, error) {
	if d.title != "" {
		req.Header.Set("X-Title", d.title)
	}
	if d.referer != "" {
		req.Header.Set("HTTP-Referer", d.referer)
	}
	return d.inner.Do(req)
}
