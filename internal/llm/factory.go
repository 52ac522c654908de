package llm

import (
	"context"
	"fmt"

	"github.com/abhisek/boardprep/internal/logger"
	"github.com/abhisek/boardprep/internal/store"
)

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with tracing, retry and (when
// cfg.LogRequests is set) logging middleware.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, log *logger.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// caller → tracing → timeout → retry → logging → base
	p := base
	if cfg.LogRequests && eventRepo != nil {
		p = WithLogging(p, eventRepo, log)
	}
	p = WithRetry(p, cfg.Retry)
	p = WithTimeout(p, cfg.Timeout)
	return WithTracing(p), nil
}

// NewProviderFromEnv builds a provider from ConfigFromEnv.
func NewProviderFromEnv(ctx context.Context, eventRepo store.EventRepo, log *logger.Logger) (Provider, error) {
	cfg := ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewProvider(ctx, cfg, eventRepo, log)
}
