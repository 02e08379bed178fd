package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/ziadkadry99/auto-migrate/internal/config"
)

const defaultOllamaHost = "http://localhost:11434"

// NewProvider creates the LLM provider for providerType. API keys come from
// the environment variable named by config.APIKeyEnvVar.
func NewProvider(ctx context.Context, providerType config.ProviderType, model string) (Provider, error) {
	if providerType == config.ProviderOllama {
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = defaultOllamaHost
		}
		return NewOllamaProvider(host, model), nil
	}

	envVar := config.APIKeyEnvVar(providerType)
	if envVar == "" {
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable is not set", envVar)
	}

	switch providerType {
	case config.ProviderAnthropic:
		return NewAnthropicProvider(apiKey, model), nil
	case config.ProviderOpenAI:
		return NewOpenAIProvider(apiKey, model), nil
	case config.ProviderMiniMax:
		return NewMinimaxProvider(apiKey, model), nil
	case config.ProviderOpenRouter:
		return NewOpenRouterProvider(apiKey, model), nil
	case config.ProviderGoogle:
		return NewGoogleProvider(ctx, apiKey, model)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// FromConfig builds the configured provider wrapped in the rate limiter.
func FromConfig(ctx context.Context, cfg *config.Config) (Provider, error) {
	p, err := NewProvider(ctx, cfg.Provider, cfg.Model)
	if err != nil {
		return nil, err
	}
	return NewRateLimitedProvider(p, cfg.RateLimitRPM), nil
}
