package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ProviderNames lists the supported providers
var ProviderNames = []string{"anthropic", "ollama", "openai"}

// NewProvider creates a new LLM provider based on configuration.
// An empty provider name means LLM features are disabled: (nil, nil).
func NewProvider(config Config, logger *zap.Logger) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	// Typed nil pointers must not escape as non-nil interfaces
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "openai":
		var p *OpenAIProvider
		if p, err = NewOpenAIProvider(config, logger); err == nil {
			provider = p
		}

	case "anthropic", "claude":
		var p *AnthropicProvider
		if p, err = NewAnthropicProvider(config, logger); err == nil {
			provider = p
		}

	case "ollama":
		var p *OllamaProvider
		if p, err = NewOllamaProvider(config, logger); err == nil {
			provider = p
		}

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: %s)", config.Provider, strings.Join(ProviderNames, ", "))
	}

	if err != nil {
		return nil, err
	}
	return provider, nil
}
