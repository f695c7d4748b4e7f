// Package llmclient assembles the llm.Client used by the CLI from resolved
// settings.
package llmclient

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/danshapiro/courier/internal/llm"
	"github.com/danshapiro/courier/internal/llm/providers/google"
	"github.com/danshapiro/courier/internal/llm/providers/openaicompat"
	"github.com/danshapiro/courier/internal/logging"
	"github.com/danshapiro/courier/internal/providerspec"
	"github.com/danshapiro/courier/internal/settings"
)

// New registers the configured provider's adapter, installs the logging
// middleware, and makes the provider the default.
func New(ctx context.Context, s *settings.Settings, logger *zap.Logger) (*llm.Client, error) {
	if s == nil {
		return nil, &llm.ConfigurationError{Message: "settings are nil"}
	}
	provider := providerspec.CanonicalProviderKey(s.Provider)
	spec, ok := providerspec.Builtin(provider)
	if !ok || spec.API == nil {
		return nil, &llm.ConfigurationError{Message: fmt.Sprintf("unknown provider: %s", s.Provider)}
	}

	apiKey, err := ResolveAPIKey(s.APIKey, spec)
	if err != nil {
		return nil, err
	}
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = spec.API.DefaultBaseURL
	}

	var adapter llm.ProviderAdapter
	switch spec.API.Protocol {
	case providerspec.ProtocolOpenAIChatCompletions:
		adapter = openaicompat.NewAdapter(openaicompat.Config{
			Provider:   provider,
			APIKey:     apiKey,
			BaseURL:    baseURL,
			Path:       spec.API.DefaultPath,
			OptionsKey: spec.API.ProviderOptionsKey,
		})
	case providerspec.ProtocolGoogleGenerateContent:
		a, err := google.New(ctx, provider, apiKey, baseURL)
		if err != nil {
			return nil, err
		}
		adapter = a
	default:
		return nil, &llm.ConfigurationError{Message: fmt.Sprintf("provider %s: unsupported protocol %q", provider, spec.API.Protocol)}
	}

	c := llm.NewClient()
	c.Register(adapter)
	c.SetDefaultProvider(provider)
	c.Use(llm.LoggingMiddleware(logging.OrNop(logger)))
	return c, nil
}

// ResolveAPIKey returns explicit when set, else the value of the provider's
// key environment variable.
func ResolveAPIKey(explicit string, spec providerspec.Spec) (string, error) {
	if k := strings.TrimSpace(explicit); k != "" {
		return k, nil
	}
	if spec.API == nil || spec.API.DefaultAPIKeyEnv == "" {
		return "", &llm.ConfigurationError{Message: fmt.Sprintf("provider %s: no API key configured", spec.Key)}
	}
	if k := strings.TrimSpace(os.Getenv(spec.API.DefaultAPIKeyEnv)); k != "" {
		return k, nil
	}
	return "", &llm.ConfigurationError{Message: fmt.Sprintf("provider %s: set %s or api_key", spec.Key, spec.API.DefaultAPIKeyEnv)}
}

// Sampling derives the per-call oracle configuration from settings.
func Sampling(s *settings.Settings) llm.Sampling {
	return llm.Sampling{
		Provider:    providerspec.CanonicalProviderKey(s.Provider),
		Model:       s.Model,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}
}
