package engine

import (
	"time"

	"github.com/go-go-golems/tablebot/pkg/security"
	"github.com/pkg/errors"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	// ProviderMock replays a scripted fixture instead of calling a model.
	ProviderMock = "mock"
)

type Settings struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	APIKey   string `mapstructure:"api-key" yaml:"api-key"`
	BaseURL  string `mapstructure:"base-url" yaml:"base-url"`
	// AllowLocalBaseURL lets BaseURL point at plain HTTP or local network servers.
	AllowLocalBaseURL bool          `mapstructure:"allow-local-base-url" yaml:"allow-local-base-url"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max-tokens" yaml:"max-tokens"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// Script is the fixture file replayed by the mock provider.
	Script string `mapstructure:"script" yaml:"script"`
}

func DefaultSettings() Settings {
	return Settings{
		Provider:    ProviderOpenAI,
		Model:       "gpt-4o-mini",
		Temperature: 0,
		Timeout:     30 * time.Second,
	}
}

func (s Settings) Validate() error {
	switch s.Provider {
	case ProviderOpenAI, ProviderGemini:
		if s.Model == "" {
			return errors.Errorf("engine %s: no model configured", s.Provider)
		}
		if s.APIKey == "" && s.BaseURL == "" {
			return errors.Errorf("engine %s: no api key configured", s.Provider)
		}
		if s.BaseURL != "" {
			policy := security.EndpointPolicy{AllowHTTP: s.AllowLocalBaseURL, AllowLocal: s.AllowLocalBaseURL}
			if err := security.ValidateEndpoint(s.BaseURL, policy); err != nil {
				return errors.Wrapf(err, "engine %s: base url", s.Provider)
			}
		}
	case ProviderMock:
	default:
		return errors.Errorf("unknown engine provider %q", s.Provider)
	}
	return nil
}
