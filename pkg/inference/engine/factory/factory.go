package factory

import (
	"context"
	"strings"

	"github.com/go-go-golems/tablebot/pkg/inference/engine"
	"github.com/go-go-golems/tablebot/pkg/inference/engine/gemini"
	"github.com/go-go-golems/tablebot/pkg/inference/engine/openai"
	"github.com/go-go-golems/tablebot/pkg/inference/engine/scripted"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SupportedProviders lists the values accepted for engine.provider.
func SupportedProviders() []string {
	return []string{engine.ProviderOpenAI, engine.ProviderGemini, engine.ProviderMock}
}

// NewFromSettings creates the engine selected by s.Provider.
func NewFromSettings(ctx context.Context, s engine.Settings) (engine.Engine, error) {
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	if s.Provider == "" {
		s.Provider = engine.ProviderOpenAI
	}
	if err := s.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid engine settings")
	}

	log.Debug().Str("provider", s.Provider).Str("model", s.Model).Msg("creating engine")

	switch s.Provider {
	case engine.ProviderOpenAI:
		return openai.NewEngine(s)
	case engine.ProviderGemini:
		return gemini.NewEngine(ctx, s)
	case engine.ProviderMock:
		if s.Script == "" {
			return nil, errors.New("mock engine needs engine.script")
		}
		script, err := scripted.LoadScript(s.Script)
		if err != nil {
			return nil, err
		}
		return scripted.NewEngine(script), nil
	}
	return nil, errors.Errorf("unsupported provider %s", s.Provider)
}
