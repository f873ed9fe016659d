// Package settings loads the tablebot configuration from config files, the
// environment (TABLEBOT_ prefix) and command line flags.
package settings

import (
	"strings"
	"time"

	"github.com/go-go-golems/tablebot/pkg/inference/engine"
	"github.com/go-go-golems/tablebot/pkg/inference/toolloop"
	"github.com/go-go-golems/tablebot/pkg/inference/tools"
	"github.com/go-go-golems/tablebot/pkg/logging"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "tablebot"

const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type ServerSettings struct {
	Port int `mapstructure:"port"`
}

type LoopSettings struct {
	toolloop.LoopConfig `mapstructure:",squash"`
	MaxParallelTools    int           `mapstructure:"max-parallel-tools"`
	ToolTimeout         time.Duration `mapstructure:"tool-timeout"`
	TurnTimeout         time.Duration `mapstructure:"turn-timeout"`
}

type StoreSettings struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	SeedFile string `mapstructure:"seed-file"`
}

type HistorySettings struct {
	// WarnTokens logs a warning once a session's history grows past it. 0 disables.
	WarnTokens int `mapstructure:"warn-tokens"`
}

type EventSettings struct {
	Verbose bool `mapstructure:"verbose"`
}

type LogSettings struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	WithCaller bool   `mapstructure:"with-caller"`
}

type Settings struct {
	Server  ServerSettings  `mapstructure:"server"`
	Engine  engine.Settings `mapstructure:"engine"`
	Loop    LoopSettings    `mapstructure:"loop"`
	Store   StoreSettings   `mapstructure:"store"`
	History HistorySettings `mapstructure:"history"`
	Events  EventSettings   `mapstructure:"events"`
	Log     LogSettings     `mapstructure:"log"`
}

// SetDefaults registers every key with its default value. Keys need a default for
// viper to pick them up from the environment.
func SetDefaults(v *viper.Viper) {
	eng := engine.DefaultSettings()
	loop := toolloop.DefaultLoopConfig()
	tc := tools.DefaultToolConfig()

	v.SetDefault("server.port", 5000)

	v.SetDefault("engine.provider", eng.Provider)
	v.SetDefault("engine.model", eng.Model)
	v.SetDefault("engine.api-key", "")
	v.SetDefault("engine.base-url", "")
	v.SetDefault("engine.allow-local-base-url", false)
	v.SetDefault("engine.temperature", eng.Temperature)
	v.SetDefault("engine.max-tokens", eng.MaxTokens)
	v.SetDefault("engine.timeout", eng.Timeout)
	v.SetDefault("engine.script", "")

	v.SetDefault("loop.max-iterations", loop.MaxIterations)
	v.SetDefault("loop.empty-response", string(loop.EmptyResponse))
	v.SetDefault("loop.empty-text", loop.EmptyText)
	v.SetDefault("loop.budget-text", loop.BudgetText)
	v.SetDefault("loop.unavailable-text", loop.UnavailableText)
	v.SetDefault("loop.timeout-text", loop.TimeoutText)
	v.SetDefault("loop.max-parallel-tools", tc.MaxParallelTools)
	v.SetDefault("loop.tool-timeout", tc.ExecutionTimeout)
	v.SetDefault("loop.turn-timeout", 60*time.Second)

	v.SetDefault("store.driver", StoreSQLite)
	v.SetDefault("store.dsn", "tablebot.db")
	v.SetDefault("store.seed-file", "")

	v.SetDefault("history.warn-tokens", 6000)
	v.SetDefault("events.verbose", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
	v.SetDefault("log.file", "")
	v.SetDefault("log.with-caller", false)
}

// ConfigureEnv makes TABLEBOT_ENGINE_API_KEY override engine.api-key and so on.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	s.Engine.Provider = strings.ToLower(strings.TrimSpace(s.Engine.Provider))
	s.Store.Driver = strings.ToLower(strings.TrimSpace(s.Store.Driver))
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks everything except engine credentials, which only the commands
// that talk to a model need.
func (s *Settings) Validate() error {
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return errors.Errorf("invalid server port %d", s.Server.Port)
	}
	if err := s.Loop.LoopConfig.Validate(); err != nil {
		return err
	}
	if s.Loop.MaxParallelTools < 0 {
		return errors.New("loop.max-parallel-tools must not be negative")
	}
	switch s.Store.Driver {
	case StoreSQLite:
		if s.Store.DSN == "" {
			return errors.New("store.dsn is required for the sqlite store")
		}
	case StoreMemory:
	default:
		return errors.Errorf("unknown store driver %q", s.Store.Driver)
	}
	return nil
}

func (s *Settings) ToolConfig() tools.ToolConfig {
	return tools.DefaultToolConfig().
		WithMaxParallelTools(s.Loop.MaxParallelTools).
		WithExecutionTimeout(s.Loop.ToolTimeout)
}

func (s *Settings) LogConfig() *logging.Config {
	return &logging.Config{
		Level:      s.Log.Level,
		LogFormat:  s.Log.Format,
		LogFile:    s.Log.File,
		WithCaller: s.Log.WithCaller,
	}
}
