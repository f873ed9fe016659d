// Package app wires settings into a running assistant: store, capabilities, engine,
// turn loop and sessions.
package app

import (
	"context"
	"io"

	"github.com/go-go-golems/tablebot/pkg/events"
	"github.com/go-go-golems/tablebot/pkg/inference/engine"
	"github.com/go-go-golems/tablebot/pkg/inference/engine/factory"
	"github.com/go-go-golems/tablebot/pkg/inference/session"
	"github.com/go-go-golems/tablebot/pkg/inference/toolloop"
	"github.com/go-go-golems/tablebot/pkg/inference/tools"
	"github.com/go-go-golems/tablebot/pkg/restaurants"
	"github.com/go-go-golems/tablebot/pkg/restaurants/sqlite"
	"github.com/go-go-golems/tablebot/pkg/restaurants/toolbox"
	"github.com/go-go-golems/tablebot/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type App struct {
	Settings *settings.Settings
	Store    restaurants.Store
	Toolbox  *toolbox.Toolbox
	Registry *tools.Registry
	Loop     *toolloop.Loop
	Window   *session.TokenWindow
	Sessions *session.Manager

	closers []io.Closer
}

type options struct {
	engine engine.Engine
	sinks  []events.EventSink
}

type Option func(*options)

// WithEngine bypasses the engine factory.
func WithEngine(eng engine.Engine) Option {
	return func(o *options) { o.engine = eng }
}

// WithEventSinks attaches sinks to every session.
func WithEventSinks(sinks ...events.EventSink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sinks...) }
}

// OpenStore opens the configured store and imports the seed file, if any.
func OpenStore(ctx context.Context, s settings.StoreSettings) (restaurants.Store, io.Closer, error) {
	var seed []restaurants.Restaurant
	if s.SeedFile != "" {
		var err error
		seed, err = restaurants.LoadSeed(s.SeedFile)
		if err != nil {
			return nil, nil, err
		}
	}

	switch s.Driver {
	case settings.StoreMemory:
		log.Info().Int("restaurants", len(seed)).Msg("using in-memory restaurant store")
		return restaurants.NewMemoryStore(seed...), nil, nil
	case settings.StoreSQLite:
		store, err := sqlite.Open(s.DSN)
		if err != nil {
			return nil, nil, err
		}
		if len(seed) > 0 {
			if _, err := store.Import(ctx, seed); err != nil {
				_ = store.Close()
				return nil, nil, err
			}
		}
		log.Info().Str("dsn", s.DSN).Int("seeded", len(seed)).Msg("using sqlite restaurant store")
		return store, store, nil
	}
	return nil, nil, errors.Errorf("unknown store driver %q", s.Driver)
}

func New(ctx context.Context, s *settings.Settings, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Settings: s}
	store, closer, err := OpenStore(ctx, s.Store)
	if err != nil {
		return nil, err
	}
	a.Store = store
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	a.Toolbox = toolbox.New(store)
	a.Registry = tools.NewRegistry()
	if err := a.Toolbox.Register(a.Registry); err != nil {
		_ = a.Close()
		return nil, err
	}

	eng := o.engine
	if eng == nil {
		eng, err = factory.NewFromSettings(ctx, s.Engine)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	prompt, err := toolbox.SystemPrompt(toolbox.DefaultPromptData())
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Loop = toolloop.New(
		toolloop.WithEngine(eng),
		toolloop.WithRegistry(a.Registry),
		toolloop.WithLoopConfig(s.Loop.LoopConfig),
		toolloop.WithToolConfig(s.ToolConfig()),
		toolloop.WithSystemPrompt(prompt),
	)

	a.Window, err = session.NewTokenWindow(s.History.WarnTokens)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	sinks := o.sinks
	a.Sessions = session.NewManager(func(id string) *session.Session {
		return session.NewSession(id, a.Loop,
			session.WithTurnTimeout(s.Loop.TurnTimeout),
			session.WithHistoryWindow(a.Window),
			session.WithEventSinks(sinks...),
		)
	})

	log.Debug().
		Str("provider", s.Engine.Provider).
		Str("model", s.Engine.Model).
		Int("capabilities", a.Registry.Count()).
		Msg("assistant ready")
	return a, nil
}

func (a *App) Close() error {
	var ret error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && ret == nil {
			ret = err
		}
	}
	a.closers = nil
	return ret
}
