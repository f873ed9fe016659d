package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/tablebot/pkg/events"
	"github.com/go-go-golems/tablebot/pkg/inference/engine/scripted"
	"github.com/go-go-golems/tablebot/pkg/restaurants/toolbox"
	"github.com/go-go-golems/tablebot/pkg/settings"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings(t *testing.T, driver string) *settings.Settings {
	t.Helper()
	v := viper.New()
	settings.SetDefaults(v)
	v.Set("store.driver", driver)
	v.Set("store.dsn", filepath.Join(t.TempDir(), "test.db"))
	v.Set("store.seed-file", "../restaurants/testdata/restaurants.yaml")
	s, err := settings.Load(v)
	require.NoError(t, err)
	return s
}

func TestNew_EndToEnd(t *testing.T) {
	for _, driver := range []string{settings.StoreMemory, settings.StoreSQLite} {
		t.Run(driver, func(t *testing.T) {
			eng := scripted.NewEngineFromSteps(
				scripted.Step{Calls: []scripted.Call{{ID: "c1", Name: toolbox.GetAllCuisineTypes}}},
				scripted.Step{Text: "We have Italian, Japanese and Lebanese food.", Calls: []scripted.Call{{Name: toolbox.FinishedUsingTools}}},
			)
			sink := events.NewCollectingSink()

			a, err := New(context.Background(), testSettings(t, driver), WithEngine(eng), WithEventSinks(sink))
			require.NoError(t, err)
			defer func() { assert.NoError(t, a.Close()) }()

			assert.Equal(t, 4, a.Registry.Count())

			reply, err := a.Sessions.GetOrCreate("").Send(context.Background(), "what cuisines do you have?")
			require.NoError(t, err)
			assert.Equal(t, "We have Italian, Japanese and Lebanese food.", reply.Text)

			reqs := eng.Requests()
			require.Len(t, reqs, 2)
			last := reqs[1].Messages[len(reqs[1].Messages)-1]
			assert.Equal(t, `["Italian","Japanese","Lebanese"]`, last.Text)
			assert.Contains(t, reqs[0].Messages[0].Text, toolbox.TrailerMarker)

			assert.NotEmpty(t, sink.OfType(events.EventTypeFinal))
		})
	}
}

func TestNew_EngineFromSettings(t *testing.T) {
	s := testSettings(t, settings.StoreMemory)
	s.Engine.Provider = "mock"
	s.Engine.Script = "../inference/engine/scripted/testdata/cuisines.yaml"

	a, err := New(context.Background(), s)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	s.Engine.Provider = "openai"
	s.Engine.APIKey = ""
	_, err = New(context.Background(), s)
	assert.Error(t, err)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, _, err := OpenStore(context.Background(), settings.StoreSettings{Driver: "postgres"})
	assert.Error(t, err)
}
