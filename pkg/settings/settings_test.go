package settings

import (
	"bytes"
	"testing"
	"time"

	"github.com/go-go-golems/tablebot/pkg/inference/toolloop"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	ConfigureEnv(v)
	return v
}

func TestDefaults(t *testing.T) {
	s, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, 5000, s.Server.Port)
	assert.Equal(t, "openai", s.Engine.Provider)
	assert.Equal(t, 30*time.Second, s.Engine.Timeout)
	assert.Equal(t, 8, s.Loop.MaxIterations)
	assert.Equal(t, toolloop.EmptyResponseContinue, s.Loop.EmptyResponse)
	assert.Equal(t, toolloop.DefaultBudgetText, s.Loop.BudgetText)
	assert.Equal(t, 4, s.Loop.MaxParallelTools)
	assert.Equal(t, 15*time.Second, s.Loop.ToolTimeout)
	assert.Equal(t, 60*time.Second, s.Loop.TurnTimeout)
	assert.Equal(t, StoreSQLite, s.Store.Driver)
	assert.Equal(t, "info", s.Log.Level)

	tc := s.ToolConfig()
	assert.Equal(t, 4, tc.MaxParallelTools)
	assert.True(t, tc.ValidateArguments)
	assert.Equal(t, "info", s.LogConfig().Level)
}

func TestConfigFile(t *testing.T) {
	v := newViper()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(`
server:
  port: 8080
engine:
  provider: Gemini
  model: gemini-2.5-flash
  api-key: secret
loop:
  max-iterations: 3
  empty-response: fail
  turn-timeout: 5s
store:
  driver: memory
`)))

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 8080, s.Server.Port)
	assert.Equal(t, "gemini", s.Engine.Provider)
	assert.Equal(t, "secret", s.Engine.APIKey)
	assert.Equal(t, 3, s.Loop.MaxIterations)
	assert.Equal(t, toolloop.EmptyResponseFail, s.Loop.EmptyResponse)
	assert.Equal(t, 5*time.Second, s.Loop.TurnTimeout)
	assert.Equal(t, StoreMemory, s.Store.Driver)
	assert.NoError(t, s.Engine.Validate())
}

func TestEnvironment(t *testing.T) {
	t.Setenv("TABLEBOT_ENGINE_API_KEY", "from-env")
	t.Setenv("TABLEBOT_LOOP_MAX_ITERATIONS", "2")
	t.Setenv("TABLEBOT_SERVER_PORT", "9000")

	s, err := Load(newViper())
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.Engine.APIKey)
	assert.Equal(t, 2, s.Loop.MaxIterations)
	assert.Equal(t, 9000, s.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{"port", "server.port", 0},
		{"policy", "loop.empty-response", "ignore"},
		{"driver", "store.driver", "postgres"},
		{"dsn", "store.dsn", ""},
		{"parallel", "loop.max-parallel-tools", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}
