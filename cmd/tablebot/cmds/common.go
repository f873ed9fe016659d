package cmds

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/tablebot/pkg/settings"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagBinding maps a command line flag onto a settings key.
type flagBinding struct {
	key   string
	name  string
	usage string
	kind  string
}

var (
	engineFlags = []flagBinding{
		{"engine.provider", "engine", "model provider (openai, gemini, mock)", "string"},
		{"engine.model", "model", "model name", "string"},
		{"engine.base-url", "base-url", "base URL of an OpenAI compatible endpoint", "string"},
		{"engine.allow-local-base-url", "allow-local-base-url", "allow plain http and local network base URLs", "bool"},
		{"engine.script", "script", "fixture replayed by the mock provider", "string"},
		{"loop.max-iterations", "max-iterations", "maximum model calls per turn", "int"},
		{"loop.empty-response", "empty-response", "what to do with empty model responses (continue, fail)", "string"},
	}
	storeFlags = []flagBinding{
		{"store.driver", "store", "restaurant store (sqlite, memory)", "string"},
		{"store.dsn", "dsn", "sqlite database", "string"},
		{"store.seed-file", "seed-file", "YAML file of restaurants imported at startup", "string"},
	}
)

// bindFlags registers flags that override settings keys when set. Several commands
// share keys, so the flags are bound to viper only once the command runs.
func bindFlags(cmd *cobra.Command, bindings ...[]flagBinding) {
	var all []flagBinding
	for _, group := range bindings {
		for _, b := range group {
			switch b.kind {
			case "int":
				cmd.Flags().Int(b.name, 0, b.usage)
			case "bool":
				cmd.Flags().Bool(b.name, false, b.usage)
			default:
				cmd.Flags().String(b.name, "", b.usage)
			}
			all = append(all, b)
		}
	}
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		for _, b := range all {
			if err := viper.BindPFlag(b.key, cmd.Flags().Lookup(b.name)); err != nil {
				return err
			}
		}
		return nil
	}
}

func loadSettings() (*settings.Settings, error) {
	return settings.Load(viper.GetViper())
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
