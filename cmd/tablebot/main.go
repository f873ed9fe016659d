package main

import (
	"os"
	"strings"

	"github.com/go-go-golems/tablebot/cmd/tablebot/cmds"
	"github.com/go-go-golems/tablebot/pkg/logging"
	"github.com/go-go-golems/tablebot/pkg/settings"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "tablebot",
	Short: "tablebot is a restaurant assistant driven by a language model",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// reinitialize the logger now that flags are parsed
		return initLogger()
	},
	SilenceUsage: true,
}

func initLogger() error {
	return logging.InitLogger(&logging.Config{
		Level:      viper.GetString("log.level"),
		LogFormat:  viper.GetString("log.format"),
		LogFile:    viper.GetString("log.file"),
		WithCaller: viper.GetBool("log.with-caller"),
	})
}

func initConfig() error {
	v := viper.GetViper()
	settings.SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.tablebot")
		if xdgConfigPath, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(xdgConfigPath + "/tablebot")
		}
	}

	err := v.ReadInConfig()
	// a missing config file is fine
	if _, ok := err.(viper.ConfigFileNotFoundError); !ok && err != nil {
		return err
	}
	settings.ConfigureEnv(v)

	if err := initLogger(); err != nil {
		return err
	}
	log.Debug().Str("config", v.ConfigFileUsed()).Msg("loaded configuration")
	return nil
}

func bindPersistentFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./config.yaml or $HOME/.tablebot/config.yaml)")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json), defaults to text on a terminal")
	flags.String("log-file", "", "also write logs to this file, rotated")
	flags.Bool("with-caller", false, "log the caller of each log line")

	for _, name := range []string{"log-level", "log-format", "log-file", "with-caller"} {
		key := "log." + strings.TrimPrefix(name, "log-")
		cobra.CheckErr(viper.BindPFlag(key, flags.Lookup(name)))
	}
}

func main() {
	bindPersistentFlags(rootCmd)
	cobra.OnInitialize(func() {
		cobra.CheckErr(initConfig())
	})

	rootCmd.AddCommand(cmds.NewServeCommand(), cmds.NewChatCommand(), cmds.NewSeedCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
