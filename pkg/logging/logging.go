package logging

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	WithCaller bool
	Level      string
	// LogFormat is "text", "json" or "" (text on a terminal, json otherwise)
	LogFormat string
	LogFile   string
}

// InitLogger configures the global zerolog logger.
func InitLogger(config *Config) error {
	return initLogger(config, os.Stderr)
}

func initLogger(config *Config, out *os.File) error {
	level, err := parseLevel(config.Level)
	if err != nil {
		return err
	}

	var logWriter io.Writer
	switch config.LogFormat {
	case "text":
		logWriter = zerolog.ConsoleWriter{Out: out}
	case "json":
		logWriter = out
	case "":
		if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
			logWriter = zerolog.ConsoleWriter{Out: out}
		} else {
			logWriter = out
		}
	default:
		return errors.Errorf("unknown log format %q", config.LogFormat)
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, // days
				},
			})
	}

	logger := zerolog.New(logWriter).With().Timestamp()
	if config.WithCaller {
		logger = logger.Caller()
	}
	log.Logger = logger.Logger()
	zerolog.SetGlobalLevel(level)

	return nil
}

func parseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "fatal":
		return zerolog.FatalLevel, nil
	}
	return zerolog.NoLevel, errors.Errorf("unknown log level %q", s)
}
