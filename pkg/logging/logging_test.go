package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := parseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)

	lvl, err = parseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)

	_, err = parseLevel("loud")
	assert.Error(t, err)
}

func TestInitLogger_WritesToFile(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	defer func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	}()

	dir := t.TempDir()
	logFile := filepath.Join(dir, "tablebot.log")
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	defer devNull.Close()

	require.NoError(t, initLogger(&Config{Level: "warn", LogFormat: "json", LogFile: logFile}, devNull))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	log.Warn().Str("component", "test").Msg("written to file")
	b, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "written to file")
}

func TestInitLogger_UnknownFormat(t *testing.T) {
	assert.Error(t, InitLogger(&Config{LogFormat: "xml"}))
}
