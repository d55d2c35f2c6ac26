package cllog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"clubpulse/internal/models/clconfig"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForClub(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf).With().Str("app", appName).Logger()

	logger := ForClub("club-7")
	logger.Warn().Msg("write failed")

	assert.Contains(t, buf.String(), `"club":"club-7"`)
	assert.Contains(t, buf.String(), `"app":"clubpulse"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestNewFiltersBelowConfiguredLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "pulse.log")

	logger, err := New(clconfig.LoggerConfig{
		Level: "warning",
		File:  clconfig.LoggerFileConfig{Enable: true, Path: logPath, MaxSize: 1},
	}, true)
	require.NoError(t, err)

	logger.Info().Msg("quiet")
	logger.Error().Msg("loud")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet")
	assert.Contains(t, string(data), "loud")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zerolog.TraceLevel, parseLevel("trace"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel(" warning "))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("whatever"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("panic"))
}

func TestInitLoggerWithFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "clubpulse.log")

	InitLogger(clconfig.LoggerConfig{
		Level: "info",
		File:  clconfig.LoggerFileConfig{Enable: true, Path: logPath, MaxSize: 1},
	}, true)
	log.Info().Msg("hello file")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
	assert.Contains(t, string(data), `"app":"clubpulse"`)
}
