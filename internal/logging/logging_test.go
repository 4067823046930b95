package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/pgdot/internal/logging"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, logging.ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, logging.ParseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, logging.ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, logging.ParseLevel("info"))
	assert.Equal(t, zerolog.InfoLevel, logging.ParseLevel("chatty"))
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("info", &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Int("nodes", 5).Msg("rendered")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pgdot", entry["service"])
	assert.Equal(t, "rendered", entry["message"])
	assert.Equal(t, float64(5), entry["nodes"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewDebugAddsCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("debug", &buf)
	logger.Debug().Msg("trace")

	assert.Contains(t, buf.String(), `"caller":"logging_test.go:`)
}
