package logs

import (
	"bytes"
	"encoding/json"
	"testing"

	"streakbuddy/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONWithServiceAttrs(t *testing.T) {
	cfg := config.Defaults()
	cfg.Env.ServiceName = "streakbuddy"
	cfg.Env.Env = "staging"
	cfg.Env.Log.Level = "warn"

	var buf bytes.Buffer
	logger, err := newLogger(&buf, cfg)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", "habitID", "h1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "streakbuddy", line["service"])
	assert.Equal(t, "staging", line["env"])
	assert.Equal(t, "h1", line["habitID"])
}

func TestParseLogLevel(t *testing.T) {
	_, err := parseLogLevel("verbose")
	assert.Error(t, err)

	lvl, err := parseLogLevel("")
	require.NoError(t, err)
	assert.Equal(t, "INFO", lvl.String())
}
