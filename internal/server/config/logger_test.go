package config

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogConfig_NewLogger(t *testing.T) {
	t.Run("json at warn", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
		require.NoError(t, err)

		logger.Info("hidden")
		logger.Warn("shown", "k", "v")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "shown", entry["msg"])
		assert.Equal(t, "v", entry["k"])
	})

	t.Run("text at debug", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := LogConfig{Level: "debug", Format: "text"}.NewLogger(&buf)
		require.NoError(t, err)

		logger.Debug("details")
		assert.Contains(t, buf.String(), "level=DEBUG")
	})

	t.Run("unknown level", func(t *testing.T) {
		_, err := LogConfig{Level: "loud", Format: "text"}.NewLogger(&bytes.Buffer{})
		require.Error(t, err)
	})
}
