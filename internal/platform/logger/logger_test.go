package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("json format carries service attribute", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter(&buf, "json", "info").Info("hello", "booth_id", "B-01")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "hello", line["msg"])
		assert.Equal(t, "rollguard", line["service"])
		assert.Equal(t, "B-01", line["booth_id"])
	})

	t.Run("level filters lower records", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWithWriter(&buf, "text", "warn")
		l.Info("dropped")
		assert.Empty(t, buf.String())
		l.Warn("kept")
		assert.Contains(t, buf.String(), "kept")
	})
}
