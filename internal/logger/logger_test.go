package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetLevel("INFO")
		SetFormat("text")
	})
	return &buf
}

func TestLevels(t *testing.T) {
	buf := capture(t)
	SetLevel("warn")

	Debug("hidden %d", 1)
	Info("hidden %d", 2)
	Warn("shown %d", 3)
	Error("shown %d", 4)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "] [WARN] shown 3")
	assert.Contains(t, lines[1], "] [ERROR] shown 4")
	assert.Equal(t, LevelWarn, GetLevel())

	SetLevel("nonsense")
	assert.Equal(t, LevelWarn, GetLevel(), "unknown levels are ignored")
}

func TestJSONFormat(t *testing.T) {
	buf := capture(t)
	SetFormat("JSON")

	Info("committed version %d", 7)

	var line jsonLine
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "INFO", line.Level)
	assert.Equal(t, "committed version 7", line.Message)
	assert.NotEmpty(t, line.Time)
}

func TestInit(t *testing.T) {
	capture(t)
	path := filepath.Join(t.TempDir(), "tablestore.log")

	require.NoError(t, Init("debug", "text", path))
	Debug("to file")
	require.NoError(t, Init("info", "text", "stdout"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] to file")

	assert.Error(t, Init("loud", "text", "stdout"))
	assert.Error(t, Init("info", "text", filepath.Join(t.TempDir(), "missing", "x.log")))
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"debug": LevelDebug, "INFO": LevelInfo, "Warning": LevelWarn, " error ": LevelError} {
		got, ok := ParseLevel(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseLevel("trace")
	assert.False(t, ok)
}
