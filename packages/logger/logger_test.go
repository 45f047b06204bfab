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
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{" error ", zapcore.ErrorLevel},
		{"warn", zapcore.WarnLevel},
		{"", zapcore.WarnLevel},
		{"nonsense", zapcore.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := newWithStderr(&Config{Level: "warn", Format: "json"}, &buf)

	log.Info("hidden")
	log.Warn("shown", zap.String("group", "root"))
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "root", entry["group"])
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hitsuite.log")
	var buf bytes.Buffer
	log := newWithStderr(&Config{Level: "debug", FilePath: path, Quiet: true, MaxSize: 1}, &buf)

	log.Debug("group opened", zap.String("group", "math"))
	require.NoError(t, log.Sync())

	assert.Empty(t, buf.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"group opened"`)
}

func TestNew_QuietWithoutFileIsNop(t *testing.T) {
	var buf bytes.Buffer
	log := newWithStderr(&Config{Quiet: true}, &buf)
	log.Error("nothing to see")
	assert.Empty(t, buf.String())
}
