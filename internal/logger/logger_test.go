package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		log       func(l *slog.Logger)
		checkFunc func(t *testing.T, output string)
	}{
		{
			name:   "text logger at info level",
			config: Config{Level: "info", Format: "text", Output: "stdout"},
			log:    func(l *slog.Logger) { l.Info("webhook received", "pr", 7) },
			checkFunc: func(t *testing.T, output string) {
				assert.Contains(t, output, "level=INFO")
				assert.Contains(t, output, `msg="webhook received"`)
				assert.Contains(t, output, "pr=7")
			},
		},
		{
			name:   "json logger at debug level",
			config: Config{Level: "debug", Format: "json", Output: "stdout"},
			log:    func(l *slog.Logger) { l.Debug("job dequeued", "job_id", "abc") },
			checkFunc: func(t *testing.T, output string) {
				var entry map[string]any
				require.NoError(t, json.Unmarshal([]byte(output), &entry))
				assert.Equal(t, "DEBUG", entry["level"])
				assert.Equal(t, "job dequeued", entry["msg"])
				assert.Equal(t, "abc", entry["job_id"])
			},
		},
		{
			name:   "debug suppressed at warn level",
			config: Config{Level: "warn", Format: "text"},
			log:    func(l *slog.Logger) { l.Debug("hidden"); l.Info("hidden too") },
			checkFunc: func(t *testing.T, output string) {
				assert.Empty(t, output)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewLogger(tt.config, &buf))
			tt.checkFunc(t, buf.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
