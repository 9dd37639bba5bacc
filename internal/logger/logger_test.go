package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json config", config: &Config{Level: "debug", Format: "json", Output: io.Discard}},
		{name: "console config", config: &Config{Level: "info", Format: "console", Output: io.Discard}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, New(tt.config))
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(&Config{Level: "info", Format: "json", Output: buf})

	logger.Info("view opened")

	entry := decode(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "view opened", entry["message"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_WithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(&Config{Level: "info", Format: "json", Output: buf})

	child := logger.With().
		Str("table", "public.users").
		Int("statements", 3).
		Bool("bypass", true).
		Logger()

	child.Info("change-set committed")

	entry := decode(t, buf)
	assert.Equal(t, "public.users", entry["table"])
	assert.Equal(t, float64(3), entry["statements"])
	assert.Equal(t, true, entry["bypass"])
}

func TestLogger_ErrorWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(&Config{Level: "error", Format: "json", Output: buf})

	logger.ErrorWith("rollback failed", errors.New("conn closed"), map[string]any{
		"connection": "local",
	})

	entry := decode(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "conn closed", entry["error"])
	assert.Equal(t, "local", entry["connection"])
}

func TestLogger_Context(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(&Config{Level: "info", Format: "json", Output: buf})

	ctx := logger.WithContext(context.Background())
	FromContext(ctx).Info("from context")

	assert.Equal(t, "from context", decode(t, buf)["message"])
}

func TestFromContext_NoLoggerIsNop(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	l.Info("discarded")
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFunc  func(*Logger)
		expected bool
	}{
		{"debug level logs debug", "debug", func(l *Logger) { l.Debug("d") }, true},
		{"info level skips debug", "info", func(l *Logger) { l.Debug("d") }, false},
		{"warn level logs warn", "warn", func(l *Logger) { l.WarnWith("w", map[string]any{"k": 1}) }, true},
		{"error level skips info", "error", func(l *Logger) { l.Info("i") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.logFunc(New(&Config{Level: tt.level, Format: "json", Output: buf}))

			if tt.expected {
				assert.NotEmpty(t, buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := New(&Config{Output: io.Discard})
	assert.Same(t, l, OrNop(l))
}

func BenchmarkLogger_WithFields(b *testing.B) {
	logger := New(&Config{Level: "info", Format: "json", Output: io.Discard})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.With().
			Str("table", "public.users").
			Int("statement", i).
			Logger().
			Info("executed")
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, parseLevel(" WARN "))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
}

func TestLogger_TypedFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(&Config{Level: "info", Format: "json", Output: buf})

	logger.With().
		Int64("rows_affected", 1<<40).
		Dur("duration", 1500*time.Millisecond).
		Logger().
		Info("request")

	entry := decode(t, buf)
	assert.Equal(t, float64(1<<40), entry["rows_affected"])
	assert.Equal(t, float64(1500), entry["duration"])
}

func TestNew_ServiceAndCaller(t *testing.T) {
	buf := &bytes.Buffer{}
	New(&Config{Level: "info", Output: buf}).Info("x")
	entry := decode(t, buf)
	assert.Equal(t, "pgedit", entry["service"])
	assert.NotContains(t, entry, "caller")

	buf.Reset()
	New(&Config{Level: "debug", Output: buf}).Debug("y")
	assert.Contains(t, decode(t, buf), "caller")
}

func TestGetTimeFormat(t *testing.T) {
	assert.Equal(t, zerolog.TimeFormatUnixMs, getTimeFormat("unixms"))
	assert.Equal(t, time.RFC3339Nano, getTimeFormat("rfc3339nano"))
	assert.Equal(t, time.RFC3339, getTimeFormat("bogus"))
}
