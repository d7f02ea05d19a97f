package logger

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogLevel(t *testing.T) {
	defer LogLevel.Set(slog.LevelError)

	tests := []struct {
		in   string
		ok   bool
		want slog.Level
	}{
		{"debug", true, slog.LevelDebug},
		{" INFO ", true, slog.LevelInfo},
		{"warning", true, slog.LevelWarn},
		{"error", true, slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.ok, SetLogLevel(tt.in))
			assert.Equal(t, tt.want, LogLevel.Level())
		})
	}

	LogLevel.Set(slog.LevelInfo)
	assert.False(t, SetLogLevel("verbose"))
	assert.Equal(t, slog.LevelInfo, LogLevel.Level(), "unknown level must not change the current one")
}
