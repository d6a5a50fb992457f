package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevelSpec(t *testing.T) {
	opts := Options{Level: slog.LevelInfo}
	ParseLevelSpec(&opts, "core/sb=debug, app/to=warn,error,bogus=nope")

	assert.Equal(t, slog.LevelError, opts.Level)
	assert.Equal(t, slog.LevelDebug, opts.SubsystemLevels["core/sb"])
	assert.Equal(t, slog.LevelWarn, opts.SubsystemLevels["app/to"])
	assert.NotContains(t, opts.SubsystemLevels, "bogus")
}

func TestLazyLogger_SubsystemFiltering(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{
		Level:           slog.LevelWarn,
		SubsystemLevels: map[string]slog.Level{"core/sb": slog.LevelDebug},
		Output:          &buf,
	})
	defer Setup(OptionsFromEnv())

	Logger("core/sb").Debug("visible")
	Logger("app/sch").Info("hidden")
	Logger("app/sch").Warn("also visible")

	out := buf.String()
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "component=core/sb")
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "also visible")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"loud", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
