package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(newHandler(slog.LevelWarn, &buf))

	l.Info("below threshold")
	l.Warn("socket reset")

	out := buf.String()
	if strings.Contains(out, "below threshold") {
		t.Error("info record emitted at warn level")
	}
	if !strings.Contains(out, "socket reset") {
		t.Error("warn record missing")
	}
}

func TestLGlobalFallback(t *testing.T) {
	if L() == nil {
		t.Fatal("L returned nil logger")
	}
}
