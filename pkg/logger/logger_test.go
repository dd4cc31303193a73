package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := For(New("info", FormatJSON, &buf), "engine")
	log.Debugw("hidden")
	log.Infow("dispatch", "path", "username")
	_ = log.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["msg"] != "dispatch" || entry["component"] != "engine" || entry["path"] != "username" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	New("debug", FormatConsole, &buf).Sugar().Debugw("state entered", "status", "VALID")
	if !strings.Contains(buf.String(), "state entered") || !strings.Contains(buf.String(), " | ") {
		t.Fatalf("unexpected console output: %q", buf.String())
	}
}

func TestForNil(t *testing.T) {
	For(nil, "x").Infow("dropped")
}
