package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("Failed to decode %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLoggerWritesUnitField(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOutput("bench", zapcore.DebugLevel, &buf)
	l.Info("started", map[string]any{"slot": 2})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(lines))
	}
	if lines[0]["unit"] != "bench" || lines[0]["message"] != "started" {
		t.Errorf("Unexpected entry %v", lines[0])
	}
}

func TestDebugWriterSplitsTag(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOutput("bench", zapcore.DebugLevel, &buf)
	w := l.DebugWriter()
	w("[CMD] cut -> FeedingToFinda")
	w("untagged")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(lines))
	}
	if lines[0]["source"] != "cmd" || lines[0]["message"] != "cut -> FeedingToFinda" {
		t.Errorf("Unexpected tagged entry %v", lines[0])
	}
	if lines[1]["source"] != "core" {
		t.Errorf("Expected core source, got %v", lines[1]["source"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOutput("bench", ParseLevel("warn"), &buf)
	l.Debug("hidden", nil)
	l.Warn("shown", nil)
	if lines := decodeLines(t, &buf); len(lines) != 1 {
		t.Errorf("Expected only the warning, got %d entries", len(lines))
	}
	if ParseLevel("nonsense") != zapcore.InfoLevel {
		t.Error("Expected unknown level to default to info")
	}
}
