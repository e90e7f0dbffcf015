package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func intPtr(i int) *int { return &i }

func TestCSVSinkCreatesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")

	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink() error = %v", err)
	}
	defer sink.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(string(data), "\n")
	if lines[0] != csvHeader {
		t.Fatalf("expected header %q, got %q", csvHeader, lines[0])
	}
}

func TestCSVSinkReplacesForeignHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	existing := "Time,Lvl,Msg\n2026-01-01T00:00:00Z,info,kept line\n"
	if err := os.WriteFile(path, []byte(existing), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink() error = %v", err)
	}
	defer sink.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(string(data), "\n")
	if lines[0] != csvHeader {
		t.Fatalf("expected replaced header %q, got %q", csvHeader, lines[0])
	}
	if lines[1] != "2026-01-01T00:00:00Z,info,kept line" {
		t.Fatalf("expected prior content preserved, got %q", lines[1])
	}
}

func TestCSVSinkWritesStatusCodeColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")

	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink() error = %v", err)
	}

	ev := Event{
		Timestamp:  "2026-08-02T12:00:00Z",
		Level:      "Warning",
		Message:    "file dispatch failed: /watch/a,b.txt",
		Category:   "sender",
		StatusCode: intPtr(503),
	}
	if err := sink.Write(ev); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	last := lines[len(lines)-1]
	if !strings.HasSuffix(last, ",503") {
		t.Errorf("expected StatusCode as last column, got %q", last)
	}
	if !strings.Contains(last, `"file dispatch failed: /watch/a,b.txt"`) {
		t.Errorf("expected comma-bearing message to be quoted, got %q", last)
	}
}

func TestNDJSONSinkIncludesStatusCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")

	sink, err := NewNDJSONSink(path)
	if err != nil {
		t.Fatalf("NewNDJSONSink() error = %v", err)
	}

	if err := sink.Write(Event{Timestamp: "2026-08-02T12:00:00Z", Level: "Information", Message: "ok", Category: "sender", StatusCode: intPtr(200)}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := sink.Write(Event{Timestamp: "2026-08-02T12:00:01Z", Level: "Warning", Message: "no status", Category: "sender"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 ndjson lines, got %d", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if first["StatusCode"] != float64(200) {
		t.Errorf("expected StatusCode 200 in ndjson line, got %v", first["StatusCode"])
	}
	if strings.Contains(lines[1], "StatusCode") {
		t.Errorf("expected StatusCode omitted when absent, got %q", lines[1])
	}
}
