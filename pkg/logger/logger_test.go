package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"bookmarkvault/pkg/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "chatty"}, wantErr: true},
		{name: "file output", cfg: &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "vault.log")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestNewWithWriterAddsBaseFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: "info"}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	l.Debug("hidden")
	l.Info("visible")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line above debug threshold, got %d", len(lines))
	}
	if lines[0]["app"] != "bookmarkvault" {
		t.Errorf("missing app field: %v", lines[0])
	}
	if lines[0]["message"] != "visible" {
		t.Errorf("unexpected message: %v", lines[0]["message"])
	}
}

func TestFieldsAndChaining(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: "debug"}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	child := l.WithField("bookmark_id", "123").WithFields(map[string]interface{}{
		"stage": "render",
	})
	child.WithError(errors.New("disk full")).ErrorWithFields("Bookmark failed", map[string]interface{}{
		"attempt":  2,
		"elapsed":  1500 * time.Millisecond,
		"reusable": false,
	})

	// the parent must not inherit child fields
	l.Info("parent")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	first := lines[0]
	for key, want := range map[string]interface{}{
		"bookmark_id": "123",
		"stage":       "render",
		"error":       "disk full",
		"attempt":     float64(2),
		"reusable":    false,
	} {
		if first[key] != want {
			t.Errorf("field %s = %v, want %v", key, first[key], want)
		}
	}
	if _, ok := lines[1]["bookmark_id"]; ok {
		t.Error("child field leaked into parent logger")
	}
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogRateLimit(tl, "/2/users/1/bookmarks", 5*time.Second, "abc")
	LogMediaFetch(tl, "1", "https://pbs.twimg.com/a.jpg", "", false, errors.New("404"))
	LogSyncProgress(tl, 2, 100, 40, 60, 0)

	if !tl.HasMessage("Rate limit reached") {
		t.Error("rate limit message not logged")
	}
	warns := tl.GetMessagesByLevel("WARN")
	if len(warns) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(warns))
	}
	if warns[0].Fields["cursor"] != "abc" {
		t.Errorf("cursor field missing: %v", warns[0].Fields)
	}
	if warns[1].Fields["error"] != "404" {
		t.Errorf("error field missing: %v", warns[1].Fields)
	}
}

func TestTestLoggerSharesSink(t *testing.T) {
	tl := NewTestLogger()
	tl.WithField("component", "engine").Error("boom")

	if !tl.HasError() {
		t.Fatal("child error not visible on parent")
	}
	msgs := tl.GetMessages()
	if msgs[0].Fields["component"] != "engine" {
		t.Errorf("unexpected fields: %v", msgs[0].Fields)
	}

	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear did not drop messages")
	}
}
