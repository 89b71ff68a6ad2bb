package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := InitWithFormat(FormatJSON); err != nil {
		t.Fatalf("failed to initialize json logger: %v", err)
	}
	if err := InitWithFormat("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{Format: FormatJSON})

	l.Named("fusion").Info(context.Background(), "event merged",
		String("event_id", "ev-1"),
		Float64("confidence", 42.5),
		Bool("negation", false),
		Error(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not json: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "event merged" {
		t.Errorf("unexpected msg: %v", rec["msg"])
	}
	if rec["component"] != "fusion" {
		t.Errorf("expected component fusion, got %v", rec["component"])
	}
	if rec["error"] != "boom" {
		t.Errorf("expected error string, got %v", rec["error"])
	}
	if src, _ := rec["source"].(string); !strings.Contains(src, "logger_test.go") {
		t.Errorf("expected caller to point at the test file, got %q", src)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	var lv slog.LevelVar
	lv.Set(slog.LevelWarn)
	l := New(&buf, Options{Level: &lv})

	l.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
	l.Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn should pass, got %q", buf.String())
	}
}

func TestSetLevelString(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "warning", "error", ""} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("level %q: unexpected error %v", lvl, err)
		}
	}
	if err := SetLevelString("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLoggerNamedAndWith(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{}).With(String("reporter_id", "u1"))
	l.Info(context.Background(), "hello")
	if !strings.Contains(buf.String(), "reporter_id=u1") {
		t.Fatalf("expected bound field in output, got %q", buf.String())
	}
}
