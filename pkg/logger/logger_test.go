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
		t.Fatalf("failed to initialize text logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := Init(WithFormat(FormatJSON)); err != nil {
		t.Fatalf("failed to initialize json logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := Init(WithFormat("xml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithFormat(FormatJSON), WithWriter(&buf))

	l.Info(context.Background(), "star computed",
		String("contract", "H1234"),
		Int("year", 2023),
		Float64("raw", 3.5),
		Bool("simulated", true),
		Error(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "star computed" {
		t.Errorf("unexpected msg %v", rec["msg"])
	}
	if rec["contract"] != "H1234" || rec["simulated"] != true || rec["error"] != "boom" {
		t.Errorf("fields missing from %v", rec)
	}
	if src, _ := rec["source"].(string); !strings.Contains(src, "logger_test.go") {
		t.Errorf("source should point at the caller, got %q", src)
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf), WithLevel(slog.LevelWarn))

	l.Info(context.Background(), "hidden")
	l.Debug(context.Background(), "hidden")
	l.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below warn should be dropped: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestLoggerNamed(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithFormat(FormatJSON), WithWriter(&buf)).Named("repository")

	l.Info(context.Background(), "loaded", Int("rows", 3))

	if !strings.Contains(buf.String(), `"repository":{`) {
		t.Errorf("named logger should group fields: %q", buf.String())
	}
}

func TestSetLevelString(t *testing.T) {
	for _, lv := range []string{"debug", "INFO", "warn", "warning", "error", ""} {
		if err := SetLevelString(lv); err != nil {
			t.Errorf("level %q: %v", lv, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
	SetLevel(slog.LevelInfo)
}
