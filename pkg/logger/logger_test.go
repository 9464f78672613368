package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer Close()

	Info("installing %s", "app.apk")
	Error("boom %d", 42)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "installing app.apk") {
		t.Errorf("missing info line: %s", out)
	}
	if !strings.Contains(out, "level=error") || !strings.Contains(out, "boom 42") {
		t.Errorf("missing error line: %s", out)
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	defer Close()

	WithFields(Fields{"device": "emulator-5554"}).WithFields(Fields{"screen": "segmentation"}).Info("tap")

	out := buf.String()
	if !strings.Contains(out, "device=emulator-5554") || !strings.Contains(out, "screen=segmentation") {
		t.Errorf("fields missing: %s", out)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	defer Close()

	if err := SetLevel("warn"); err != nil {
		t.Fatal(err)
	}
	Debug("hidden")
	Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug line should be filtered")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn line missing")
	}

	if err := SetLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestUninitialized_NoPanic(t *testing.T) {
	Close()
	Info("nothing")
	WithFields(Fields{"a": 1}).Error("nothing")
	if GetWriter() == nil {
		t.Error("GetWriter must never return nil")
	}
}
