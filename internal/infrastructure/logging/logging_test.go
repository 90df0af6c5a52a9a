package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "resolution.log")
	var stderr bytes.Buffer
	l, err := New(Options{File: path, Level: "info", Stderr: &stderr})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Info("plan created", "plan_id", "p-1")
	l.Debug("hidden")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "plan created") || !strings.Contains(out, "p-1") {
		t.Errorf("log file missing entry: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug entry written at info level")
	}
	if stderr.Len() != 0 {
		t.Errorf("stderr should be silent outside debug: %q", stderr.String())
	}
}

func TestNew_DebugMirrorsToStderr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolution.log")
	var stderr bytes.Buffer
	l, err := New(Options{File: path, Debug: true, Stderr: &stderr})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer l.Close()

	l.Debug("visible")
	if !strings.Contains(stderr.String(), "visible") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestSetLevel(t *testing.T) {
	var stderr bytes.Buffer
	l, err := New(Options{Stderr: &stderr, Level: "error"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Warn("first")
	if err := l.SetLevel("warn"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	l.Warn("second")
	out := stderr.String()
	if strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Errorf("unexpected output: %q", out)
	}
	if err := l.SetLevel("chatty"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"", "info", "DEBUG", "warning", "error"} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q): %v", s, err)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("expected error for trace")
	}
}
