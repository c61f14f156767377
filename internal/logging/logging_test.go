package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/1broseidon/screenbridge/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetup_JSONConsoleHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := Setup(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	l.Info("hidden")
	l.Warn("shown", "persona", "b")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["msg"] != "shown" || rec["persona"] != "b" {
		t.Fatalf("unexpected record %v", rec)
	}

	l.SetLevel("debug")
	buf.Reset()
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Fatalf("expected debug after SetLevel, got %q", buf.String())
	}
}

func TestSetup_AutoFormatOnPipeIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := Setup(config.LoggingConfig{Level: "info", Format: "auto"}, &buf)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	l.Info("hello")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("expected JSON for non-terminal writer, got %q", buf.String())
	}
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := Setup(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	l.Debug("hidden")
	l.Info("switched", "persona", "a")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug filtered, got %q", out)
	}
	if !strings.Contains(out, "switched") || !strings.Contains(out, "persona=a") {
		t.Fatalf("unexpected text output %q", out)
	}
}

func TestSetup_FileCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "daemon.log")
	var console bytes.Buffer
	l, err := Setup(config.LoggingConfig{Level: "info", Format: "json", File: path}, &console)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	l.With("component", "mode").Info("poll")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"component":"mode"`) {
		t.Fatalf("expected attrs in file, got %q", data)
	}
	if !strings.Contains(console.String(), "poll") {
		t.Fatalf("expected console record too, got %q", console.String())
	}
}

func TestRotatingFile_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	r, err := OpenRotatingFile(path, 1, 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	r.maxBytes = 16

	for i := 0; i < 4; i++ {
		if _, err := fmt.Fprintf(r, "line-%02d-abcdefgh\n", i); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	for _, p := range []string{path, path + ".1", path + ".2"} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s to exist: %v", p, err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Fatalf("expected at most two backups")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "line-03-abcdefgh\n" {
		t.Fatalf("unexpected current file %q", data)
	}
}

func TestRotatingFile_WriteAfterClose(t *testing.T) {
	r, err := OpenRotatingFile(filepath.Join(t.TempDir(), "x.log"), 1, 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := r.Write([]byte("x")); err == nil {
		t.Fatalf("expected write after close to fail")
	}
}
