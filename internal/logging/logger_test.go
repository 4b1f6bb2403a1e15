package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"montage/internal/logging"
)

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "montage.log")

	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("compile finished", logging.Int("segments", 3))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "compile finished") {
		t.Fatalf("log file missing message: %s", data)
	}
	if !strings.Contains(string(data), `"segments":3`) {
		t.Fatalf("log file missing attr: %s", data)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestConsoleFormatIncludesAttrs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("slow probe", logging.String("asset", "intro.mp4"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "WARN") || !strings.Contains(line, "asset=intro.mp4") {
		t.Fatalf("unexpected console line: %q", line)
	}
}
