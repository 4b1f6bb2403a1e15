package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
workspace_dir = %q
log_dir = %q
history_db = %q
`,
		filepath.Join(base, "workspace"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "history.db"),
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeSpec(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spec.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return path
}

func TestValidateCommandAcceptsWellFormedSpec(t *testing.T) {
	configPath := writeTestConfig(t)
	specPath := writeSpec(t, `{
        "videos": [
            {"file": "a.mp4", "start": 0, "end": 4},
            {"file": "b.mp4", "start": 4, "end": 10}
        ],
        "output": {"resolution": [1280, 720], "fps": 30}
    }`)

	out, err := runCommand(t, "-c", configPath, "validate", specPath)
	if err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Spec is valid") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestValidateCommandReportsEveryIssue(t *testing.T) {
	configPath := writeTestConfig(t)
	specPath := writeSpec(t, `{
        "videos": [
            {"file": "a.mp4", "start": 2, "end": 4},
            {"file": "", "start": 5, "end": 5}
        ],
        "output": {"resolution": [1280, 720], "fps": 30}
    }`)

	out, err := runCommand(t, "-c", configPath, "validate", specPath)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"missing-asset", "zero-length", "timeline-gap"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q issue:\n%s", want, out)
		}
	}
}

func TestHistoryCommandEmptyJournal(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "-c", configPath, "history")
	if err != nil {
		t.Fatalf("history failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "No renders recorded yet.") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v\n%s", err, out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	// A second init must refuse to clobber the file.
	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
}
