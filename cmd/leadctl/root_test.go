package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestCommandsRegistered(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"migrate", "evaluate", "trigger", "rules-check"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("expected subcommand %s", name)
		}
	}
}

func TestRulesCheckMergesDefaults(t *testing.T) {
	path := writeFile(t, "stale_rules:\n  active_stale_hours: 72\n")

	out, err := run(t, "rules-check", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "active_stale_hours: 72") || !strings.Contains(out, "at_risk_threshold_percent:") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRulesCheckRejectsInvalidFile(t *testing.T) {
	tests := map[string]string{
		"unknown key":  "stale_rules:\n  stale_after: 3\n",
		"out of range": "stale_rules:\n  at_risk_threshold_percent: 150\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := run(t, "rules-check", writeFile(t, content)); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestRulesCheckRequiresPath(t *testing.T) {
	if _, err := run(t, "rules-check"); err == nil {
		t.Fatalf("expected an argument error")
	}
}
