package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := fmt.Sprintf(`{
  "general": {"log_level": "error"},
  "storage": {"primary": "none", "file": {"data_dir": %q}},
  "session": {"backend": "none"}
}`, filepath.Join(dir, "data"))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCMD()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAskCommand(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "ask", "-c", cfg, "--user", "alice", "add a note to water the plants")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.Contains(out, "Added note: [ ] water the plants") {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(out, "local file") {
		t.Fatalf("expected the fallback indicator, got %q", out)
	}

	out, err = run(t, "ask", "-c", cfg, "--agent", "notes", "--user", "alice", "show my notes")
	if err != nil {
		t.Fatalf("ask agent: %v", err)
	}
	if !strings.Contains(out, "water the plants") {
		t.Fatalf("expected stored note, got %q", out)
	}

	if _, err := run(t, "ask", "-c", cfg, "--agent", "travel", "book a flight"); err == nil {
		t.Fatal("expected an error for an unknown agent")
	}
}

func TestReconcileNeedsPrimary(t *testing.T) {
	if _, err := run(t, "reconcile", "-c", writeConfig(t)); err == nil {
		t.Fatal("expected reconcile to refuse without a primary")
	}
}

func TestMigrateNeedsPostgres(t *testing.T) {
	if _, err := run(t, "migrate", "-c", writeConfig(t)); err == nil {
		t.Fatal("expected migrate to refuse without postgres settings")
	}
}
