package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/triageworks/dupfind/internal"
)

func setupTestApp(t *testing.T) *app {
	t.Helper()
	cfg := internal.DefaultConfig()
	cfg.DataDir = t.TempDir()

	a, err := newAppFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func writeTestCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reports.csv")
	csv := strings.Join([]string{
		"Summary,Description,Application,Platform,App Version,Language",
		`App crashes on login,Crash right after entering credentials,wallet,Android,2.1.3,en`,
		`Payment screen freezes,Spinner never completes on checkout,wallet,iOS,2.1.0,en`,
		`Dark mode colors wrong,Text unreadable in settings,wallet,Android,2.2.0,de`,
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func execute(t *testing.T, a *app, args ...string) string {
	t.Helper()
	cmd := NewRootCmd("test", a)
	cmd.SetArgs(args)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v", args, err)
	}
	return out.String()
}

func TestBuildSearchAppendDelFlow(t *testing.T) {
	a := setupTestApp(t)
	csvPath := writeTestCSV(t)

	out := execute(t, a, "build", csvPath,
		"--tenant", "acme",
		"--text", "Summary,Description",
		"--application-column", "Application",
		"--platform-column", "Platform",
		"--version-column", "App Version",
		"--language-column", "Language",
	)
	if !strings.Contains(out, "3 records embedded") {
		t.Errorf("unexpected build output: %q", out)
	}

	out = execute(t, a, "status", "--tenant", "acme")
	if !strings.Contains(out, "Records:   3") {
		t.Errorf("unexpected status output: %q", out)
	}
	if !strings.Contains(out, "Partition: android (2 records)") {
		t.Errorf("expected android partition in status, got %q", out)
	}

	out = execute(t, a, "search", "login is broken and crashes",
		"--tenant", "acme",
		"--columns", "Summary",
		"--platform", "android",
	)
	if !strings.Contains(out, "App crashes on login") {
		t.Errorf("expected crash report in results, got %q", out)
	}

	out = execute(t, a, "append",
		"--tenant", "acme",
		"-f", "Summary=Login button unresponsive",
		"-f", "Platform=Android",
		"-f", "App Version=2.1.4",
	)
	if !strings.Contains(out, "4 records total") {
		t.Errorf("unexpected append output: %q", out)
	}

	out = execute(t, a, "del", "--tenant", "acme")
	if !strings.Contains(out, "Deleted acme") {
		t.Errorf("unexpected del output: %q", out)
	}

	out = execute(t, a, "status", "--tenant", "acme")
	if !strings.Contains(out, "has no index") {
		t.Errorf("expected empty status after delete, got %q", out)
	}
}

func TestSearchCmdJSONOutput(t *testing.T) {
	a := setupTestApp(t)
	csvPath := writeTestCSV(t)

	execute(t, a, "build", csvPath, "--tenant", "acme", "--text", "Summary")

	out := execute(t, a, "search", "login is broken and crashes",
		"--tenant", "acme", "--columns", "Summary", "--json",
	)
	if !strings.Contains(out, `"final_score"`) || !strings.Contains(out, `"fields"`) {
		t.Errorf("expected JSON result fields, got %q", out)
	}
}

func TestSearchCmdMissingTenant(t *testing.T) {
	a := setupTestApp(t)

	cmd := NewRootCmd("test", a)
	cmd.SetArgs([]string{"search", "login is broken and crashes"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without --tenant")
	}
}

func TestBuildCmdRejectsBadRoles(t *testing.T) {
	a := setupTestApp(t)
	csvPath := writeTestCSV(t)

	cmd := NewRootCmd("test", a)
	cmd.SetArgs([]string{"build", csvPath, "--tenant", "acme", "--text", "NoSuchColumn"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown text column")
	}
}

func TestParseFields(t *testing.T) {
	fields, err := parseFields([]string{"Summary=App crashes", "App Version=2.1.3", "Note=a=b"})
	if err != nil {
		t.Fatal(err)
	}
	if fields["Summary"] != "App crashes" {
		t.Errorf("expected summary field, got %q", fields["Summary"])
	}
	if fields["Note"] != "a=b" {
		t.Errorf("expected value with equals sign, got %q", fields["Note"])
	}

	if _, err := parseFields([]string{"no-separator"}); err == nil {
		t.Error("expected error for malformed field")
	}
}
