package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rawbids/internal/workflow"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	return home
}

func TestConfigInitWritesSample(t *testing.T) {
	home := isolateHome(t)
	target := filepath.Join(home, "rawbids.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite should succeed: %v", err)
	}
}

func TestConfigValidateWithDefaults(t *testing.T) {
	isolateHome(t)
	out, err := runCommand(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestConfigShowListsSettings(t *testing.T) {
	isolateHome(t)
	out, err := runCommand(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"dcm2niix", "acq2txt", "Fieldmap split threshold"} {
		if !strings.Contains(out, want) {
			t.Fatalf("config show missing %q in %q", want, out)
		}
	}
}

func TestStatusEmptyQueue(t *testing.T) {
	isolateHome(t)
	out, err := runCommand(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Queue is empty") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestQueueClearRequiresConfirmation(t *testing.T) {
	isolateHome(t)
	if _, err := runCommand(t, "queue", "clear"); err == nil {
		t.Fatal("expected refusal without --yes")
	}
	out, err := runCommand(t, "queue", "clear", "--yes")
	if err != nil {
		t.Fatalf("queue clear --yes: %v", err)
	}
	if !strings.Contains(out, "Cleared 0 session(s)") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestQueueRemoveUnknownID(t *testing.T) {
	isolateHome(t)
	if _, err := runCommand(t, "queue", "remove", "999"); err == nil {
		t.Fatal("expected error for unknown id")
	}
	if _, err := runCommand(t, "queue", "remove", "not-a-number"); err == nil {
		t.Fatal("expected error for malformed id")
	}
}

func TestPrintRunSummaryIncludesFailures(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)

	printRunSummary(cmd, &workflow.RunSummary{
		Discovered: 3,
		Completed:  2,
		Failed:     1,
		Failures:   []string{"sub-ER0009/ses-day2: converting: run dcm2niix failed"},
	})
	rendered := out.String()
	if !strings.Contains(rendered, "Discovered") || !strings.Contains(rendered, "sub-ER0009/ses-day2") {
		t.Fatalf("unexpected summary output %q", rendered)
	}
}

func TestRenderTableAlignsRequestedColumns(t *testing.T) {
	rendered := renderTable(
		[]string{"ID", "Name"},
		[][]string{{"7", "alpha"}, {"42", "beta"}},
		0)
	if !strings.Contains(rendered, "42") || !strings.Contains(rendered, "beta") {
		t.Fatalf("unexpected table output %q", rendered)
	}
	for _, line := range strings.Split(rendered, "\n") {
		// Right alignment puts the short ID flush against the column edge.
		if strings.Contains(line, "alpha") && !strings.Contains(line, "  7 ") {
			t.Fatalf("expected right-aligned ID column in %q", line)
		}
	}
	if renderTable(nil, nil) != "" {
		t.Fatal("expected empty output for no headers")
	}

	short := renderTable([]string{"A", "B"}, [][]string{{"only"}})
	if !strings.Contains(short, "only") {
		t.Fatalf("expected short row to render, got %q", short)
	}
}
