package afni

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
)

func stubCommand(t *testing.T, script string) {
	t.Helper()
	prev := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, "sh", "-c", script, name)
		cmd.Args = append(cmd.Args, args...)
		return cmd
	}
	t.Cleanup(func() { commandContext = prev })
}

func TestDefaceWritesOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "sub-ER0009_ses-day2_T1w_defaced.nii.gz")
	stubCommand(t, `out=""; while [ $# -gt 0 ]; do if [ "$1" = "-prefix" ]; then out="$2"; fi; shift; done; : > "$out"`)

	cli := NewCLI()
	if err := cli.Deface(context.Background(), filepath.Join(t.TempDir(), "T1w.nii.gz"), out); err != nil {
		t.Fatalf("Deface: %v", err)
	}
}

func TestDefaceFailsWithoutOutput(t *testing.T) {
	stubCommand(t, "exit 0")
	cli := NewCLI()
	out := filepath.Join(t.TempDir(), "defaced.nii.gz")
	if err := cli.Deface(context.Background(), "input.nii.gz", out); err == nil {
		t.Fatal("expected error when refacer produces no output")
	}
}

func TestDefaceReportsToolFailure(t *testing.T) {
	stubCommand(t, "echo refacer blew up >&2; exit 1")
	cli := NewCLI()
	out := filepath.Join(t.TempDir(), "defaced.nii.gz")
	if err := cli.Deface(context.Background(), "input.nii.gz", out); err == nil {
		t.Fatal("expected error for non-zero exit")
	}
}
