package dcm2niix

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func stubCommand(t *testing.T, script string) {
	t.Helper()
	prev := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", script)
	}
	t.Cleanup(func() { commandContext = prev })
}

func TestConvertCollectsBalancedOutput(t *testing.T) {
	outDir := t.TempDir()
	for _, name := range []string{"DICOM_EmoRep_anat_20220408.nii.gz", "DICOM_EmoRep_anat_20220408.json"} {
		if err := os.WriteFile(filepath.Join(outDir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seed output: %v", err)
		}
	}
	stubCommand(t, "exit 0")

	cli := NewCLI()
	result, err := cli.Convert(context.Background(), t.TempDir(), outDir)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(result.Images) != 1 || len(result.Sidecars) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestConvertFailsWithoutImages(t *testing.T) {
	stubCommand(t, "exit 0")
	cli := NewCLI()
	if _, err := cli.Convert(context.Background(), t.TempDir(), t.TempDir()); err == nil {
		t.Fatal("expected error for empty converter output")
	}
}

func TestConvertReportsToolFailure(t *testing.T) {
	stubCommand(t, "echo boom >&2; exit 3")
	cli := NewCLI()
	if _, err := cli.Convert(context.Background(), t.TempDir(), t.TempDir()); err == nil {
		t.Fatal("expected error for non-zero exit")
	}
}

func TestConvertRejectsUnbalancedOutput(t *testing.T) {
	outDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(outDir, "series.nii.gz"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed output: %v", err)
	}
	stubCommand(t, "exit 0")
	cli := NewCLI()
	if _, err := cli.Convert(context.Background(), t.TempDir(), outDir); err == nil {
		t.Fatal("expected error for unbalanced image/sidecar counts")
	}
}
