package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.nii.gz")
	dst := filepath.Join(dir, "nested", "dst.nii.gz")
	if err := os.WriteFile(src, []byte("imaging payload"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatalf("CopyFileVerified: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if string(got) != "imaging payload" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFileVerified(filepath.Join(dir, "absent"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyFileMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.tsv")
	dst := filepath.Join(dir, "dst.tsv")
	if err := os.WriteFile(src, []byte("a\tb\n"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := CopyFileMode(src, dst, 0o644); err != nil {
		t.Fatalf("CopyFileMode: %v", err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat dst: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("unexpected mode %v", info.Mode())
	}
}
