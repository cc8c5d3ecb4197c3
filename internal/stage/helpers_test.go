package stage

import (
	"testing"
)

func TestParseManifestValid(t *testing.T) {
	raw := `{"subject_id":"ER0009","session_label":"day2","session_task":"movies","session_path":"/src"}`
	manifest, err := ParseManifest(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if manifest.SubjectID != "ER0009" {
		t.Fatalf("unexpected subject: %q", manifest.SubjectID)
	}
}

func TestParseManifestEmpty(t *testing.T) {
	if _, err := ParseManifest(""); err == nil {
		t.Fatal("expected error for empty manifest")
	}
}

func TestParseManifestInvalid(t *testing.T) {
	if _, err := ParseManifest("{invalid json"); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
