package services_test

import (
	"errors"
	"strings"
	"testing"

	"rawbids/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	underlying := errors.New("exit status 1")
	err := services.Wrap(services.ErrExternalTool, "converting", "run dcm2niix", "Converter failed", underlying)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !errors.Is(err, underlying) {
		t.Fatalf("expected underlying error to be wrapped, got %v", err)
	}
	for _, fragment := range []string{"converting", "run dcm2niix", "Converter failed"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in error, got %q", fragment, err.Error())
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker for nil input, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %q", err.Error())
	}
}
