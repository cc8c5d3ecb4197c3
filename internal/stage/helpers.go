package stage

import (
	"rawbids/internal/services"
	"rawbids/internal/sourcedata"
)

// ParseManifest decodes the manifest attached to a queue item. On failure it
// returns a services.ErrValidation suitable for stage Execute methods.
func ParseManifest(raw string) (*sourcedata.Manifest, error) {
	manifest, err := sourcedata.DecodeManifest(raw)
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "parse manifest",
			"Session manifest missing or invalid; rerun validation", err)
	}
	return manifest, nil
}
