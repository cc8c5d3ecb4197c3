// Package deps reports the availability of the external neuroimaging tools
// the pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"rawbids/internal/config"
)

// Requirement defines an external dependency rawbids relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Required derives the dependency list from configuration. The AFNI refacer
// is optional when defacing is disabled.
func Required(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "dcm2niix",
			Command:     cfg.Conversion.Binary,
			Description: "Converts DICOM series to NIfTI with JSON sidecars",
		},
		{
			Name:        "AFNI refacer",
			Command:     cfg.Deface.Binary,
			Description: "Removes facial features from anatomical images",
			Optional:    !cfg.Deface.Enabled,
		},
		{
			Name:        "acq2txt",
			Command:     cfg.Physio.Binary,
			Description: "Exports BIOPAC recordings to plain text",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional dependencies.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
