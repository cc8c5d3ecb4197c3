package sourcedata

import (
	"fmt"
	"os"
	"path/filepath"
)

// Scanner export subdirectory names, fixed by the acquisition protocol.
const (
	DicomDirName  = "DICOM"
	BehavDirName  = "Scanner_behav"
	PhysioDirName = "Scanner_physio"
)

// Report is the outcome of validating one session directory. A failed report
// names every reason; an I/O problem while inspecting the tree is returned as
// an error instead, since it says nothing about the layout.
type Report struct {
	Passed      bool
	Diagnostics []string
}

// ValidateSession checks that a session directory holds at least one of the
// expected scanner subdirectories and reports anything unexpected. A missing
// DICOM directory is a diagnostic, not a failure: behavioral-only sessions
// are legitimate.
func ValidateSession(ref SessionRef) (Report, error) {
	entries, err := os.ReadDir(ref.Path)
	if err != nil {
		return Report{}, fmt.Errorf("read session %s: %w", ref.Path, err)
	}

	var report Report
	known := map[string]bool{}
	for _, entry := range entries {
		switch entry.Name() {
		case DicomDirName, BehavDirName, PhysioDirName:
			if !entry.IsDir() {
				report.Diagnostics = append(report.Diagnostics,
					fmt.Sprintf("%s: %s is not a directory", ref.Path, entry.Name()))
				continue
			}
			known[entry.Name()] = true
		default:
			report.Diagnostics = append(report.Diagnostics,
				fmt.Sprintf("%s: unexpected entry %s", ref.Path, entry.Name()))
		}
	}

	if len(known) == 0 {
		report.Diagnostics = append(report.Diagnostics,
			fmt.Sprintf("%s: no scanner subdirectories found", ref.Path))
		return report, nil
	}

	if known[DicomDirName] {
		empty, err := dirIsEmpty(filepath.Join(ref.Path, DicomDirName))
		if err != nil {
			return Report{}, err
		}
		if empty {
			report.Diagnostics = append(report.Diagnostics,
				fmt.Sprintf("%s: DICOM directory is empty", ref.Path))
		}
	}
	if !known[DicomDirName] {
		report.Diagnostics = append(report.Diagnostics,
			fmt.Sprintf("%s: no DICOM directory, imaging will be skipped", ref.Path))
	}
	if !known[BehavDirName] {
		report.Diagnostics = append(report.Diagnostics,
			fmt.Sprintf("%s: no %s directory", ref.Path, BehavDirName))
	}

	report.Passed = true
	return report, nil
}

func dirIsEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false, fmt.Errorf("read directory %s: %w", path, err)
	}
	return len(entries) == 0, nil
}
