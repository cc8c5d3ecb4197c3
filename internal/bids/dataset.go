package bids

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DatasetDescription is the dataset_description.json document at the rawdata
// root.
type DatasetDescription struct {
	Name        string   `json:"Name"`
	BIDSVersion string   `json:"BIDSVersion"`
	DatasetType string   `json:"DatasetType"`
	Authors     []string `json:"Authors,omitempty"`
	Funding     []string `json:"Funding,omitempty"`
}

const bidsVersion = "1.7.0"

const readmeText = `This rawdata tree was assembled from scanner exports by rawbids.

Each session carries anatomical, functional, fieldmap, behavioral, and
physiological files named according to the BIDS specification. Behavioral
events files are derived from the scanner task logs; physiological recordings
are BIOPAC exports kept alongside their text conversions.
`

// The .acq originals are not a BIDS-recognized format, so the validator is
// told to ignore them.
const bidsignoreText = "**/*.acq\n"

// EnsureDatasetFiles writes dataset_description.json, README, and .bidsignore
// at the rawdata root when they are missing. Existing files are left alone.
func EnsureDatasetFiles(rawDir, datasetName string) error {
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return fmt.Errorf("create rawdata root: %w", err)
	}

	descPath := filepath.Join(rawDir, "dataset_description.json")
	if _, err := os.Stat(descPath); os.IsNotExist(err) {
		desc := DatasetDescription{
			Name:        datasetName,
			BIDSVersion: bidsVersion,
			DatasetType: "raw",
		}
		payload, err := json.MarshalIndent(desc, "", "  ")
		if err != nil {
			return fmt.Errorf("encode dataset description: %w", err)
		}
		if err := os.WriteFile(descPath, append(payload, '\n'), 0o644); err != nil {
			return fmt.Errorf("write dataset description: %w", err)
		}
	}

	readmePath := filepath.Join(rawDir, "README")
	if _, err := os.Stat(readmePath); os.IsNotExist(err) {
		if err := os.WriteFile(readmePath, []byte(readmeText), 0o644); err != nil {
			return fmt.Errorf("write README: %w", err)
		}
	}

	ignorePath := filepath.Join(rawDir, ".bidsignore")
	if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(ignorePath, []byte(bidsignoreText), 0o644); err != nil {
			return fmt.Errorf("write .bidsignore: %w", err)
		}
	}

	return nil
}
