package sourcedata

import (
	"encoding/json"
	"fmt"
)

// FileKind labels what the classifier decided a source file is.
type FileKind string

const (
	KindTaskEvents  FileKind = "task-events"
	KindRestRatings FileKind = "rest-ratings"
	KindPhysio      FileKind = "physio"
	KindUnknown     FileKind = "unknown"
)

// BehavioralFile is a classified scanner CSV.
type BehavioralFile struct {
	Path   string   `json:"path"`
	Kind   FileKind `json:"kind"`
	Task   string   `json:"task,omitempty"`
	Run    int      `json:"run,omitempty"`
	Date   string   `json:"date,omitempty"`
	Legacy bool     `json:"legacy,omitempty"`
}

// PhysioFile is a classified BIOPAC recording.
type PhysioFile struct {
	Path string `json:"path"`
	Task string `json:"task"`
	Run  int    `json:"run"`
}

// Manifest describes everything a session directory contains. It rides on the
// queue item between stages, so it must survive a JSON round trip.
type Manifest struct {
	SubjectID    string           `json:"subject_id"`
	SessionLabel string           `json:"session_label"`
	SessionTask  string           `json:"session_task"`
	SessionPath  string           `json:"session_path"`
	DicomDir     string           `json:"dicom_dir,omitempty"`
	Behavioral   []BehavioralFile `json:"behavioral,omitempty"`
	Physio       []PhysioFile     `json:"physio,omitempty"`
	Diagnostics  []string         `json:"diagnostics,omitempty"`
}

// HasImaging reports whether the session carries DICOM data to convert.
func (m *Manifest) HasImaging() bool {
	return m.DicomDir != ""
}

// Encode serializes the manifest for queue storage.
func (m *Manifest) Encode() (string, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	return string(payload), nil
}

// DecodeManifest restores a manifest from queue storage.
func DecodeManifest(payload string) (*Manifest, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty manifest payload")
	}
	var m Manifest
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
