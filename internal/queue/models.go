package queue

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusValidating Status = "validating"
	StatusValidated  Status = "validated"
	StatusConverting Status = "converting"
	StatusConverted  Status = "converted"
	StatusOrganizing Status = "organizing"
	StatusOrganized  Status = "organized"
	StatusLinking    Status = "linking"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusValidating,
	StatusValidated,
	StatusConverting,
	StatusConverted,
	StatusOrganizing,
	StatusOrganized,
	StatusLinking,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusValidating: {},
	StatusConverting: {},
	StatusOrganizing: {},
	StatusLinking:    {},
}

// HealthSummary describes aggregated queue counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Item represents one subject/session persisted in SQLite.
type Item struct {
	ID              int64
	SubjectID       string
	SessionLabel    string
	SessionTask     string
	SourcePath      string
	Status          Status
	ErrorMessage    string
	ManifestJSON    string
	DiagnosticsJSON string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	_, ok := processingStatuses[i.Status]
	return ok
}

// IsTerminal reports whether the item has finished, successfully or not.
func (i Item) IsTerminal() bool {
	return i.Status == StatusCompleted || i.Status == StatusFailed
}

// SetFailed marks the item as failed with the given error message. Failed is
// absorbing: the workflow never retries an item on its own.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
}

// Diagnostics decodes the accumulated diagnostics list.
func (i Item) Diagnostics() []string {
	if i.DiagnosticsJSON == "" {
		return nil
	}
	var diags []string
	if err := json.Unmarshal([]byte(i.DiagnosticsJSON), &diags); err != nil {
		return []string{i.DiagnosticsJSON}
	}
	return diags
}

// AppendDiagnostics adds entries to the accumulated diagnostics list.
func (i *Item) AppendDiagnostics(diags ...string) {
	if len(diags) == 0 {
		return
	}
	merged := append(i.Diagnostics(), diags...)
	payload, err := json.Marshal(merged)
	if err != nil {
		return
	}
	i.DiagnosticsJSON = string(payload)
}

// Label returns the sub-/ses- identifier pair used in logs and summaries.
func (i Item) Label() string {
	return "sub-" + i.SubjectID + "/ses-" + i.SessionLabel
}
