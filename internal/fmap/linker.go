package fmap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"rawbids/internal/bids"
)

// Result reports what linking did for one session.
type Result struct {
	Linked      bool
	IntendedFor map[string][]string
	Diagnostics []string
}

var (
	runPattern  = regexp.MustCompile(`_run-(\d+)_`)
	taskPattern = regexp.MustCompile(`_task-([a-zA-Z0-9]+)_`)
)

// Link computes the fieldmap association for one organized session and writes
// IntendedFor into each fieldmap sidecar. An override assignment is used
// verbatim; otherwise runs 1 through threshold go to the first fieldmap and
// everything else, resting-state included, to the second. Without an override
// the split is only defined for exactly two fieldmaps; any other count skips
// linking and leaves every sidecar untouched.
func Link(rawDir, subjectID, sessionLabel string, threshold int, overrides Overrides) (Result, error) {
	sessionDir := filepath.Join(rawDir, "sub-"+subjectID, "ses-"+sessionLabel)

	sidecars, err := sortedGlob(filepath.Join(sessionDir, string(bids.ModalityFmap), "*_epi.json"))
	if err != nil {
		return Result{}, err
	}
	bolds, err := sortedGlob(filepath.Join(sessionDir, string(bids.ModalityFunc), "*_bold.nii.gz"))
	if err != nil {
		return Result{}, err
	}

	if len(sidecars) == 0 {
		return Result{Diagnostics: []string{fmt.Sprintf("%s: no fieldmaps, linking skipped", sessionDir)}}, nil
	}
	if len(bolds) == 0 {
		return Result{Diagnostics: []string{fmt.Sprintf("%s: no functional runs, linking skipped", sessionDir)}}, nil
	}

	var groups [][]string
	if assignment, ok := overrides.Lookup(subjectID, sessionLabel); ok {
		groups = assignByOverride(bolds, assignment, len(sidecars))
	} else {
		if len(sidecars) != 2 {
			return Result{Diagnostics: []string{fmt.Sprintf(
				"%s: %d fieldmaps and no override, linking skipped", sessionDir, len(sidecars))}}, nil
		}
		groups = assignBySplit(bolds, threshold)
	}

	result := Result{Linked: true, IntendedFor: map[string][]string{}}
	for i, sidecar := range sidecars {
		// Always a list, even when empty; a null IntendedFor is invalid.
		intended := []string{}
		if i < len(groups) {
			for _, bold := range groups[i] {
				// IntendedFor is relative to the subject directory, forward
				// slashes per the BIDS specification.
				intended = append(intended,
					"ses-"+sessionLabel+"/"+string(bids.ModalityFunc)+"/"+filepath.Base(bold))
			}
		}
		if err := writeIntendedFor(sidecar, intended); err != nil {
			return Result{}, err
		}
		result.IntendedFor[filepath.Base(sidecar)] = intended
	}
	return result, nil
}

// assignBySplit orders task runs by run number with resting-state scans last,
// then cuts the list at the threshold.
func assignBySplit(bolds []string, threshold int) [][]string {
	ordered := append([]string(nil), bolds...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, resti := runKey(ordered[i])
		rj, restj := runKey(ordered[j])
		if resti != restj {
			return !resti
		}
		return ri < rj
	})
	if threshold > len(ordered) {
		threshold = len(ordered)
	}
	return [][]string{ordered[:threshold], ordered[threshold:]}
}

func assignByOverride(bolds []string, assignment Assignment, fieldmaps int) [][]string {
	groups := make([][]string, fieldmaps)
	for _, bold := range bolds {
		base := filepath.Base(bold)
		switch {
		case matchesAny(base, assignment.Fmap1):
			groups[0] = append(groups[0], bold)
		case fieldmaps > 1 && matchesAny(base, assignment.Fmap2):
			groups[1] = append(groups[1], bold)
		}
	}
	return groups
}

func matchesAny(name string, designators []string) bool {
	for _, d := range designators {
		if d != "" && strings.Contains(name, d) {
			return true
		}
	}
	return false
}

// runKey extracts the run number and whether the scan is resting-state.
func runKey(path string) (int, bool) {
	base := filepath.Base(path)
	rest := false
	if m := taskPattern.FindStringSubmatch(base); m != nil && m[1] == bids.TaskRest {
		rest = true
	}
	run := 0
	if m := runPattern.FindStringSubmatch(base); m != nil {
		run, _ = strconv.Atoi(m[1])
	}
	return run, rest
}

func writeIntendedFor(sidecarPath string, intended []string) error {
	payload, err := os.ReadFile(sidecarPath)
	if err != nil {
		return fmt.Errorf("read sidecar %s: %w", sidecarPath, err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return fmt.Errorf("parse sidecar %s: %w", sidecarPath, err)
	}
	fields["IntendedFor"] = intended
	updated, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar %s: %w", sidecarPath, err)
	}
	if err := os.WriteFile(sidecarPath, append(updated, '\n'), 0o644); err != nil {
		return fmt.Errorf("write sidecar %s: %w", sidecarPath, err)
	}
	return nil
}

func sortedGlob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
