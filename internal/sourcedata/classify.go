package sourcedata

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"rawbids/internal/bids"
)

// Classify inspects a validated session directory and builds its manifest.
// Matchers run in a fixed order per file: DICOM membership first, then the
// behavioral CSV patterns, then physio recordings; anything left over becomes
// a diagnostic.
func Classify(ref SessionRef) (*Manifest, error) {
	manifest := &Manifest{
		SubjectID:    ref.SubjectID,
		SessionLabel: ref.SessionLabel,
		SessionTask:  ref.SessionTask,
		SessionPath:  ref.Path,
	}

	dicomDir := filepath.Join(ref.Path, DicomDirName)
	if entries, err := os.ReadDir(dicomDir); err == nil {
		if len(entries) > 0 {
			manifest.DicomDir = dicomDir
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read DICOM directory %s: %w", dicomDir, err)
	}

	if err := classifyBehavioral(ref, manifest); err != nil {
		return nil, err
	}
	if err := classifyPhysio(ref, manifest); err != nil {
		return nil, err
	}

	collapseBehavioralVariants(manifest)
	return manifest, nil
}

func classifyBehavioral(ref SessionRef, manifest *Manifest) error {
	behavDir := filepath.Join(ref.Path, BehavDirName)
	entries, err := os.ReadDir(behavDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read behavioral directory %s: %w", behavDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(behavDir, entry.Name())
		file, diag := parseBehavioralName(entry.Name())
		if diag != "" {
			manifest.Diagnostics = append(manifest.Diagnostics, fmt.Sprintf("%s: %s", path, diag))
			continue
		}
		if file.Kind == KindTaskEvents && file.Task != ref.SessionTask {
			manifest.Diagnostics = append(manifest.Diagnostics,
				fmt.Sprintf("%s: task %s does not match session task %s", path, file.Task, ref.SessionTask))
			continue
		}
		file.Path = path
		manifest.Behavioral = append(manifest.Behavioral, file)
	}
	sort.Slice(manifest.Behavioral, func(i, j int) bool {
		a, b := manifest.Behavioral[i], manifest.Behavioral[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Run < b.Run
	})
	return nil
}

// parseBehavioralName recognizes the two generations of scanner CSV names.
// The current form embeds BIDS-style identifiers:
//
//	emorep_scannermovieData_sub-ER0009_ses-day2_run-1_04082022.csv
//
// while files written before the 2022 template change use bare identifiers
// and an undashed run token:
//
//	emorep_scannermovieData_ER0009_day2_run1_04082022.csv
//
// Rest rating exports drop the run field entirely.
func parseBehavioralName(name string) (BehavioralFile, string) {
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return BehavioralFile{}, "not a csv file"
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	fields := strings.Split(stem, "_")

	switch len(fields) {
	case 6:
		task, ok := taskForDataType(fields[1])
		if !ok {
			return BehavioralFile{}, fmt.Sprintf("unknown data type %q", fields[1])
		}
		if _, err := bids.NormalizeSubjectID(fields[2]); err != nil {
			return BehavioralFile{}, err.Error()
		}
		if _, err := bids.NormalizeSessionLabel(fields[3]); err != nil {
			return BehavioralFile{}, err.Error()
		}
		run, err := parseRunToken(fields[4])
		if err != nil {
			return BehavioralFile{}, err.Error()
		}
		date, err := parseExportDate(fields[5])
		if err != nil {
			return BehavioralFile{}, err.Error()
		}
		return BehavioralFile{
			Kind:   KindTaskEvents,
			Task:   task,
			Run:    run,
			Date:   date,
			Legacy: !strings.HasPrefix(fields[2], "sub-"),
		}, ""
	case 5:
		if !strings.Contains(fields[1], "RestRating") {
			return BehavioralFile{}, fmt.Sprintf("unknown data type %q", fields[1])
		}
		if _, err := bids.NormalizeSubjectID(fields[2]); err != nil {
			return BehavioralFile{}, err.Error()
		}
		if _, err := bids.NormalizeSessionLabel(fields[3]); err != nil {
			return BehavioralFile{}, err.Error()
		}
		date, err := parseExportDate(fields[4])
		if err != nil {
			return BehavioralFile{}, err.Error()
		}
		return BehavioralFile{
			Kind:   KindRestRatings,
			Date:   date,
			Legacy: !strings.HasPrefix(fields[2], "sub-"),
		}, ""
	default:
		return BehavioralFile{}, fmt.Sprintf("unrecognized behavioral filename with %d fields", len(fields))
	}
}

func classifyPhysio(ref SessionRef, manifest *Manifest) error {
	physioDir := filepath.Join(ref.Path, PhysioDirName)
	entries, err := os.ReadDir(physioDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read physio directory %s: %w", physioDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(physioDir, entry.Name())
		file, diag := parsePhysioName(entry.Name(), ref.SessionTask)
		if diag != "" {
			manifest.Diagnostics = append(manifest.Diagnostics, fmt.Sprintf("%s: %s", path, diag))
			continue
		}
		file.Path = path
		manifest.Physio = append(manifest.Physio, file)
	}
	sort.Slice(manifest.Physio, func(i, j int) bool {
		a, b := manifest.Physio[i], manifest.Physio[j]
		if a.Task != b.Task {
			return a.Task < b.Task
		}
		return a.Run < b.Run
	})
	return nil
}

// parsePhysioName recognizes BIOPAC recording names. Task recordings carry a
// run token, e.g. ER0009_physio_day2_run1.acq, with "physio" and the day
// occasionally swapped by the scan operator. A recording without a run token
// is the resting-state acquisition.
func parsePhysioName(name, sessionTask string) (PhysioFile, string) {
	if !strings.EqualFold(filepath.Ext(name), ".acq") {
		return PhysioFile{}, "not an acq file"
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	fields := strings.Split(stem, "_")
	if len(fields) < 3 || len(fields) > 4 {
		return PhysioFile{}, fmt.Sprintf("unrecognized physio filename with %d fields", len(fields))
	}
	if _, err := bids.NormalizeSubjectID(fields[0]); err != nil {
		return PhysioFile{}, err.Error()
	}
	rest := fields[1:]
	var sawPhysio, sawDay bool
	var runToken string
	for _, field := range rest {
		switch {
		case field == "physio":
			sawPhysio = true
		case strings.HasPrefix(field, "day"):
			sawDay = true
		case strings.HasPrefix(field, "run"):
			runToken = field
		default:
			return PhysioFile{}, fmt.Sprintf("unrecognized physio field %q", field)
		}
	}
	if !sawPhysio || !sawDay {
		return PhysioFile{}, "physio filename missing physio or day token"
	}
	if runToken == "" {
		return PhysioFile{Task: bids.TaskRest, Run: 1}, ""
	}
	run, err := parseRunToken(runToken)
	if err != nil {
		return PhysioFile{}, err.Error()
	}
	return PhysioFile{Task: sessionTask, Run: run}, ""
}

// collapseBehavioralVariants drops a legacy-named file when a current-form
// file describes the same run. Two files of the same generation for one run
// is a real conflict and stays visible as a diagnostic.
func collapseBehavioralVariants(manifest *Manifest) {
	type key struct {
		kind FileKind
		task string
		run  int
	}
	byKey := map[key][]int{}
	for i, file := range manifest.Behavioral {
		k := key{kind: file.Kind, task: file.Task, run: file.Run}
		byKey[k] = append(byKey[k], i)
	}

	drop := map[int]bool{}
	for _, indexes := range byKey {
		if len(indexes) < 2 {
			continue
		}
		var current, legacy []int
		for _, i := range indexes {
			if manifest.Behavioral[i].Legacy {
				legacy = append(legacy, i)
			} else {
				current = append(current, i)
			}
		}
		if len(current) >= 1 && len(legacy) >= 1 {
			for _, i := range legacy {
				drop[i] = true
				manifest.Diagnostics = append(manifest.Diagnostics,
					fmt.Sprintf("%s: superseded by current-form export", manifest.Behavioral[i].Path))
			}
		}
		if len(current) > 1 || (len(current) == 0 && len(legacy) > 1) {
			manifest.Diagnostics = append(manifest.Diagnostics,
				fmt.Sprintf("conflicting behavioral exports for task %s run %d",
					manifest.Behavioral[indexes[0]].Task, manifest.Behavioral[indexes[0]].Run))
		}
	}
	if len(drop) == 0 {
		return
	}
	kept := manifest.Behavioral[:0]
	for i, file := range manifest.Behavioral {
		if !drop[i] {
			kept = append(kept, file)
		}
	}
	manifest.Behavioral = kept
}

func taskForDataType(dataType string) (string, bool) {
	switch dataType {
	case "scannermovieData":
		return bids.TaskMovies, true
	case "scannertextData":
		return bids.TaskScenarios, true
	default:
		return "", false
	}
}

func parseRunToken(token string) (int, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(token, "run"), "-")
	run, err := strconv.Atoi(digits)
	if err != nil || run <= 0 {
		return 0, fmt.Errorf("malformed run token %q", token)
	}
	return run, nil
}

// parseExportDate converts the scanner's MMDDYYYY stamp to ISO form.
func parseExportDate(token string) (string, error) {
	if len(token) != 8 {
		return "", fmt.Errorf("malformed date %q", token)
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("malformed date %q", token)
		}
	}
	month, day, year := token[0:2], token[2:4], token[4:8]
	return fmt.Sprintf("%s-%s-%s", year, month, day), nil
}
