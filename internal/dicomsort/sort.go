package dicomsort

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// readProtocolName is swapped in tests so fixtures need no real DICOM data.
var readProtocolName = func(path string) (string, error) {
	dataset, err := dicom.ParseFile(path, nil)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	element, err := dataset.FindElementByTag(tag.ProtocolName)
	if err != nil {
		return "", fmt.Errorf("%s has no ProtocolName: %w", path, err)
	}
	values := dicom.MustGetStrings(element.Value)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return "", fmt.Errorf("%s has empty ProtocolName", path)
	}
	return strings.TrimSpace(values[0]), nil
}

// Series is one protocol's worth of DICOM files after sorting.
type Series struct {
	Protocol string
	Dir      string
	Files    int
}

// BySeries moves every DICOM file under dicomDir into a subdirectory named
// after its protocol, slashes replaced so protocol names stay path-safe.
// Files already sorted into subdirectories are left in place, which makes a
// rerun over a half-sorted dump safe.
func BySeries(dicomDir string) ([]Series, error) {
	entries, err := os.ReadDir(dicomDir)
	if err != nil {
		return nil, fmt.Errorf("read DICOM directory %s: %w", dicomDir, err)
	}

	counts := map[string]int{}
	for _, entry := range entries {
		if entry.IsDir() {
			subdir := filepath.Join(dicomDir, entry.Name())
			n, err := countFiles(subdir)
			if err != nil {
				return nil, err
			}
			counts[entry.Name()] += n
			continue
		}
		path := filepath.Join(dicomDir, entry.Name())
		protocol, err := readProtocolName(path)
		if err != nil {
			return nil, err
		}
		seriesName := sanitizeProtocol(protocol)
		seriesDir := filepath.Join(dicomDir, seriesName)
		if err := os.MkdirAll(seriesDir, 0o755); err != nil {
			return nil, fmt.Errorf("create series directory %s: %w", seriesDir, err)
		}
		if err := os.Rename(path, filepath.Join(seriesDir, entry.Name())); err != nil {
			return nil, fmt.Errorf("move %s into series %s: %w", path, seriesName, err)
		}
		counts[seriesName]++
	}

	series := make([]Series, 0, len(counts))
	for name, n := range counts {
		series = append(series, Series{
			Protocol: name,
			Dir:      filepath.Join(dicomDir, name),
			Files:    n,
		})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Protocol < series[j].Protocol })
	return series, nil
}

func countFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read series directory %s: %w", dir, err)
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			n++
		}
	}
	return n, nil
}

func sanitizeProtocol(protocol string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_")
	return replacer.Replace(protocol)
}
