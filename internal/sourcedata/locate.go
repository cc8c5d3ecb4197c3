package sourcedata

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"rawbids/internal/bids"
)

// SessionRef points at one subject/session directory in the source tree.
type SessionRef struct {
	SubjectID    string
	SessionLabel string
	SessionTask  string
	Path         string
}

// Discover walks the source tree and returns every recognizable
// subject/session pair, sorted by subject then session. Directory entries
// that do not look like subjects or sessions are reported as diagnostics
// rather than errors so one stray folder cannot block a whole intake run.
func Discover(sourceDir string) ([]SessionRef, []string, error) {
	subjects, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, nil, fmt.Errorf("read source root %s: %w", sourceDir, err)
	}

	var refs []SessionRef
	var diagnostics []string
	for _, subject := range subjects {
		if !subject.IsDir() {
			continue
		}
		subjectID, err := bids.NormalizeSubjectID(subject.Name())
		if err != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("skipping %s: %v", subject.Name(), err))
			continue
		}
		subjectPath := filepath.Join(sourceDir, subject.Name())
		sessions, err := os.ReadDir(subjectPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read subject %s: %w", subjectPath, err)
		}
		for _, session := range sessions {
			if !session.IsDir() {
				continue
			}
			sess, err := bids.ParseSessionDir(session.Name())
			if err != nil {
				diagnostics = append(diagnostics, fmt.Sprintf("skipping %s/%s: %v", subject.Name(), session.Name(), err))
				continue
			}
			refs = append(refs, SessionRef{
				SubjectID:    subjectID,
				SessionLabel: sess.Day,
				SessionTask:  sess.Task,
				Path:         filepath.Join(subjectPath, session.Name()),
			})
		}
	}

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].SubjectID != refs[j].SubjectID {
			return refs[i].SubjectID < refs[j].SubjectID
		}
		return refs[i].SessionLabel < refs[j].SessionLabel
	})
	return refs, diagnostics, nil
}
