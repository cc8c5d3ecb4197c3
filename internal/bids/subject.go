package bids

import (
	"fmt"
	"regexp"
	"strings"
)

var subjectPattern = regexp.MustCompile(`^ER\d{4}$`)

// NormalizeSubjectID maps the historical spellings of a subject identifier to
// the canonical ER-prefixed form: "sub-ER0009" and "ER0009" both become
// "ER0009".
func NormalizeSubjectID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	id = strings.TrimPrefix(id, "sub-")
	if !subjectPattern.MatchString(id) {
		return "", fmt.Errorf("unrecognized subject identifier %q", raw)
	}
	return id, nil
}
