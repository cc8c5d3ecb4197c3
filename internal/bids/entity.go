package bids

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Modality names the directory an imaging or recording file lands in.
type Modality string

const (
	ModalityAnat   Modality = "anat"
	ModalityFunc   Modality = "func"
	ModalityFmap   Modality = "fmap"
	ModalityBeh    Modality = "beh"
	ModalityPhysio Modality = "phys"
)

// Suffixes the pipeline emits. Anything else is a programming error.
const (
	SuffixT1w         = "T1w"
	SuffixBold        = "bold"
	SuffixEpi         = "epi"
	SuffixEvents      = "events"
	SuffixPhysio      = "physio"
	SuffixRestRatings = "rest-ratings"
)

var validSuffixes = map[string]struct{}{
	SuffixT1w:         {},
	SuffixBold:        {},
	SuffixEpi:         {},
	SuffixEvents:      {},
	SuffixPhysio:      {},
	SuffixRestRatings: {},
}

// Entity captures every naming component of a single rawdata file. Optional
// entities are empty strings; Run zero means no run entity.
type Entity struct {
	Subject     string
	Session     string
	Task        string
	Acquisition string
	Direction   string
	Run         int
	Recording   string
	Modality    Modality
	Suffix      string
	Extension   string
}

// Basename renders the filename. Entities appear in the fixed order
// sub, ses, task, acq, dir, run, recording followed by the suffix.
func (e Entity) Basename() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("sub-" + e.Subject)
	sb.WriteString("_ses-" + e.Session)
	if e.Task != "" {
		sb.WriteString("_task-" + e.Task)
	}
	if e.Acquisition != "" {
		sb.WriteString("_acq-" + e.Acquisition)
	}
	if e.Direction != "" {
		sb.WriteString("_dir-" + e.Direction)
	}
	if e.Run > 0 {
		fmt.Fprintf(&sb, "_run-%02d", e.Run)
	}
	if e.Recording != "" {
		sb.WriteString("_recording-" + e.Recording)
	}
	sb.WriteString("_" + e.Suffix)
	if e.Extension != "" {
		sb.WriteString(e.Extension)
	}
	return sb.String(), nil
}

// RelPath renders the path of the file relative to the rawdata root:
// sub-<ID>/ses-<label>/<modality>/<basename>.
func (e Entity) RelPath() (string, error) {
	base, err := e.Basename()
	if err != nil {
		return "", err
	}
	return filepath.Join("sub-"+e.Subject, "ses-"+e.Session, string(e.Modality), base), nil
}

// WithExtension returns a copy with a different extension, for sidecar
// companions of an image.
func (e Entity) WithExtension(ext string) Entity {
	e.Extension = ext
	return e
}

func (e Entity) check() error {
	if e.Subject == "" {
		return errors.New("entity missing subject")
	}
	if e.Session == "" {
		return errors.New("entity missing session")
	}
	if e.Modality == "" {
		return errors.New("entity missing modality")
	}
	if _, ok := validSuffixes[e.Suffix]; !ok {
		return fmt.Errorf("unknown suffix %q", e.Suffix)
	}
	if e.Run < 0 {
		return fmt.Errorf("negative run %d", e.Run)
	}
	return nil
}
