// Package sourcedata discovers, validates, and classifies scanner exports.
//
// The source tree has one directory per subject, one per session inside it,
// and the scanner drops DICOM series, behavioral CSVs, and BIOPAC recordings
// into fixed subdirectories. Nothing in here modifies the tree; the package
// produces a Manifest describing what a session contains plus diagnostics for
// everything it could not place.
package sourcedata
