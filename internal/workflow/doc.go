// Package workflow coordinates the session pipeline: validation, DICOM
// conversion, behavioral organization, and fieldmap linking. The manager
// drives each queued session through its stages and records the outcome on
// the queue so interrupted runs resume where they stopped.
package workflow
