// Package services holds the external tool boundary: sentinel error markers
// shared by all stages, context carriers for correlation fields, and one
// subpackage per external binary (dcm2niix, afni, acq).
package services
