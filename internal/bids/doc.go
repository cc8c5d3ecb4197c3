// Package bids holds the pure naming rules for the rawdata tree.
//
// Everything here is deterministic string work: entity formatting, subject and
// session normalization, and the static files a BIDS dataset root carries.
// Filesystem traversal and tool execution live elsewhere; this package never
// touches disk except to write the dataset root files.
package bids
