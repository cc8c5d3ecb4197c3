// Package fmap links fieldmap scans to the functional runs they correct.
//
// Each fieldmap's JSON sidecar gains an IntendedFor list naming the bold runs
// it covers, as paths relative to the subject directory. A per-subject
// override table replaces the default split policy entirely when present.
package fmap
