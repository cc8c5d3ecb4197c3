// Package queue persists the per-session processing ledger in SQLite.
//
// Each queue item is one subject/session directory moving through the
// pipeline. The manifest produced by classification rides on the item as
// JSON so later stages need no re-discovery, and diagnostics accumulate
// across stages for the end-of-run summary.
package queue
