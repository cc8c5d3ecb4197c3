// Package behavior turns in-scanner task logs into BIDS events files and
// aggregates the post-rest rating responses.
//
// The scanner writes one CSV per run with a row per presentation event. Each
// row carries the event type, seconds from run start, and stimulus fields.
// Events extraction pairs onset and offset markers per trial type, so the
// output is a flat onset-sorted table regardless of how the log interleaved
// them.
package behavior
