// Package logging wires log/slog with the console and JSON handlers used
// across rawbids. Components attach a standardized component attribute via
// NewComponentLogger; per-item context fields (item, stage, subject,
// correlation id) flow through WithContext.
package logging
