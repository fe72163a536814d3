// Package store persists invocation traces in SQLite.
//
// A trace is grouped into runs. Each run holds the settled subevents the
// engine resolved and the effect applications recorded while propagating
// them. Store implements engine.Recorder for the run most recently begun.
//
// Documents are stored as canonical JSON together with their domain hash,
// so two runs that settle on the same subevent produce identical rows.
// Writes are idempotent: replaying a record with an existing key is a no-op.
//
// Reads return records ordered by seq, with the record id as tiebreak, and
// never return nil slices.
package store
