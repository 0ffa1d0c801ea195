// Package history implements the conversation record store for Verdict.
//
// Every judge tool invocation is logged as an immutable record keyed by
// session. The store is backed by SQLite (file or in-memory) and applies
// two cleanup policies: a per-session record cap enforced after every
// save, and a daily sweep that drops records older than the retention
// window. Task metadata piggybacks on this store (see internal/task), so
// the session id doubles as the task id on that path.
package history

import "time"

// Record is one logged tool interaction. Records are never mutated after
// insertion; they are only removed by cleanup or ClearSession.
type Record struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Source    string `json:"source"`
	Input     string `json:"input"`
	Output    string `json:"output"`
	Timestamp int64  `json:"timestamp"`

	// Seq is a monotonic insertion counter. Timestamps have second
	// resolution, so two records saved in the same second are otherwise
	// unorderable; cleanup and retrieval order by (timestamp, seq).
	Seq int64 `json:"-"`
}

// Stats holds aggregate store statistics.
type Stats struct {
	TotalRecords  int `json:"total_records"`
	TotalSessions int `json:"total_sessions"`
}

// Store defines the persistence contract for conversation records.
// Abstracted for testability (DIP) — tools and the task manager depend
// on this interface, not on the SQLite implementation.
type Store interface {
	// Save inserts a record with a fresh id and current timestamp, then
	// runs per-session bounded cleanup and, at most once per 24h, the
	// global age-based cleanup. Returns the new record's id.
	Save(sessionID, source, input, output string) (string, error)

	// SessionRecords returns up to limit records for the session,
	// newest first. limit <= 0 returns all records for the session.
	// A session with no records yields an empty slice, not an error.
	SessionRecords(sessionID string, limit int) ([]Record, error)

	// Record returns the record with the given id, or nil if absent.
	Record(id string) (*Record, error)

	// ClearSession removes every record for the session and returns
	// the number removed.
	ClearSession(sessionID string) (int, error)

	// Stats returns record and session counts across all sessions.
	Stats() (Stats, error)

	Close() error
}

// timeNow is a package-level variable for testability.
// Tests can replace this to control time in assertions.
var timeNow = time.Now
