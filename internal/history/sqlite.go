package history

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Config holds store configuration.
type Config struct {
	// URL selects the backend: empty or ":memory:" for an in-memory
	// database, anything else is treated as a file path.
	URL string

	// MaxSessionRecords caps the number of records kept per session.
	MaxSessionRecords int

	// RetentionDays is the age bound for the daily global cleanup.
	RetentionDays int
}

// DefaultConfig returns the default store configuration: in-memory
// backend, 20 records per session, one-day retention.
func DefaultConfig() Config {
	return Config{
		URL:               "",
		MaxSessionRecords: 20,
		RetentionDays:     1,
	}
}

// SQLiteStore implements Store backed by modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config

	// lastAgeCleanup tracks the daily age sweep. Process-lifetime state:
	// it is reset at construction, so the first sweep happens no earlier
	// than 24h after startup. Guarded by mu because saves from
	// concurrent tool calls may race on the check.
	mu             sync.Mutex
	lastAgeCleanup int64
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.MaxSessionRecords <= 0 {
		cfg.MaxSessionRecords = DefaultConfig().MaxSessionRecords
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultConfig().RetentionDays
	}

	dsn := cfg.URL
	inMemory := dsn == "" || dsn == ":memory:"
	if inMemory {
		dsn = ":memory:"
	}

	db, err := openDB("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	if inMemory {
		// database/sql pools connections and each connection would get
		// its own private :memory: database. Pin to a single connection
		// so every statement sees the same data.
		db.SetMaxOpenConns(1)
	} else {
		pragmas := []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA synchronous = NORMAL",
		}
		for _, p := range pragmas {
			if _, err := db.Exec(p); err != nil {
				return nil, fmt.Errorf("history: pragma %q: %w", p, err)
			}
		}
	}

	s := &SQLiteStore{db: db, cfg: cfg, lastAgeCleanup: timeNow().Unix()}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("history: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversation_history (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT    NOT NULL UNIQUE,
			session_id TEXT    NOT NULL,
			source     TEXT    NOT NULL,
			input      TEXT    NOT NULL,
			output     TEXT    NOT NULL,
			timestamp  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_history_session
			ON conversation_history(session_id, timestamp DESC, seq DESC);
		CREATE INDEX IF NOT EXISTS idx_history_timestamp
			ON conversation_history(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save inserts a new record and runs both cleanup policies.
func (s *SQLiteStore) Save(sessionID, source, input, output string) (string, error) {
	recordID := uuid.NewString()
	ts := timeNow().Unix()

	_, err := s.db.Exec(
		`INSERT INTO conversation_history (id, session_id, source, input, output, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		recordID, sessionID, source, input, output, ts,
	)
	if err != nil {
		return "", fmt.Errorf("history: insert record: %w", err)
	}

	// Per-session bounded cleanup runs unconditionally on every save.
	if _, err := s.cleanupSession(sessionID); err != nil {
		return "", fmt.Errorf("history: session cleanup: %w", err)
	}

	// Age cleanup runs opportunistically, at most once per 24h. If no
	// writes occur, it never fires; deliberate simplification — there is
	// no background timer.
	if _, err := s.cleanupAged(); err != nil {
		return "", fmt.Errorf("history: age cleanup: %w", err)
	}

	return recordID, nil
}

// cleanupSession deletes the oldest records for a session until the
// per-session cap is respected. Oldest is (timestamp, seq) ascending,
// so same-second records evict in insertion order.
func (s *SQLiteStore) cleanupSession(sessionID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM conversation_history WHERE session_id = ?`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}

	excess := count - s.cfg.MaxSessionRecords
	if excess <= 0 {
		return 0, nil
	}

	res, err := s.db.Exec(
		`DELETE FROM conversation_history
		 WHERE seq IN (
			SELECT seq FROM conversation_history
			WHERE session_id = ?
			ORDER BY timestamp ASC, seq ASC
			LIMIT ?
		 )`,
		sessionID, excess,
	)
	if err != nil {
		return 0, err
	}
	removed, _ := res.RowsAffected()
	return int(removed), nil
}

// cleanupAged removes records older than the retention window across
// all sessions, at most once per rolling 24 hours.
func (s *SQLiteStore) cleanupAged() (int, error) {
	now := timeNow().Unix()

	s.mu.Lock()
	if now-s.lastAgeCleanup < 24*60*60 {
		s.mu.Unlock()
		return 0, nil
	}
	s.lastAgeCleanup = now
	s.mu.Unlock()

	cutoff := now - int64(s.cfg.RetentionDays)*24*60*60
	res, err := s.db.Exec(
		`DELETE FROM conversation_history WHERE timestamp < ?`, cutoff,
	)
	if err != nil {
		return 0, err
	}
	removed, _ := res.RowsAffected()
	return int(removed), nil
}

// SessionRecords returns up to limit records for a session, newest first.
func (s *SQLiteStore) SessionRecords(sessionID string, limit int) ([]Record, error) {
	query := `
		SELECT seq, id, session_id, source, input, output, timestamp
		FROM conversation_history
		WHERE session_id = ?
		ORDER BY timestamp DESC, seq DESC
	`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query session %q: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Seq, &r.ID, &r.SessionID, &r.Source, &r.Input, &r.Output, &r.Timestamp); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Record returns a single record by id, or nil if it does not exist.
func (s *SQLiteStore) Record(id string) (*Record, error) {
	row := s.db.QueryRow(
		`SELECT seq, id, session_id, source, input, output, timestamp
		 FROM conversation_history WHERE id = ?`, id,
	)
	var r Record
	err := row.Scan(&r.Seq, &r.ID, &r.SessionID, &r.Source, &r.Input, &r.Output, &r.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: get record %q: %w", id, err)
	}
	return &r, nil
}

// ClearSession removes all records for a session.
func (s *SQLiteStore) ClearSession(sessionID string) (int, error) {
	res, err := s.db.Exec(
		`DELETE FROM conversation_history WHERE session_id = ?`, sessionID,
	)
	if err != nil {
		return 0, fmt.Errorf("history: clear session %q: %w", sessionID, err)
	}
	removed, _ := res.RowsAffected()
	return int(removed), nil
}

// Stats returns aggregate counts for monitoring and the status tool.
func (s *SQLiteStore) Stats() (Stats, error) {
	var st Stats
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM conversation_history`,
	).Scan(&st.TotalRecords); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRow(
		`SELECT COUNT(DISTINCT session_id) FROM conversation_history`,
	).Scan(&st.TotalSessions); err != nil {
		return Stats{}, err
	}
	return st, nil
}
