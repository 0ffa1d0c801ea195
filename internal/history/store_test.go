package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T, cfg Config) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func restoreTime(t *testing.T) {
	t.Helper()
	orig := timeNow
	t.Cleanup(func() { timeNow = orig })
}

// --- Save / Record ---

func TestSave_ReturnsRetrievableRecord(t *testing.T) {
	s := testStore(t, DefaultConfig())

	id, err := s.Save("session-1", "judge_coding_plan", "the plan", "approved")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == "" {
		t.Fatal("Save returned empty id")
	}

	r, err := s.Record(id)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if r == nil {
		t.Fatal("Record returned nil for existing id")
	}
	if r.SessionID != "session-1" {
		t.Errorf("SessionID = %q, want session-1", r.SessionID)
	}
	if r.Source != "judge_coding_plan" {
		t.Errorf("Source = %q, want judge_coding_plan", r.Source)
	}
	if r.Input != "the plan" || r.Output != "approved" {
		t.Errorf("Input/Output = %q/%q, want the plan/approved", r.Input, r.Output)
	}
	if r.Timestamp == 0 {
		t.Error("Timestamp should be set")
	}
}

func TestSave_AssignsUniqueIDs(t *testing.T) {
	s := testStore(t, DefaultConfig())

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		id, err := s.Save("s", "tool", "in", "out")
		if err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestRecord_NotFoundReturnsNil(t *testing.T) {
	s := testStore(t, DefaultConfig())

	r, err := s.Record("no-such-id")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if r != nil {
		t.Errorf("Record for missing id = %+v, want nil", r)
	}
}

// --- Bounded per-session cleanup ---

func TestSave_EnforcesSessionCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSessionRecords = 3
	s := testStore(t, cfg)

	for i := 0; i < 5; i++ {
		if _, err := s.Save("s", fmt.Sprintf("tool_%d", i), "in", "out"); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	records, err := s.SessionRecords("s", 0)
	if err != nil {
		t.Fatalf("SessionRecords: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	// Newest first: tool_4, tool_3, tool_2. tool_0 and tool_1 evicted.
	want := []string{"tool_4", "tool_3", "tool_2"}
	for i, w := range want {
		if records[i].Source != w {
			t.Errorf("records[%d].Source = %q, want %q", i, records[i].Source, w)
		}
	}
}

func TestSave_SameSecondEvictionUsesInsertionOrder(t *testing.T) {
	restoreTime(t)
	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return frozen }

	cfg := DefaultConfig()
	cfg.MaxSessionRecords = 2
	s := testStore(t, cfg)

	// All records share one timestamp; the seq tie-break must evict
	// the earliest-inserted ones.
	for i := 0; i < 4; i++ {
		if _, err := s.Save("s", fmt.Sprintf("tool_%d", i), "in", "out"); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	records, err := s.SessionRecords("s", 0)
	if err != nil {
		t.Fatalf("SessionRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Source != "tool_3" || records[1].Source != "tool_2" {
		t.Errorf("retained = [%s, %s], want [tool_3, tool_2]",
			records[0].Source, records[1].Source)
	}
}

func TestSave_CleanupIsSessionIsolated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSessionRecords = 2
	s := testStore(t, cfg)

	// Interleave saves across two sessions.
	for i := 0; i < 4; i++ {
		if _, err := s.Save("a", fmt.Sprintf("a_%d", i), "in", "out"); err != nil {
			t.Fatalf("Save a_%d: %v", i, err)
		}
		if _, err := s.Save("b", fmt.Sprintf("b_%d", i), "in", "out"); err != nil {
			t.Fatalf("Save b_%d: %v", i, err)
		}
	}

	for _, session := range []string{"a", "b"} {
		records, err := s.SessionRecords(session, 0)
		if err != nil {
			t.Fatalf("SessionRecords(%s): %v", session, err)
		}
		if len(records) != 2 {
			t.Errorf("session %s has %d records, want 2", session, len(records))
		}
		for _, r := range records {
			if r.SessionID != session {
				t.Errorf("session %s contains record from %s", session, r.SessionID)
			}
		}
	}
}

// --- SessionRecords ---

func TestSessionRecords_LimitCapsResults(t *testing.T) {
	s := testStore(t, DefaultConfig())

	for i := 0; i < 5; i++ {
		if _, err := s.Save("s", fmt.Sprintf("tool_%d", i), "in", "out"); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	records, err := s.SessionRecords("s", 2)
	if err != nil {
		t.Fatalf("SessionRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Source != "tool_4" || records[1].Source != "tool_3" {
		t.Errorf("got [%s, %s], want newest-first [tool_4, tool_3]",
			records[0].Source, records[1].Source)
	}
}

func TestSessionRecords_EmptySession(t *testing.T) {
	s := testStore(t, DefaultConfig())

	records, err := s.SessionRecords("ghost", 0)
	if err != nil {
		t.Fatalf("SessionRecords: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records for empty session, want 0", len(records))
	}
}

// --- ClearSession ---

func TestClearSession_RemovesOnlyThatSession(t *testing.T) {
	s := testStore(t, DefaultConfig())

	for i := 0; i < 3; i++ {
		_, _ = s.Save("a", "tool", "in", "out")
	}
	_, _ = s.Save("b", "tool", "in", "out")

	removed, err := s.ClearSession("a")
	if err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	b, _ := s.SessionRecords("b", 0)
	if len(b) != 1 {
		t.Errorf("session b has %d records after clearing a, want 1", len(b))
	}
}

// --- Age cleanup ---

func TestAgeCleanup_SkippedWithin24Hours(t *testing.T) {
	restoreTime(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return base }

	s := testStore(t, DefaultConfig())
	_, _ = s.Save("s", "tool_old", "in", "out")

	// 23h later: records are older than nothing yet, and the sweep must
	// not have fired regardless.
	timeNow = func() time.Time { return base.Add(23 * time.Hour) }
	_, _ = s.Save("s", "tool_new", "in", "out")

	records, _ := s.SessionRecords("s", 0)
	if len(records) != 2 {
		t.Errorf("got %d records, want 2 (no age sweep within 24h)", len(records))
	}
}

func TestAgeCleanup_RemovesExpiredRecordsAfter24Hours(t *testing.T) {
	restoreTime(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return base }

	s := testStore(t, DefaultConfig()) // retention 1 day
	_, _ = s.Save("s", "tool_old", "in", "out")

	// 25h later the sweep is due, and the old record exceeds retention.
	timeNow = func() time.Time { return base.Add(25 * time.Hour) }
	if _, err := s.Save("s", "tool_new", "in", "out"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	records, _ := s.SessionRecords("s", 0)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 after age sweep", len(records))
	}
	if records[0].Source != "tool_new" {
		t.Errorf("survivor = %s, want tool_new", records[0].Source)
	}
}

func TestAgeCleanup_OnlyFiresOnSave(t *testing.T) {
	restoreTime(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return base }

	s := testStore(t, DefaultConfig())
	_, _ = s.Save("s", "tool_old", "in", "out")

	// Reads after the window do not trigger the sweep.
	timeNow = func() time.Time { return base.Add(48 * time.Hour) }
	records, err := s.SessionRecords("s", 0)
	if err != nil {
		t.Fatalf("SessionRecords: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1 (reads never clean up)", len(records))
	}
}

// --- Stats ---

func TestStats_CountsRecordsAndSessions(t *testing.T) {
	s := testStore(t, DefaultConfig())

	_, _ = s.Save("a", "tool", "in", "out")
	_, _ = s.Save("a", "tool", "in", "out")
	_, _ = s.Save("b", "tool", "in", "out")

	st, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", st.TotalRecords)
	}
	if st.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", st.TotalSessions)
	}
}

// --- File-backed store ---

func TestFileBackedStore_PersistsAcrossReopen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = filepath.Join(t.TempDir(), "history.db")

	s, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	id, err := s.Save("s", "tool", "in", "out")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testStore(t, cfg)
	r, err := reopened.Record(id)
	if err != nil {
		t.Fatalf("Record after reopen: %v", err)
	}
	if r == nil {
		t.Fatal("record lost across reopen")
	}
}
