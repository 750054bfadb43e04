package store

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpenAndClose(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close on nil db should not error: %v", err)
	}
}

func TestBeginAndGetSession(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	startedAt := time.Now().Unix()
	id, err := s.BeginSession("sketch", startedAt)
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}
	if id <= 0 {
		t.Error("expected positive session ID")
	}

	retrieved, err := s.GetSession(id)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if retrieved == nil {
		t.Fatal("GetSession returned nil")
	}

	if retrieved.Tool != "sketch" {
		t.Errorf("Tool mismatch: expected sketch, got %s", retrieved.Tool)
	}
	if retrieved.StartedAt != startedAt {
		t.Errorf("StartedAt mismatch: expected %d, got %d", startedAt, retrieved.StartedAt)
	}
	if retrieved.EndedAt != nil {
		t.Error("expected nil EndedAt for open session")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	sess, err := s.GetSession(99999)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess != nil {
		t.Error("expected nil for nonexistent session")
	}
}

func TestEndSession(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	id, err := s.BeginSession("cli", 1000)
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}

	if err := s.EndSession(id, 2000); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	retrieved, err := s.GetSession(id)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if retrieved.EndedAt == nil {
		t.Fatal("expected EndedAt after EndSession")
	}
	if *retrieved.EndedAt != 2000 {
		t.Errorf("expected EndedAt 2000, got %d", *retrieved.EndedAt)
	}
}

func TestEndSessionNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	err = s.EndSession(99999, time.Now().Unix())
	if err == nil {
		t.Error("expected error for nonexistent session")
	}
}

func TestActiveSession(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	first, _ := s.BeginSession("sketch", 1000)
	second, _ := s.BeginSession("sketch", 2000)

	active, err := s.ActiveSession()
	if err != nil {
		t.Fatalf("ActiveSession failed: %v", err)
	}
	if active == nil {
		t.Fatal("expected active session")
	}
	if active.ID != second {
		t.Errorf("expected most recent session %d, got %d", second, active.ID)
	}

	if err := s.EndSession(second, 2500); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	active, err = s.ActiveSession()
	if err != nil {
		t.Fatalf("ActiveSession failed: %v", err)
	}
	if active == nil || active.ID != first {
		t.Error("expected earlier session to become active")
	}

	if err := s.EndSession(first, 3000); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	active, err = s.ActiveSession()
	if err != nil {
		t.Fatalf("ActiveSession failed: %v", err)
	}
	if active != nil {
		t.Error("expected no active session after all ended")
	}
}

func TestListSessions(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	for i := 0; i < 5; i++ {
		if _, err := s.BeginSession("sketch", int64(1000+i*100)); err != nil {
			t.Fatalf("BeginSession failed: %v", err)
		}
	}

	all, err := s.ListSessions(0)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 sessions, got %d", len(all))
	}
	if all[0].StartedAt != 1400 {
		t.Errorf("expected newest session first, got started_at %d", all[0].StartedAt)
	}
	if all[4].StartedAt != 1000 {
		t.Errorf("expected oldest session last, got started_at %d", all[4].StartedAt)
	}

	recent, err := s.ListSessions(2)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(recent))
	}
	if len(recent) == 2 && recent[0].StartedAt != 1400 {
		t.Errorf("expected newest session first, got started_at %d", recent[0].StartedAt)
	}
}

func TestInsertAndGetCommits(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	session, err := s.BeginSession("sketch", 1000)
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		c := &Commit{
			Session:     session,
			StrokeID:    int32(i + 1),
			SampleCount: int32(10 * (i + 1)),
			MirrorCount: 2,
			ByteSize:    int64(256 * (i + 1)),
			ContentHash: [32]byte{byte(i + 1), 0xbe, 0xef},
			CreatedAt:   int64(1100 + i*10),
		}
		if err := s.InsertCommit(c); err != nil {
			t.Fatalf("InsertCommit failed: %v", err)
		}
	}

	commits, err := s.GetCommits(session)
	if err != nil {
		t.Fatalf("GetCommits failed: %v", err)
	}
	if len(commits) != 3 {
		t.Fatalf("expected 3 commits, got %d", len(commits))
	}

	// Verify commit order and values
	if commits[0].StrokeID != 1 || commits[2].StrokeID != 3 {
		t.Error("expected commits in created_at order")
	}
	if commits[1].SampleCount != 20 {
		t.Errorf("SampleCount mismatch: expected 20, got %d", commits[1].SampleCount)
	}
	if commits[0].ContentHash != ([32]byte{1, 0xbe, 0xef}) {
		t.Error("ContentHash mismatch")
	}
}

func TestInsertCommitDuplicateStroke(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	session, _ := s.BeginSession("sketch", 1000)

	c := &Commit{Session: session, StrokeID: 1, SampleCount: 5, ByteSize: 100, CreatedAt: 1100}
	if err := s.InsertCommit(c); err != nil {
		t.Fatalf("InsertCommit failed: %v", err)
	}

	if err := s.InsertCommit(c); err == nil {
		t.Error("expected error for duplicate (session, stroke_id)")
	}
}

func TestInsertCommitForeignKey(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	c := &Commit{Session: 99999, StrokeID: 1, SampleCount: 5, ByteSize: 100, CreatedAt: 1100}
	if err := s.InsertCommit(c); err == nil {
		t.Error("expected foreign key error for nonexistent session")
	}
}

func TestInsertCommitsBatch(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	session, _ := s.BeginSession("sketch", 1000)

	commits := make([]Commit, 10)
	for i := range commits {
		commits[i] = Commit{
			Session:     session,
			StrokeID:    int32(i + 1),
			SampleCount: 4,
			ByteSize:    128,
			CreatedAt:   int64(1100 + i),
		}
	}

	if err := s.InsertCommits(commits); err != nil {
		t.Fatalf("InsertCommits failed: %v", err)
	}

	n, err := s.CountCommits(session)
	if err != nil {
		t.Fatalf("CountCommits failed: %v", err)
	}
	if n != 10 {
		t.Errorf("expected 10 commits, got %d", n)
	}
}

func TestInsertCommitsBatchRollback(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	session, _ := s.BeginSession("sketch", 1000)

	// Duplicate stroke ID inside the batch fails the transaction
	commits := []Commit{
		{Session: session, StrokeID: 1, CreatedAt: 1100},
		{Session: session, StrokeID: 1, CreatedAt: 1101},
	}

	if err := s.InsertCommits(commits); err == nil {
		t.Fatal("expected batch insert to fail")
	}

	n, err := s.CountCommits(session)
	if err != nil {
		t.Fatalf("CountCommits failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected rollback to leave 0 commits, got %d", n)
	}
}

func TestCountCommitsEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	session, _ := s.BeginSession("sketch", 1000)

	n, err := s.CountCommits(session)
	if err != nil {
		t.Fatalf("CountCommits failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 commits, got %d", n)
	}
}

func TestLastCommit(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	last, err := s.LastCommit()
	if err != nil {
		t.Fatalf("LastCommit failed: %v", err)
	}
	if last != nil {
		t.Error("expected nil for empty archive")
	}

	first, _ := s.BeginSession("sketch", 1000)
	second, _ := s.BeginSession("sketch", 2000)

	s.InsertCommit(&Commit{Session: first, StrokeID: 1, CreatedAt: 1100})
	s.InsertCommit(&Commit{Session: second, StrokeID: 1, CreatedAt: 2100})
	s.InsertCommit(&Commit{Session: first, StrokeID: 2, CreatedAt: 1200})

	last, err = s.LastCommit()
	if err != nil {
		t.Fatalf("LastCommit failed: %v", err)
	}
	if last == nil {
		t.Fatal("expected commit, got nil")
	}
	if last.Session != second || last.StrokeID != 1 {
		t.Errorf("expected newest commit across sessions, got session %d stroke %d", last.Session, last.StrokeID)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkInsertCommit(b *testing.B) {
	tmpDir := b.TempDir()
	s, err := Open(filepath.Join(tmpDir, "bench.db"))
	if err != nil {
		b.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	session, err := s.BeginSession("bench", time.Now().Unix())
	if err != nil {
		b.Fatalf("BeginSession failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := &Commit{
			Session:     session,
			StrokeID:    int32(i + 1),
			SampleCount: 16,
			ByteSize:    512,
			CreatedAt:   int64(i),
		}
		s.InsertCommit(c)
	}
}

func BenchmarkGetCommits(b *testing.B) {
	tmpDir := b.TempDir()
	s, err := Open(filepath.Join(tmpDir, "bench.db"))
	if err != nil {
		b.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	session, _ := s.BeginSession("bench", time.Now().Unix())
	commits := make([]Commit, 1000)
	for i := range commits {
		commits[i] = Commit{Session: session, StrokeID: int32(i + 1), CreatedAt: int64(i)}
	}
	s.InsertCommits(commits)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.GetCommits(session)
	}
}
