package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Schema for the hpaint session archive.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at  INTEGER NOT NULL,
    ended_at    INTEGER,
    tool        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS commits (
    session       INTEGER NOT NULL REFERENCES sessions(id),
    stroke_id     INTEGER NOT NULL,
    sample_count  INTEGER NOT NULL,
    mirror_count  INTEGER NOT NULL,
    byte_size     INTEGER NOT NULL,
    content_hash  BLOB NOT NULL,
    created_at    INTEGER NOT NULL,
    PRIMARY KEY (session, stroke_id)
);

CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
CREATE INDEX IF NOT EXISTS idx_commits_created ON commits(created_at);
`

// Store represents the SQLite session archive.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and
// applies the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BeginSession inserts a new session and returns its ID.
func (s *Store) BeginSession(tool string, startedAt int64) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO sessions (started_at, tool)
		VALUES (?, ?)`,
		startedAt, tool,
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	return id, nil
}

// EndSession closes an open session by setting its end timestamp.
func (s *Store) EndSession(id int64, endedAt int64) error {
	result, err := s.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, endedAt, id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("session not found: %d", id)
	}

	return nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(id int64) (*Session, error) {
	var sess Session

	err := s.db.QueryRow(`
		SELECT id, started_at, ended_at, tool
		FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt, &sess.Tool)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	return &sess, nil
}

// ActiveSession returns the most recent session that has not ended.
func (s *Store) ActiveSession() (*Session, error) {
	var sess Session

	err := s.db.QueryRow(`
		SELECT id, started_at, ended_at, tool
		FROM sessions
		WHERE ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1`,
	).Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt, &sess.Tool)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active session: %w", err)
	}

	return &sess, nil
}

// ListSessions retrieves the most recent sessions, newest first. A
// limit of zero or less returns all of them.
func (s *Store) ListSessions(limit int) ([]Session, error) {
	query := `
		SELECT id, started_at, ended_at, tool
		FROM sessions
		ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt, &sess.Tool); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// InsertCommit inserts a single stroke commit.
func (s *Store) InsertCommit(c *Commit) error {
	_, err := s.db.Exec(`
		INSERT INTO commits (session, stroke_id, sample_count, mirror_count, byte_size, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Session, c.StrokeID, c.SampleCount, c.MirrorCount, c.ByteSize, c.ContentHash[:], c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert commit: %w", err)
	}

	return nil
}

// InsertCommits inserts a batch of commits in one transaction.
func (s *Store) InsertCommits(commits []Commit) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO commits (session, stroke_id, sample_count, mirror_count, byte_size, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range commits {
		if _, err := stmt.Exec(c.Session, c.StrokeID, c.SampleCount, c.MirrorCount, c.ByteSize, c.ContentHash[:], c.CreatedAt); err != nil {
			return fmt.Errorf("insert commit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetCommits retrieves a session's commits in commit order.
func (s *Store) GetCommits(session int64) ([]Commit, error) {
	rows, err := s.db.Query(`
		SELECT session, stroke_id, sample_count, mirror_count, byte_size, content_hash, created_at
		FROM commits
		WHERE session = ?
		ORDER BY created_at ASC, stroke_id ASC`, session,
	)
	if err != nil {
		return nil, fmt.Errorf("query commits: %w", err)
	}
	defer rows.Close()

	return scanCommits(rows)
}

// CountCommits returns the number of commits in a session.
func (s *Store) CountCommits(session int64) (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM commits WHERE session = ?`, session).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count commits: %w", err)
	}
	return n, nil
}

// CountSessions returns the total number of archived sessions.
func (s *Store) CountSessions() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// CountAllCommits returns the total number of commits across all
// sessions.
func (s *Store) CountAllCommits() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM commits`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count all commits: %w", err)
	}
	return n, nil
}

// LastCommit retrieves the most recent commit across all sessions.
func (s *Store) LastCommit() (*Commit, error) {
	rows, err := s.db.Query(`
		SELECT session, stroke_id, sample_count, mirror_count, byte_size, content_hash, created_at
		FROM commits
		ORDER BY created_at DESC
		LIMIT 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("query last commit: %w", err)
	}
	defer rows.Close()

	commits, err := scanCommits(rows)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, nil
	}
	return &commits[0], nil
}

// scanCommits is a helper to scan commit rows into a slice.
func scanCommits(rows *sql.Rows) ([]Commit, error) {
	var commits []Commit

	for rows.Next() {
		var c Commit
		var contentHash []byte

		if err := rows.Scan(&c.Session, &c.StrokeID, &c.SampleCount, &c.MirrorCount, &c.ByteSize, &contentHash, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}

		copy(c.ContentHash[:], contentHash)
		commits = append(commits, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}

	return commits, nil
}
