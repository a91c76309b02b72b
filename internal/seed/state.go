package seed

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// StateDB tracks which program files have already been seeded so unchanged
// definitions are not re-sent, and remembers which program each file fed.
type StateDB struct {
	db *sql.DB
}

// SeedRecord is one state entry: a catalog file's fingerprint plus the
// program it seeded.
type SeedRecord struct {
	Path      string
	Size      int64
	Hash      string
	ProgramID string
	Phases    int
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS seeded_files (
		path       TEXT PRIMARY KEY,
		size       INTEGER NOT NULL,
		hash       TEXT NOT NULL,
		program_id TEXT NOT NULL DEFAULT '',
		phases     INTEGER NOT NULL DEFAULT 0,
		seeded_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// IsSeeded checks if a file was already seeded with the same size and hash.
func (s *StateDB) IsSeeded(relPath string, size int64, hash string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM seeded_files WHERE path = ? AND size = ? AND hash = ?`,
		relPath, size, hash,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkSeeded records a successfully seeded file and the program it carried.
func (s *StateDB) MarkSeeded(relPath string, size int64, hash, programID string, phases int) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO seeded_files (path, size, hash, program_id, phases) VALUES (?, ?, ?, ?, ?)`,
		relPath, size, hash, programID, phases,
	)
	return err
}

// Record returns the state entry for a file, or nil if it was never seeded.
func (s *StateDB) Record(relPath string) (*SeedRecord, error) {
	rec := SeedRecord{Path: relPath}
	err := s.db.QueryRow(
		`SELECT size, hash, program_id, phases FROM seeded_files WHERE path = ?`,
		relPath,
	).Scan(&rec.Size, &rec.Hash, &rec.ProgramID, &rec.Phases)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// HashFile computes the SHA-256 hash of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
