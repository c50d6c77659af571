// Package marks remembers, per log file, where the viewer was and which
// lines the user bookmarked.
package marks

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS positions (
    file TEXT PRIMARY KEY,
    pos INTEGER NOT NULL,
    size INTEGER NOT NULL,
    updated INTEGER NOT NULL          -- UnixNano
);

CREATE TABLE IF NOT EXISTS marks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file TEXT NOT NULL,
    pos INTEGER NOT NULL,
    label TEXT NOT NULL DEFAULT '',
    created INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_marks_file_offset ON marks(file, pos);
`

// Position is the remembered viewpoint of a file.
type Position struct {
	Offset  int64
	Size    int64
	Updated time.Time
}

// Mark is a bookmarked line start.
type Mark struct {
	ID      int64
	Offset  int64
	Label   string
	Created time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Key identifies a source by its absolute paths.
func Key(paths ...string) string {
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		if resolved, err := filepath.Abs(p); err == nil {
			p = resolved
		}
		abs = append(abs, p)
	}
	return strings.Join(abs, "\x00")
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create marks dir: %w", err)
	}

	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(2000)" +
		"&_pragma=temp_store(MEMORY)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open marks db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create marks schema: %w", err)
	}
	var version int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version > schemaVersion:
		return fmt.Errorf("marks db schema %d is newer than supported %d", version, schemaVersion)
	default:
		return nil
	}
	if _, err := db.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("update schema version: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveViewpoint records the viewpoint of file and the file size it was
// measured against.
func (s *Store) SaveViewpoint(file string, offset, size int64) error {
	_, err := s.db.Exec(`
INSERT INTO positions (file, pos, size, updated) VALUES (?, ?, ?, ?)
ON CONFLICT(file) DO UPDATE SET pos = excluded.pos, size = excluded.size, updated = excluded.updated`,
		file, offset, size, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("save viewpoint: %w", err)
	}
	return nil
}

// Viewpoint returns the remembered position of file; ok is false when none
// is stored.
func (s *Store) Viewpoint(file string) (pos Position, ok bool, err error) {
	var updated int64
	err = s.db.QueryRow("SELECT pos, size, updated FROM positions WHERE file = ?", file).
		Scan(&pos.Offset, &pos.Size, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, fmt.Errorf("load viewpoint: %w", err)
	}
	pos.Updated = time.Unix(0, updated)
	return pos, true, nil
}

// AddMark bookmarks offset. Marking the same offset twice updates the label.
func (s *Store) AddMark(file string, offset int64, label string) (Mark, error) {
	created := s.now()
	_, err := s.db.Exec(`
INSERT INTO marks (file, pos, label, created) VALUES (?, ?, ?, ?)
ON CONFLICT(file, pos) DO UPDATE SET label = excluded.label`,
		file, offset, label, created.UnixNano())
	if err != nil {
		return Mark{}, fmt.Errorf("add mark: %w", err)
	}
	var m Mark
	var ts int64
	err = s.db.QueryRow("SELECT id, pos, label, created FROM marks WHERE file = ? AND pos = ?", file, offset).
		Scan(&m.ID, &m.Offset, &m.Label, &ts)
	if err != nil {
		return Mark{}, fmt.Errorf("add mark: %w", err)
	}
	m.Created = time.Unix(0, ts)
	return m, nil
}

// Marks lists the bookmarks of file by offset.
func (s *Store) Marks(file string) ([]Mark, error) {
	rows, err := s.db.Query("SELECT id, pos, label, created FROM marks WHERE file = ? ORDER BY pos", file)
	if err != nil {
		return nil, fmt.Errorf("list marks: %w", err)
	}
	defer rows.Close()

	var out []Mark
	for rows.Next() {
		var m Mark
		var ts int64
		if err := rows.Scan(&m.ID, &m.Offset, &m.Label, &ts); err != nil {
			return nil, fmt.Errorf("scan mark: %w", err)
		}
		m.Created = time.Unix(0, ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMark removes a bookmark; deleting a missing one is not an error.
func (s *Store) DeleteMark(file string, id int64) error {
	if _, err := s.db.Exec("DELETE FROM marks WHERE file = ? AND id = ?", file, id); err != nil {
		return fmt.Errorf("delete mark: %w", err)
	}
	return nil
}

// Forget drops everything stored for file.
func (s *Store) Forget(file string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("forget %s: %w", file, err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM positions WHERE file = ?", file); err != nil {
		return fmt.Errorf("forget %s: %w", file, err)
	}
	if _, err := tx.Exec("DELETE FROM marks WHERE file = ?", file); err != nil {
		return fmt.Errorf("forget %s: %w", file, err)
	}
	return tx.Commit()
}
