package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Zuo-Peng/session-digest/internal/parse"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS sources (
    path      TEXT PRIMARY KEY,
    mtime     INTEGER NOT NULL DEFAULT 0,
    size      INTEGER NOT NULL DEFAULT 0,
    max_chars INTEGER NOT NULL DEFAULT 0,
    lines     INTEGER NOT NULL DEFAULT 0,
    records   INTEGER NOT NULL DEFAULT 0,
    first_ts  TEXT NOT NULL DEFAULT '',
    last_ts   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS records (
    path        TEXT NOT NULL,
    pos         INTEGER NOT NULL,
    role        TEXT NOT NULL,
    text        TEXT NOT NULL,
    ts          TEXT NOT NULL DEFAULT '',
    line_number INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (path, pos)
);

CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);
`

type DB struct {
	db *sql.DB
}

func OpenDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrateSchemaVersion(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return d, nil
}

// schemaVersion should be bumped whenever extraction logic changes
// to force every cached source to be parsed again.
const schemaVersion = "1"

func (d *DB) migrateSchemaVersion() error {
	var ver string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&ver)
	if err == nil && ver == schemaVersion {
		return nil
	}
	if _, err := d.db.Exec("UPDATE sources SET mtime = 0, size = 0"); err != nil {
		return err
	}
	_, err = d.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion)
	return err
}

func (d *DB) Close() error {
	return d.db.Close()
}

type SourceInfo struct {
	Mtime    int64
	Size     int64
	MaxChars int
}

func (d *DB) GetSourceInfo(path string) (*SourceInfo, error) {
	var info SourceInfo
	err := d.db.QueryRow(
		"SELECT mtime, size, max_chars FROM sources WHERE path = ?",
		path,
	).Scan(&info.Mtime, &info.Size, &info.MaxChars)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// StoreSession replaces everything cached for s.Meta.Path.
func (d *DB) StoreSession(s *parse.Session, maxChars int) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	path := s.Meta.Path
	if _, err := tx.Exec("DELETE FROM records WHERE path = ?", path); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM sources WHERE path = ?", path); err != nil {
		return err
	}

	var firstTS, lastTS string
	if n := len(s.Records); n > 0 {
		firstTS = s.Records[0].Timestamp
		lastTS = s.Records[n-1].Timestamp
	}

	_, err = tx.Exec(
		`INSERT INTO sources (path, mtime, size, max_chars, lines, records, first_ts, last_ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		path,
		s.Meta.Mtime.UnixNano(),
		s.Meta.Size,
		maxChars,
		s.Lines,
		len(s.Records),
		firstTS,
		lastTS,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO records (path, pos, role, text, ts, line_number)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range s.Records {
		if _, err := stmt.Exec(path, i, r.Role, r.Text, r.Timestamp, r.LineNumber); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadSession rebuilds a cached session. It returns nil if path is not cached.
func (d *DB) LoadSession(path string) (*parse.Session, error) {
	s := &parse.Session{Meta: parse.SourceMeta{Path: path}}
	var mtime int64
	err := d.db.QueryRow(
		"SELECT mtime, size, lines FROM sources WHERE path = ?",
		path,
	).Scan(&mtime, &s.Meta.Size, &s.Lines)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Meta.Mtime = time.Unix(0, mtime)

	rows, err := d.db.Query(
		"SELECT role, text, ts, line_number FROM records WHERE path = ? ORDER BY pos",
		path,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r parse.Record
		if err := rows.Scan(&r.Role, &r.Text, &r.Timestamp, &r.LineNumber); err != nil {
			return nil, err
		}
		s.Records = append(s.Records, r)
	}
	return s, rows.Err()
}

func (d *DB) AllSourcePaths() (map[string]struct{}, error) {
	rows, err := d.db.Query("SELECT path FROM sources")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths[p] = struct{}{}
	}
	return paths, rows.Err()
}

func (d *DB) DeleteSource(path string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM records WHERE path = ?", path); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM sources WHERE path = ?", path); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) SourceCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM sources").Scan(&n)
	return n, err
}

func (d *DB) RecordCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&n)
	return n, err
}

type SourceRow struct {
	Path    string
	Mtime   time.Time
	Lines   int
	Records int
	FirstTS string
	LastTS  string
}

// ListSources returns every cached source, most recently modified first.
func (d *DB) ListSources() ([]SourceRow, error) {
	rows, err := d.db.Query(
		"SELECT path, mtime, lines, records, first_ts, last_ts FROM sources ORDER BY mtime DESC, path",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceRow
	for rows.Next() {
		var r SourceRow
		var mtime int64
		if err := rows.Scan(&r.Path, &mtime, &r.Lines, &r.Records, &r.FirstTS, &r.LastTS); err != nil {
			return nil, err
		}
		r.Mtime = time.Unix(0, mtime)
		out = append(out, r)
	}
	return out, rows.Err()
}
