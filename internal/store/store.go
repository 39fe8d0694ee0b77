// Package store caches compiled fact programs and records compile runs in
// SQLite.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"spgt/internal/emit"
	"spgt/internal/facts"
	"spgt/internal/logging"
)

// ProgramStore is a SQLite-backed cache of compiled programs keyed by the
// content of their inputs.
type ProgramStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Run is one recorded compile.
type Run struct {
	ID         string
	Target     string
	Key        string
	Facts      int
	DurationMs int64
	CacheHit   bool
	Error      string
	CreatedAt  time.Time
}

// Stats summarizes the store contents.
type Stats struct {
	Programs int
	Facts    int
	Runs     int
	Hits     int
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory store.
func Open(path string) (*ProgramStore, error) {
	logging.Store("opening program store at %s", path)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set busy_timeout: %v", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logging.StoreDebug("failed to set journal_mode=WAL: %v", err)
		}
	}

	s := &ProgramStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *ProgramStore) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS programs (
			key TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			sections TEXT NOT NULL,
			fact_count INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS program_facts (
			program_key TEXT NOT NULL REFERENCES programs(key) ON DELETE CASCADE,
			section_idx INTEGER NOT NULL,
			section TEXT NOT NULL,
			fact_idx INTEGER NOT NULL,
			relation TEXT NOT NULL,
			args TEXT NOT NULL,
			PRIMARY KEY (program_key, section_idx, fact_idx)
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			target TEXT NOT NULL,
			program_key TEXT,
			fact_count INTEGER DEFAULT 0,
			duration_ms INTEGER DEFAULT 0,
			error TEXT DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *ProgramStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Key derives a cache key from the compile inputs. Each part is length
// prefixed so that boundaries cannot shift between parts.
func Key(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:", len(p))
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Put stores p under key, replacing any earlier program with that key.
func (s *ProgramStore) Put(key string, p *emit.Program) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM program_facts WHERE program_key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear program %s: %w", key, err)
	}
	names := make([]string, len(p.Sections))
	for i, section := range p.Sections {
		names[i] = section.Name
	}
	sections, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("failed to encode sections: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO programs (key, name, sections, fact_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		key, p.Name, string(sections), p.Len(), time.Now().UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to store program %s: %w", key, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO program_facts
		(program_key, section_idx, section, fact_idx, relation, args) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare fact insert: %w", err)
	}
	defer stmt.Close()

	for si, section := range p.Sections {
		for fi, f := range section.Facts {
			args, err := json.Marshal(f.Args)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", f.String(), err)
			}
			if _, err := stmt.Exec(key, si, section.Name, fi, f.Relation, string(args)); err != nil {
				return fmt.Errorf("failed to store fact %s: %w", f.String(), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit program %s: %w", key, err)
	}
	logging.StoreDebug("stored program %s (%d facts) under %s", p.Name, p.Len(), short(key))
	return nil
}

// Get returns the program stored under key. The boolean is false on a miss.
func (s *ProgramStore) Get(key string) (*emit.Program, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := &emit.Program{}
	var sections string
	var count int
	err := s.db.QueryRow(`SELECT name, sections, fact_count FROM programs WHERE key = ?`, key).
		Scan(&p.Name, &sections, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load program %s: %w", key, err)
	}
	var names []string
	if err := json.Unmarshal([]byte(sections), &names); err != nil {
		return nil, false, fmt.Errorf("corrupt sections for %s: %w", short(key), err)
	}
	for _, name := range names {
		p.Sections = append(p.Sections, emit.Section{Name: name})
	}

	rows, err := s.db.Query(`SELECT section_idx, relation, args FROM program_facts
		WHERE program_key = ? ORDER BY section_idx, fact_idx`, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load facts of %s: %w", key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx int
		var relation, args string
		if err := rows.Scan(&idx, &relation, &args); err != nil {
			return nil, false, fmt.Errorf("failed to scan fact: %w", err)
		}
		var decoded []string
		if err := json.Unmarshal([]byte(args), &decoded); err != nil {
			return nil, false, fmt.Errorf("corrupt arguments for %s: %w", relation, err)
		}
		if idx < 0 || idx >= len(p.Sections) {
			return nil, false, fmt.Errorf("program %s has a fact in unknown section %d", short(key), idx)
		}
		p.Sections[idx].Facts = append(p.Sections[idx].Facts, facts.New(relation, decoded...))
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	if p.Len() != count {
		return nil, false, fmt.Errorf("program %s is incomplete: %d of %d facts", short(key), p.Len(), count)
	}
	return p, true, nil
}

// RecordRun appends a compile run to the history.
func (s *ProgramStore) RecordRun(r Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO runs (id, target, program_key, fact_count, duration_ms, cache_hit, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Target, r.Key, r.Facts, r.DurationMs, r.CacheHit, r.Error, r.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", r.ID, err)
	}
	return nil
}

// Runs returns the most recent runs, newest first. limit <= 0 means all.
func (s *ProgramStore) Runs(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, target, COALESCE(program_key, ''), fact_count, duration_ms, cache_hit, error, created_at
		FROM runs ORDER BY created_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var created int64
		if err := rows.Scan(&r.ID, &r.Target, &r.Key, &r.Facts, &r.DurationMs, &r.CacheHit, &r.Error, &created); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats counts stored programs, facts and runs.
func (s *ProgramStore) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	queries := []struct {
		sql string
		dst *int
	}{
		{`SELECT COUNT(*) FROM programs`, &st.Programs},
		{`SELECT COUNT(*) FROM program_facts`, &st.Facts},
		{`SELECT COUNT(*) FROM runs`, &st.Runs},
		{`SELECT COUNT(*) FROM runs WHERE cache_hit = 1`, &st.Hits},
	}
	for _, q := range queries {
		if err := s.db.QueryRow(q.sql).Scan(q.dst); err != nil {
			return Stats{}, fmt.Errorf("failed to compute stats: %w", err)
		}
	}
	return st, nil
}

// Prune deletes programs and runs created before cutoff and returns how
// many programs went.
func (s *ProgramStore) Prune(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	before := cutoff.UnixNano()
	if _, err := tx.Exec(`DELETE FROM program_facts WHERE program_key IN
		(SELECT key FROM programs WHERE created_at < ?)`, before); err != nil {
		return 0, fmt.Errorf("failed to prune facts: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM programs WHERE created_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune programs: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE created_at < ?`, before); err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	logging.Store("pruned %d program(s) older than %s", n, cutoff.UTC().Format(time.RFC3339))
	return n, nil
}

func short(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
