// Package store is the sqlite persistence layer: the durable translation
// cache tier, polish history, the glossary and polish-doc checkpoints.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS translation_cache (
		provider TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		text_hash TEXT NOT NULL,
		value TEXT NOT NULL,
		hits INTEGER DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		last_used TIMESTAMP NOT NULL,
		PRIMARY KEY (provider, source_lang, target_lang, text_hash)
	);

	CREATE TABLE IF NOT EXISTS polish_requests (
		id TEXT PRIMARY KEY,
		original_text TEXT NOT NULL,
		provider_selection TEXT NOT NULL,
		context_hint TEXT,
		summary TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS polish_results (
		request_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		intermediate_text TEXT,
		final_text TEXT,
		preferred TEXT,
		original_score REAL,
		rewritten_score REAL,
		analysis TEXT,
		error TEXT,
		error_kind TEXT,
		latency_ms INTEGER,
		PRIMARY KEY (request_id, provider),
		FOREIGN KEY (request_id) REFERENCES polish_requests(id) ON DELETE CASCADE
	);

	-- glossary stores preferred term translations that are appended to the context hint
	CREATE TABLE IF NOT EXISTS glossary (
		id TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		source_term TEXT NOT NULL,
		target_term TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_lang, target_lang, source_term)
	);

	-- doc_checkpoints tracks polish-doc jobs for resume support
	CREATE TABLE IF NOT EXISTS doc_checkpoints (
		id TEXT PRIMARY KEY,
		input_file TEXT NOT NULL,
		output_file TEXT NOT NULL,
		provider TEXT NOT NULL,
		status TEXT DEFAULT 'running',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- doc_checkpoint_records stores the finished report entry of each record
	CREATE TABLE IF NOT EXISTS doc_checkpoint_records (
		checkpoint_id TEXT NOT NULL,
		record_idx INTEGER NOT NULL,
		payload TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (checkpoint_id, record_idx),
		FOREIGN KEY (checkpoint_id) REFERENCES doc_checkpoints(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_cache_created ON translation_cache(created_at);
	CREATE INDEX IF NOT EXISTS idx_polish_created ON polish_requests(created_at);
	CREATE INDEX IF NOT EXISTS idx_glossary_lookup ON glossary(source_lang, target_lang);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
