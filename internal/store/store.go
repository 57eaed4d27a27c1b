package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS participants (
	id                TEXT PRIMARY KEY,
	mode              TEXT NOT NULL DEFAULT '',
	started_at        TEXT NOT NULL,
	completed_at      TEXT,
	demographics_json TEXT,
	covariates_json   TEXT,
	follow_up_json    TEXT
);

CREATE TABLE IF NOT EXISTS decisions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	participant_id TEXT NOT NULL,
	stage          INTEGER NOT NULL,
	option_id      TEXT NOT NULL,
	submitted_at   TEXT NOT NULL,
	latency_ms     INTEGER NOT NULL DEFAULT 0,
	confidence     REAL,
	FOREIGN KEY (participant_id) REFERENCES participants(id)
);

CREATE TABLE IF NOT EXISTS memos (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	participant_id TEXT NOT NULL,
	stage          INTEGER NOT NULL,
	text           TEXT NOT NULL,
	word_count     INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (participant_id) REFERENCES participants(id)
);

CREATE TABLE IF NOT EXISTS chat_turns (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	participant_id TEXT NOT NULL,
	stage          INTEGER NOT NULL,
	turn           INTEGER NOT NULL,
	role           TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
	content        TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	metadata_json  TEXT,
	FOREIGN KEY (participant_id) REFERENCES participants(id)
);

CREATE TABLE IF NOT EXISTS events (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	participant_id TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	duration_ms    INTEGER,
	metadata_json  TEXT,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (participant_id) REFERENCES participants(id)
);

CREATE TABLE IF NOT EXISTS ratings (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	participant_id   TEXT NOT NULL,
	stage            INTEGER NOT NULL,
	rater_id         TEXT NOT NULL,
	coherence        REAL,
	evidence         REAL,
	trade_offs       REAL,
	accuracy         REAL,
	implementability REAL,
	novelty          REAL,
	differentiation  REAL,
	synthesis        REAL,
	FOREIGN KEY (participant_id) REFERENCES participants(id)
);

CREATE TABLE IF NOT EXISTS computed_scores (
	participant_id         TEXT PRIMARY KEY,
	vq_early               REAL,
	vq_late                REAL,
	hq_late                REAL,
	reflexivity            REAL,
	short_circuit          REAL,
	question_count         INTEGER NOT NULL,
	challenge_count        INTEGER NOT NULL,
	verification_count     INTEGER NOT NULL,
	decision_latency_ms    REAL,
	similarity             REAL,
	unique_memo_words      REAL,
	evidence_fact_mentions REAL,
	algorithm_version      TEXT NOT NULL,
	fingerprint            TEXT NOT NULL,
	computed_at            TEXT NOT NULL,
	FOREIGN KEY (participant_id) REFERENCES participants(id)
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id            TEXT NOT NULL,
	kind              TEXT NOT NULL,
	algorithm_version TEXT,
	participants      INTEGER NOT NULL DEFAULT 0,
	changed           INTEGER NOT NULL DEFAULT 0,
	outcome           TEXT NOT NULL,
	reason            TEXT,
	duration_ms       INTEGER NOT NULL DEFAULT 0,
	created_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_participant ON decisions(participant_id);
CREATE INDEX IF NOT EXISTS idx_memos_participant ON memos(participant_id);
CREATE INDEX IF NOT EXISTS idx_chat_turns_participant ON chat_turns(participant_id);
CREATE INDEX IF NOT EXISTS idx_events_participant ON events(participant_id);
CREATE INDEX IF NOT EXISTS idx_ratings_participant ON ratings(participant_id);
`

// #endregion schema

// #region store-struct
// Store holds the raw study records and the computed scores in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// PRAGMAs are per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region tx
// inTx runs fn in a transaction, committing only if fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// #endregion tx
