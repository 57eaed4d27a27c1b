package logging

import (
	"database/sql"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE pipeline_runs (
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
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-run-tests
func TestLogRun_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := RunEntry{
		RunID:            "r1",
		Kind:             KindRecompute,
		AlgorithmVersion: "rs-1.2.0",
		Participants:     12,
		Changed:          3,
		Outcome:          OutcomeOK,
		Duration:         1500 * time.Millisecond,
		CreatedAt:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := LogRun(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runs, err := RecentRuns(db, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.RunID != "r1" || got.Kind != KindRecompute || got.Participants != 12 || got.Changed != 3 {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("expected 1.5s duration, got %v", got.Duration)
	}
	if !got.CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("created_at: got %v", got.CreatedAt)
	}
}

func TestLogRun_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	if err := LogRun(db, RunEntry{RunID: "r2", Kind: KindReport, Outcome: OutcomeOK}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM pipeline_runs").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogRun_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	if err := LogRun(db, RunEntry{RunID: "r3", Kind: KindImport, Outcome: OutcomeFailed}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var version, reason sql.NullString
	db.QueryRow("SELECT algorithm_version, reason FROM pipeline_runs").Scan(&version, &reason)
	if version.Valid {
		t.Error("expected NULL algorithm_version for empty string")
	}
	if reason.Valid {
		t.Error("expected NULL reason for empty string")
	}
}

func TestRecentRuns_NewestFirst(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	for _, id := range []string{"a", "b", "c"} {
		if err := LogRun(db, RunEntry{RunID: id, Kind: KindRecompute, Outcome: OutcomeOK}); err != nil {
			t.Fatalf("LogRun: %v", err)
		}
	}
	runs, err := RecentRuns(db, 2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "c" || runs[1].RunID != "b" {
		t.Fatalf("unexpected order: %+v", runs)
	}
}

func TestLogRun_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	if err := LogRun(db, RunEntry{RunID: "r4", Kind: KindRecompute, Outcome: OutcomeOK}); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-run-tests

// #region logger-tests
func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "debug", Development: true})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level should be enabled")
	}

	if _, err := NewLogger(LoggerConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

// #endregion logger-tests

// #region null-if-empty-tests
func TestNullIfEmpty(t *testing.T) {
	if result := nullIfEmpty(""); result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
	if result := nullIfEmpty("hello"); result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests
