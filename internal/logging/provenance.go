package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-run
// LogRun writes a provenance entry to the pipeline_runs table.
func LogRun(db *sql.DB, entry RunEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO pipeline_runs (run_id, kind, algorithm_version, participants, changed, outcome, reason, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Kind,
		nullIfEmpty(entry.AlgorithmVersion),
		entry.Participants,
		entry.Changed,
		entry.Outcome,
		nullIfEmpty(entry.Reason),
		entry.Duration.Milliseconds(),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log run: %w", err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first.
func RecentRuns(db *sql.DB, limit int) ([]RunEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, kind, algorithm_version, participants, changed, outcome, reason, duration_ms, created_at
		 FROM pipeline_runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunEntry
	for rows.Next() {
		var e RunEntry
		var version, reason sql.NullString
		var durMs int64
		var created string
		if err := rows.Scan(&e.RunID, &e.Kind, &version, &e.Participants, &e.Changed, &e.Outcome, &reason, &durMs, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.AlgorithmVersion = version.String
		e.Reason = reason.String
		e.Duration = time.Duration(durMs) * time.Millisecond
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion log-run

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
