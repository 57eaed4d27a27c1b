package logging

import "time"

// #region run-entry
// Run kinds.
const (
	KindRecompute = "recompute"
	KindReport    = "report"
	KindImport    = "import"
)

// Run outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// RunEntry is a single row in the pipeline_runs table.
type RunEntry struct {
	RunID            string
	Kind             string // "recompute" | "report" | "import"
	AlgorithmVersion string
	Participants     int
	Changed          int // score rows written; unchanged rows are not counted
	Outcome          string
	Reason           string
	Duration         time.Duration
	CreatedAt        time.Time
}

// #endregion run-entry

// #region logger-config
// LoggerConfig selects the zap preset and level.
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool   // console encoder instead of JSON
}

// #endregion logger-config
