package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
)

// #region builder
// Builder assembles the hypothesis-testing report from participants and their
// computed scores.
type Builder struct {
	config Config
	logger *zap.Logger
	now    func() time.Time
}

// NewBuilder creates a Builder. logger may be nil.
func NewBuilder(config Config, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		config: config,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// #endregion builder

// #region build
// Build produces the report. A model that cannot be estimated is reported
// with its status and does not stop the others; only a cancelled context or
// an invalid configuration returns an error.
func (b *Builder) Build(ctx context.Context, participants []records.Participant, scores []records.ComputedScore) (*Report, error) {
	cfg := b.config
	if len(cfg.Conditions) < 2 {
		return nil, errors.New("build report: at least two conditions are required")
	}

	rows := BuildRows(participants, scores, cfg.Conditions)
	controls, dropped := ResolveControls(rows, participants, cfg.Controls)
	for _, d := range dropped {
		b.logger.Warn("control dropped", zap.String("control", d.Name), zap.String("reason", d.Reason))
	}

	report := &Report{
		GeneratedAt:     b.now(),
		ScoreVersion:    scoreVersion(scores),
		N:               len(rows),
		Conditions:      cfg.Conditions,
		Reference:       cfg.Reference(),
		Controls:        controls,
		DroppedControls: dropped,
		Alpha:           cfg.Alpha,
		Robust:          cfg.Robust,
		Descriptives:    Descriptives(rows, cfg.Conditions),
		Correlations:    Correlate(rows),
		Balance:         Balance(rows, cfg.Conditions, controls),
		Manipulation:    Manipulation(rows),
		Rows:            rows,
	}

	h := hypotheses{
		cfg:      cfg,
		data:     regressionRows(rows, cfg.Conditions),
		controls: numericNames(controls),
		followUp: followUpNames(rows),
	}
	for _, c := range cfg.Conditions[1:] {
		h.indicators = append(h.indicators, Indicator(c))
	}

	report.Models = append(report.Models, h.h1()...)
	h2, slopes := h.h2()
	report.Models = append(report.Models, h2...)
	report.SimpleSlopes = slopes

	h3, mediation, err := h.h3(ctx)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	report.Models = append(report.Models, h3...)
	report.Mediation = mediation
	report.Models = append(report.Models, h.h4()...)

	for _, m := range report.Models {
		if m.Status != StatusOK {
			b.logger.Warn("model not estimated",
				zap.String("model", m.Name),
				zap.String("status", string(m.Status)),
				zap.String("message", m.Message))
		}
	}
	b.logger.Debug("report built",
		zap.Int("rows", len(rows)),
		zap.Int("models", len(report.Models)))
	return report, nil
}

// #endregion build

// #region helpers
func scoreVersion(scores []records.ComputedScore) string {
	for _, s := range scores {
		if s.AlgorithmVersion != "" {
			return s.AlgorithmVersion
		}
	}
	return ""
}

func numericNames(controls []ControlDecl) []string {
	var out []string
	for _, c := range controls {
		if c.Type == ControlNumeric {
			out = append(out, c.Name)
		}
	}
	return out
}

func followUpNames(rows []Row) []string {
	set := map[string]bool{}
	for _, r := range rows {
		for k := range r.FollowUp {
			set[k] = true
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// #endregion helpers
