package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
)

// #region import
// ImportPopulation writes the snapshot in one transaction. Every participant
// in it replaces any stored participant with the same ID, including that
// participant's decisions, memos, chat turns, events and ratings, so importing
// the same snapshot twice leaves the store unchanged. Computed scores are not
// touched.
func (s *Store) ImportPopulation(ctx context.Context, pop records.Population) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range pop.Participants {
			if err := upsertParticipant(ctx, tx, p); err != nil {
				return err
			}
			for _, table := range []string{"decisions", "memos", "chat_turns", "events", "ratings"} {
				if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE participant_id = ?`, p.ID); err != nil {
					return fmt.Errorf("clear %s for %s: %w", table, p.ID, err)
				}
			}
		}
		for _, d := range pop.Decisions {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO decisions (participant_id, stage, option_id, submitted_at, latency_ms, confidence)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				d.ParticipantID, d.Stage, d.OptionID, formatTime(d.SubmittedAt), d.LatencyMs, nullFloat(d.Confidence),
			); err != nil {
				return fmt.Errorf("insert decision: %w", err)
			}
		}
		for _, m := range pop.Memos {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO memos (participant_id, stage, text, word_count) VALUES (?, ?, ?, ?)`,
				m.ParticipantID, m.Stage, m.Text, m.WordCount,
			); err != nil {
				return fmt.Errorf("insert memo: %w", err)
			}
		}
		for _, c := range pop.Chats {
			meta, err := encodeJSON(c.Metadata)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chat_turns (participant_id, stage, turn, role, content, created_at, metadata_json)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				c.ParticipantID, c.Stage, c.Turn, string(c.Role), c.Content, formatTime(c.CreatedAt), meta,
			); err != nil {
				return fmt.Errorf("insert chat turn: %w", err)
			}
		}
		for _, e := range pop.Events {
			meta, err := encodeJSON(e.Metadata)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO events (participant_id, event_type, duration_ms, metadata_json, created_at)
				 VALUES (?, ?, ?, ?, ?)`,
				e.ParticipantID, e.Type, nullInt(e.DurationMs), meta, formatTime(e.CreatedAt),
			); err != nil {
				return fmt.Errorf("insert event: %w", err)
			}
		}
		for _, r := range pop.Ratings {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ratings (participant_id, stage, rater_id, coherence, evidence, trade_offs, accuracy,
				   implementability, novelty, differentiation, synthesis)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ParticipantID, r.Stage, r.RaterID,
				nullFloat(r.Coherence), nullFloat(r.Evidence), nullFloat(r.TradeOffs), nullFloat(r.Accuracy),
				nullFloat(r.Implementability), nullFloat(r.Novelty), nullFloat(r.Differentiation), nullFloat(r.Synthesis),
			); err != nil {
				return fmt.Errorf("insert rating: %w", err)
			}
		}
		return nil
	})
}

func upsertParticipant(ctx context.Context, tx *sql.Tx, p records.Participant) error {
	demo, err := encodeJSON(p.Demographics)
	if err != nil {
		return err
	}
	cov, err := encodeJSON(p.Covariates)
	if err != nil {
		return err
	}
	follow, err := encodeJSON(p.FollowUp)
	if err != nil {
		return err
	}
	var completed any
	if p.CompletedAt != nil {
		completed = formatTime(*p.CompletedAt)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO participants (id, mode, started_at, completed_at, demographics_json, covariates_json, follow_up_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   mode = excluded.mode, started_at = excluded.started_at, completed_at = excluded.completed_at,
		   demographics_json = excluded.demographics_json, covariates_json = excluded.covariates_json,
		   follow_up_json = excluded.follow_up_json`,
		p.ID, string(p.Mode), formatTime(p.StartedAt), completed, demo, cov, follow,
	)
	if err != nil {
		return fmt.Errorf("upsert participant %s: %w", p.ID, err)
	}
	return nil
}

// #endregion import

// #region load
// LoadPopulation reads every raw record into one snapshot. All tables are read
// inside a single read transaction so the snapshot is consistent.
func (s *Store) LoadPopulation(ctx context.Context) (records.Population, error) {
	var pop records.Population
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pop, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	loaders := []func(context.Context, *sql.Tx, *records.Population) error{
		loadParticipants, loadDecisions, loadMemos, loadChats, loadEvents, loadRatings,
	}
	for _, load := range loaders {
		if err := load(ctx, tx, &pop); err != nil {
			return records.Population{}, err
		}
	}
	return pop, nil
}

func loadParticipants(ctx context.Context, tx *sql.Tx, pop *records.Population) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, mode, started_at, completed_at, demographics_json, covariates_json, follow_up_json
		 FROM participants ORDER BY id`)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p records.Participant
		var mode, started string
		var completed, demo, cov, follow sql.NullString
		if err := rows.Scan(&p.ID, &mode, &started, &completed, &demo, &cov, &follow); err != nil {
			return fmt.Errorf("scan participant: %w", err)
		}
		p.Mode = records.Mode(mode)
		p.StartedAt = parseTime(started)
		if completed.Valid {
			t := parseTime(completed.String)
			p.CompletedAt = &t
		}
		if err := decodeJSON(demo, &p.Demographics); err != nil {
			return fmt.Errorf("participant %s demographics: %w", p.ID, err)
		}
		if err := decodeJSON(cov, &p.Covariates); err != nil {
			return fmt.Errorf("participant %s covariates: %w", p.ID, err)
		}
		if err := decodeJSON(follow, &p.FollowUp); err != nil {
			return fmt.Errorf("participant %s follow-up: %w", p.ID, err)
		}
		pop.Participants = append(pop.Participants, p)
	}
	return rows.Err()
}

func loadDecisions(ctx context.Context, tx *sql.Tx, pop *records.Population) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT participant_id, stage, option_id, submitted_at, latency_ms, confidence FROM decisions ORDER BY id`)
	if err != nil {
		return fmt.Errorf("load decisions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d records.Decision
		var submitted string
		var conf sql.NullFloat64
		if err := rows.Scan(&d.ParticipantID, &d.Stage, &d.OptionID, &submitted, &d.LatencyMs, &conf); err != nil {
			return fmt.Errorf("scan decision: %w", err)
		}
		d.SubmittedAt = parseTime(submitted)
		d.Confidence = floatPtr(conf)
		pop.Decisions = append(pop.Decisions, d)
	}
	return rows.Err()
}

func loadMemos(ctx context.Context, tx *sql.Tx, pop *records.Population) error {
	rows, err := tx.QueryContext(ctx, `SELECT participant_id, stage, text, word_count FROM memos ORDER BY id`)
	if err != nil {
		return fmt.Errorf("load memos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m records.Memo
		if err := rows.Scan(&m.ParticipantID, &m.Stage, &m.Text, &m.WordCount); err != nil {
			return fmt.Errorf("scan memo: %w", err)
		}
		pop.Memos = append(pop.Memos, m)
	}
	return rows.Err()
}

func loadChats(ctx context.Context, tx *sql.Tx, pop *records.Population) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT participant_id, stage, turn, role, content, created_at, metadata_json FROM chat_turns ORDER BY id`)
	if err != nil {
		return fmt.Errorf("load chat turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c records.ChatTurn
		var role, created string
		var meta sql.NullString
		if err := rows.Scan(&c.ParticipantID, &c.Stage, &c.Turn, &role, &c.Content, &created, &meta); err != nil {
			return fmt.Errorf("scan chat turn: %w", err)
		}
		c.Role = records.Role(role)
		c.CreatedAt = parseTime(created)
		if err := decodeJSON(meta, &c.Metadata); err != nil {
			return fmt.Errorf("chat turn metadata: %w", err)
		}
		pop.Chats = append(pop.Chats, c)
	}
	return rows.Err()
}

func loadEvents(ctx context.Context, tx *sql.Tx, pop *records.Population) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT participant_id, event_type, duration_ms, metadata_json, created_at FROM events ORDER BY id`)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e records.Event
		var dur sql.NullInt64
		var meta sql.NullString
		var created string
		if err := rows.Scan(&e.ParticipantID, &e.Type, &dur, &meta, &created); err != nil {
			return fmt.Errorf("scan event: %w", err)
		}
		if dur.Valid {
			v := dur.Int64
			e.DurationMs = &v
		}
		if err := decodeJSON(meta, &e.Metadata); err != nil {
			return fmt.Errorf("event metadata: %w", err)
		}
		e.CreatedAt = parseTime(created)
		pop.Events = append(pop.Events, e)
	}
	return rows.Err()
}

func loadRatings(ctx context.Context, tx *sql.Tx, pop *records.Population) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT participant_id, stage, rater_id, coherence, evidence, trade_offs, accuracy,
		   implementability, novelty, differentiation, synthesis
		 FROM ratings ORDER BY id`)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r records.Rating
		var vals [8]sql.NullFloat64
		if err := rows.Scan(&r.ParticipantID, &r.Stage, &r.RaterID,
			&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &vals[6], &vals[7]); err != nil {
			return fmt.Errorf("scan rating: %w", err)
		}
		r.Coherence, r.Evidence, r.TradeOffs, r.Accuracy = floatPtr(vals[0]), floatPtr(vals[1]), floatPtr(vals[2]), floatPtr(vals[3])
		r.Implementability, r.Novelty = floatPtr(vals[4]), floatPtr(vals[5])
		r.Differentiation, r.Synthesis = floatPtr(vals[6]), floatPtr(vals[7])
		pop.Ratings = append(pop.Ratings, r)
	}
	return rows.Err()
}

// #endregion load

// #region helpers
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// encodeJSON stores nil and empty maps as NULL.
func encodeJSON[M ~map[K]V, K comparable, V any](m M) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return string(b), nil
}

func decodeJSON(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}

// #endregion helpers
