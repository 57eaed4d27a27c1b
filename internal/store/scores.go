package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
)

const scoreColumns = `participant_id, vq_early, vq_late, hq_late, reflexivity, short_circuit,
	question_count, challenge_count, verification_count, decision_latency_ms, similarity,
	unique_memo_words, evidence_fact_mentions, algorithm_version, fingerprint, computed_at`

// #region upsert
// UpsertScores writes each score in its own transaction and returns how many
// rows changed. A score whose values match the stored row exactly is left
// alone, computed_at included, so rerunning an unchanged snapshot is a no-op.
func (s *Store) UpsertScores(ctx context.Context, scores []records.ComputedScore) (int, error) {
	changed := 0
	for _, sc := range scores {
		fp, err := Fingerprint(sc)
		if err != nil {
			return changed, err
		}
		var n int64
		err = s.inTx(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO computed_scores (`+scoreColumns+`)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT(participant_id) DO UPDATE SET
				   vq_early = excluded.vq_early, vq_late = excluded.vq_late, hq_late = excluded.hq_late,
				   reflexivity = excluded.reflexivity, short_circuit = excluded.short_circuit,
				   question_count = excluded.question_count, challenge_count = excluded.challenge_count,
				   verification_count = excluded.verification_count,
				   decision_latency_ms = excluded.decision_latency_ms, similarity = excluded.similarity,
				   unique_memo_words = excluded.unique_memo_words,
				   evidence_fact_mentions = excluded.evidence_fact_mentions,
				   algorithm_version = excluded.algorithm_version, fingerprint = excluded.fingerprint,
				   computed_at = excluded.computed_at
				 WHERE computed_scores.fingerprint <> excluded.fingerprint`,
				sc.ParticipantID, nullFloat(sc.VQEarly), nullFloat(sc.VQLate), nullFloat(sc.HQLate),
				nullFloat(sc.Reflexivity), nullFloat(sc.ShortCircuit),
				sc.QuestionCount, sc.ChallengeCount, sc.VerificationCount,
				nullFloat(sc.DecisionLatencyMs), nullFloat(sc.Similarity),
				nullFloat(sc.UniqueMemoWords), nullFloat(sc.EvidenceFactMentions),
				sc.AlgorithmVersion, fp, formatTime(sc.ComputedAt),
			)
			if err != nil {
				return fmt.Errorf("upsert score %s: %w", sc.ParticipantID, err)
			}
			n, err = res.RowsAffected()
			return err
		})
		if err != nil {
			return changed, err
		}
		changed += int(n)
	}
	return changed, nil
}

// Fingerprint hashes every score value except ComputedAt.
func Fingerprint(sc records.ComputedScore) (string, error) {
	sc.ComputedAt = time.Time{}
	b, err := json.Marshal(sc)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", sc.ParticipantID, err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// PruneScores deletes the computed scores of every participant not in keep
// and returns how many rows were removed.
func (s *Store) PruneScores(ctx context.Context, keep []string) (int, error) {
	keepSet := make(map[string]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}

	pruned := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT participant_id FROM computed_scores`)
		if err != nil {
			return fmt.Errorf("list score ids: %w", err)
		}
		var stale []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan score id: %w", err)
			}
			if !keepSet[id] {
				stale = append(stale, id)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("list score ids: %w", err)
		}

		for _, id := range stale {
			if _, err := tx.ExecContext(ctx, `DELETE FROM computed_scores WHERE participant_id = ?`, id); err != nil {
				return fmt.Errorf("prune score %s: %w", id, err)
			}
		}
		pruned = len(stale)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pruned, nil
}

// #endregion upsert

// #region list
// ListScores returns every computed score ordered by participant.
func (s *Store) ListScores(ctx context.Context) ([]records.ComputedScore, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scoreColumns+` FROM computed_scores ORDER BY participant_id`)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	var out []records.ComputedScore
	for rows.Next() {
		sc, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// GetScore returns one participant's computed score.
func (s *Store) GetScore(ctx context.Context, participantID string) (records.ComputedScore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scoreColumns+` FROM computed_scores WHERE participant_id = ?`, participantID)
	sc, err := scanScore(row)
	if err != nil {
		return records.ComputedScore{}, fmt.Errorf("get score %s: %w", participantID, err)
	}
	return sc, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScore(r scanner) (records.ComputedScore, error) {
	var sc records.ComputedScore
	var vals [9]sql.NullFloat64
	var fp, computed string
	err := r.Scan(&sc.ParticipantID, &vals[0], &vals[1], &vals[2], &vals[3], &vals[4],
		&sc.QuestionCount, &sc.ChallengeCount, &sc.VerificationCount,
		&vals[5], &vals[6], &vals[7], &vals[8], &sc.AlgorithmVersion, &fp, &computed)
	if err != nil {
		return sc, fmt.Errorf("scan score: %w", err)
	}
	sc.VQEarly, sc.VQLate, sc.HQLate = floatPtr(vals[0]), floatPtr(vals[1]), floatPtr(vals[2])
	sc.Reflexivity, sc.ShortCircuit = floatPtr(vals[3]), floatPtr(vals[4])
	sc.DecisionLatencyMs, sc.Similarity = floatPtr(vals[5]), floatPtr(vals[6])
	sc.UniqueMemoWords, sc.EvidenceFactMentions = floatPtr(vals[7]), floatPtr(vals[8])
	sc.ComputedAt = parseTime(computed)
	return sc, nil
}

// #endregion list
