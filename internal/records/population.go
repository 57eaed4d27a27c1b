package records

import (
	"fmt"
	"sort"
)

// #region group
// GroupByParticipant splits the snapshot into per-participant traces, in
// participant order. Records for unknown participants are dropped.
func (p Population) GroupByParticipant() []Traces {
	index := make(map[string]int, len(p.Participants))
	out := make([]Traces, len(p.Participants))
	for i, part := range p.Participants {
		index[part.ID] = i
		out[i].Participant = part
	}

	for _, d := range p.Decisions {
		if i, ok := index[d.ParticipantID]; ok {
			out[i].Decisions = append(out[i].Decisions, d)
		}
	}
	for _, m := range p.Memos {
		if i, ok := index[m.ParticipantID]; ok {
			out[i].Memos = append(out[i].Memos, m)
		}
	}
	for _, c := range p.Chats {
		if i, ok := index[c.ParticipantID]; ok {
			out[i].Chats = append(out[i].Chats, c)
		}
	}
	for _, e := range p.Events {
		if i, ok := index[e.ParticipantID]; ok {
			out[i].Events = append(out[i].Events, e)
		}
	}
	for _, r := range p.Ratings {
		if i, ok := index[r.ParticipantID]; ok {
			out[i].Ratings = append(out[i].Ratings, r)
		}
	}

	for i := range out {
		sortTraces(&out[i])
	}
	return out
}

func sortTraces(t *Traces) {
	sort.SliceStable(t.Chats, func(i, j int) bool {
		a, b := t.Chats[i], t.Chats[j]
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Turn < b.Turn
	})
	sort.SliceStable(t.Events, func(i, j int) bool {
		return t.Events[i].CreatedAt.Before(t.Events[j].CreatedAt)
	})
	sort.SliceStable(t.Memos, func(i, j int) bool {
		return t.Memos[i].Stage < t.Memos[j].Stage
	})
}

// #endregion group

// #region latest-decisions
// LatestDecisions keeps one decision per stage, the latest submission winning,
// ordered by stage.
func LatestDecisions(decisions []Decision) []Decision {
	byStage := make(map[int]Decision, len(decisions))
	for _, d := range decisions {
		cur, ok := byStage[d.Stage]
		if !ok || d.SubmittedAt.After(cur.SubmittedAt) {
			byStage[d.Stage] = d
		}
	}
	out := make([]Decision, 0, len(byStage))
	for _, d := range byStage {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out
}

// #endregion latest-decisions

// #region validate
// Violation describes a participant that breaks a data-model invariant.
type Violation struct {
	ParticipantID string
	Reason        string
}

// Validate checks participant invariants. An empty allowed set accepts any mode.
func Validate(participants []Participant, allowed []Mode) []Violation {
	modes := make(map[Mode]bool, len(allowed))
	for _, m := range allowed {
		modes[m] = true
	}

	var out []Violation
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		switch {
		case p.ID == "":
			out = append(out, Violation{Reason: "empty participant id"})
		case seen[p.ID]:
			out = append(out, Violation{ParticipantID: p.ID, Reason: "duplicate participant id"})
		case p.Mode != "" && len(modes) > 0 && !modes[p.Mode]:
			out = append(out, Violation{ParticipantID: p.ID, Reason: fmt.Sprintf("unknown mode %q", p.Mode)})
		case p.CompletedAt != nil && p.CompletedAt.Before(p.StartedAt):
			out = append(out, Violation{ParticipantID: p.ID, Reason: "completed before started"})
		}
		seen[p.ID] = true
	}
	return out
}

// #endregion validate
