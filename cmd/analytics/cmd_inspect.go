package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
)

// #region inspect
func newInspectCmd(a *app) *cobra.Command {
	var participant string
	var runs int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show computed scores or recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, p, err := a.open()
			if err != nil {
				return err
			}
			defer st.Close()
			out := cmd.OutOrStdout()
			ctx := context.Background()

			switch {
			case runs > 0:
				entries, err := p.RecentRuns(runs)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(out, entries)
				}
				fmt.Fprintf(out, "%-36s  %-9s  %-10s  %6s  %7s  %-6s  %s\n",
					"Run", "Kind", "Algorithm", "N", "Changed", "Result", "Time")
				for _, r := range entries {
					fmt.Fprintf(out, "%-36s  %-9s  %-10s  %6d  %7d  %-6s  %s\n",
						r.RunID, r.Kind, orDash(r.AlgorithmVersion), r.Participants, r.Changed, r.Outcome,
						r.CreatedAt.Format("2006-01-02T15:04:05Z"))
					if r.Reason != "" {
						fmt.Fprintf(out, "  reason: %s\n", r.Reason)
					}
				}
				return nil

			case participant != "":
				sc, err := st.GetScore(ctx, participant)
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("no computed score for participant %q", participant)
				}
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(out, sc)
				}
				printScoreDetail(out, sc)
				return nil
			}

			scores, err := st.ListScores(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(out, scores)
			}
			if len(scores) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no computed scores found")
				return nil
			}
			printScoreTable(out, scores)
			return nil
		},
	}
	cmd.Flags().StringVar(&participant, "participant", "", "show one participant's score detail")
	cmd.Flags().IntVar(&runs, "runs", 0, "show the N most recent pipeline runs instead of scores")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

// #endregion inspect

// #region tables
func printScoreTable(w io.Writer, scores []records.ComputedScore) {
	fmt.Fprintf(w, "%-12s  %8s  %8s  %8s  %11s  %13s  %s\n",
		"Participant", "VQ early", "VQ late", "HQ late", "Reflexivity", "Short-circuit", "Version")
	fmt.Fprintf(w, "%-12s+-%8s+-%8s+-%8s+-%11s+-%13s+-%s\n",
		"------------", "--------", "--------", "--------", "-----------", "-------------", "----------")
	for _, s := range scores {
		fmt.Fprintf(w, "%-12s  %8s  %8s  %8s  %11s  %13s  %s\n",
			s.ParticipantID, fmtPtr(s.VQEarly), fmtPtr(s.VQLate), fmtPtr(s.HQLate),
			fmtPtr(s.Reflexivity), fmtPtr(s.ShortCircuit), s.AlgorithmVersion)
	}
}

func printScoreDetail(w io.Writer, s records.ComputedScore) {
	fmt.Fprintf(w, "Participant:       %s\n", s.ParticipantID)
	fmt.Fprintf(w, "Algorithm:         %s\n", s.AlgorithmVersion)
	fmt.Fprintf(w, "Computed at:       %s\n", s.ComputedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(w, "\nComposites:\n")
	fmt.Fprintf(w, "  vq_early         %s\n", fmtPtr(s.VQEarly))
	fmt.Fprintf(w, "  vq_late          %s\n", fmtPtr(s.VQLate))
	fmt.Fprintf(w, "  hq_late          %s\n", fmtPtr(s.HQLate))
	fmt.Fprintf(w, "  reflexivity      %s\n", fmtPtr(s.Reflexivity))
	fmt.Fprintf(w, "  short_circuit    %s\n", fmtPtr(s.ShortCircuit))
	fmt.Fprintf(w, "\nComponents:\n")
	fmt.Fprintf(w, "  questions        %d\n", s.QuestionCount)
	fmt.Fprintf(w, "  challenges       %d\n", s.ChallengeCount)
	fmt.Fprintf(w, "  verifications    %d\n", s.VerificationCount)
	fmt.Fprintf(w, "  latency ms       %s\n", fmtPtr(s.DecisionLatencyMs))
	fmt.Fprintf(w, "  similarity       %s\n", fmtPtr(s.Similarity))
	fmt.Fprintf(w, "  unique words     %s\n", fmtPtr(s.UniqueMemoWords))
	fmt.Fprintf(w, "  fact mentions    %s\n", fmtPtr(s.EvidenceFactMentions))
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// #endregion tables
