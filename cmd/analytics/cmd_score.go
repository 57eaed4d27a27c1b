package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/pipeline"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/rpc"
)

// #region score
func newScoreCmd(a *app) *cobra.Command {
	var remote string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Recompute participant scores and upsert them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			var res *pipeline.RecomputeResult
			if remote != "" {
				client, err := rpc.NewClient(remote)
				if err != nil {
					return err
				}
				defer client.Close()
				if res, err = client.Recompute(ctx); err != nil {
					return err
				}
			} else {
				st, p, err := a.open()
				if err != nil {
					return err
				}
				defer st.Close()
				if res, err = p.Recompute(ctx); err != nil {
					return err
				}
			}
			printRecompute(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "run on an analytics server at this address instead of locally")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline")
	return cmd
}

func printRecompute(w io.Writer, res *pipeline.RecomputeResult) {
	fmt.Fprintf(w, "Run:        %s\n", res.RunID)
	fmt.Fprintf(w, "Algorithm:  %s\n", res.AlgorithmVersion)
	fmt.Fprintf(w, "Scored:     %d participants\n", res.Participants)
	fmt.Fprintf(w, "Changed:    %d rows\n", res.Changed)
	if res.Pruned > 0 {
		fmt.Fprintf(w, "Pruned:     %d stale rows\n", res.Pruned)
	}
	fmt.Fprintf(w, "Duration:   %s\n", res.Duration.Round(time.Millisecond))
	for _, v := range res.Skipped {
		fmt.Fprintf(w, "  skipped %s: %s\n", v.ParticipantID, v.Reason)
	}
}

// #endregion score
