package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/analytics"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/rpc"
)

// #region report
func newReportCmd(a *app) *cobra.Command {
	var jsonOut, recompute bool
	var remote string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build the hypothesis report from the stored scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			resp, err := fetchReport(ctx, a, remote, recompute)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, resp)
			}
			if resp.Recompute != nil {
				printRecompute(out, resp.Recompute)
				fmt.Fprintln(out)
			}
			printReport(out, resp.Report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of tables")
	cmd.Flags().BoolVar(&recompute, "recompute", false, "recompute scores before building the report")
	cmd.Flags().StringVar(&remote, "remote", "", "fetch the report from an analytics server at this address")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline")
	return cmd
}

// fetchReport builds the report locally or asks a running server for it.
func fetchReport(ctx context.Context, a *app, remote string, recompute bool) (*rpc.ReportResponse, error) {
	if remote != "" {
		client, err := rpc.NewClient(remote)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		return client.Report(ctx, recompute)
	}

	st, p, err := a.open()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	var resp rpc.ReportResponse
	if recompute {
		resp.Recompute, resp.Report, err = p.Refresh(ctx)
	} else {
		resp.Report, err = p.Report(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// #endregion report

// #region tables
func printReport(w io.Writer, r *analytics.Report) {
	fmt.Fprintf(w, "Report: n=%d  conditions=%s  reference=%s  α=%g  robust=%t\n",
		r.N, modeList(r.Conditions), r.Reference, r.Alpha, r.Robust)
	if r.ScoreVersion != "" {
		fmt.Fprintf(w, "Scores: %s\n", r.ScoreVersion)
	}
	for _, d := range r.DroppedControls {
		fmt.Fprintf(w, "Dropped control %s: %s\n", d.Name, d.Reason)
	}

	fmt.Fprintf(w, "\n%-14s  %-10s  %4s  %8s  %8s\n", "Metric", "Condition", "N", "Mean", "SD")
	fmt.Fprintf(w, "%-14s+-%-10s+-%4s+-%8s+-%8s\n", "--------------", "----------", "----", "--------", "--------")
	for _, d := range r.Descriptives {
		fmt.Fprintf(w, "%-14s  %-10s  %4d  %8s  %8s\n", d.Metric, d.Condition, d.N, fmtPtr(d.Mean), fmtPtr(d.SD))
	}

	checks := append(append([]analytics.Check{}, r.Balance...), r.Manipulation...)
	if len(checks) > 0 {
		fmt.Fprintf(w, "\n%-14s  %-10s  %9s  %-7s  %7s  %s\n", "Check", "Test", "Statistic", "DF", "p", "Status")
		for _, c := range checks {
			fmt.Fprintf(w, "%-14s  %-10s  %9.3f  %-7s  %7.4f  %s\n",
				c.Variable, c.Test, c.Statistic, fmtDF(c.DF), c.P, c.Status)
		}
	}

	fmt.Fprintf(w, "\nModels\n")
	for _, m := range r.Models {
		fmt.Fprintf(w, "\n[%s] %s\n", m.Name, m.Status)
		if !m.Testable || m.Fit == nil {
			fmt.Fprintf(w, "  %s\n", m.Message)
			continue
		}
		fmt.Fprintf(w, "  %s   n=%d  dropped=%d  R²=%.3f  adj R²=%.3f\n",
			m.Equation, m.Fit.N, m.Dropped, m.Fit.RSquared, m.Fit.AdjRSquared)
		for _, c := range m.Fit.Coefficients {
			fmt.Fprintf(w, "  %-28s  %9.4f  (se %.4f, p %.4f)\n", c.Name, c.Estimate, c.StdErr, c.P)
		}
		if m.Interpretation != "" {
			fmt.Fprintf(w, "  → %s\n", m.Interpretation)
		}
	}

	if len(r.SimpleSlopes) > 0 {
		fmt.Fprintf(w, "\nSimple slopes (reflexivity at -1 SD, mean, +1 SD)\n")
		for _, s := range r.SimpleSlopes {
			vals := make([]string, len(s.Predictions))
			for i, p := range s.Predictions {
				vals[i] = fmt.Sprintf("%.3f", p.Value)
			}
			fmt.Fprintf(w, "  %-12s %-10s slope %7.4f  [%s]\n", s.Model, s.Condition, s.Slope, strings.Join(vals, ", "))
		}
	}

	if med := r.Mediation; med != nil {
		fmt.Fprintf(w, "\nMediation via %s on %s: %s\n", med.Mediator, med.Outcome, med.Status)
		if med.Message != "" {
			fmt.Fprintf(w, "  %s\n", med.Message)
		}
		for _, e := range med.Effects {
			fmt.Fprintf(w, "  %-14s  a*b %8.4f  %g%% CI [%.4f, %.4f]  resamples %d (failed %d)\n",
				e.Treatment, e.Estimate, med.Level*100, e.CILow, e.CIHigh, e.Resamples, e.Failed)
		}
	}
}

func fmtPtr(v *float64) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%.3f", *v)
}

func modeList(modes []records.Mode) string {
	parts := make([]string, len(modes))
	for i, m := range modes {
		parts[i] = string(m)
	}
	return strings.Join(parts, ",")
}

func fmtDF(df []int) string {
	parts := make([]string, len(df))
	for i, d := range df {
		parts[i] = fmt.Sprint(d)
	}
	return strings.Join(parts, ",")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion tables
