package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/analytics"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/export"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/fixture"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/store"
)

// #region export
func newExportCmd(a *app) *cobra.Command {
	var csvPath, methodsPath, fixturePath string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the analysis dataset as CSV and the methods text",
		RunE: func(cmd *cobra.Command, args []string) error {
			if csvPath == "" && methodsPath == "" && fixturePath == "" {
				return errors.New("nothing to export: pass --csv, --methods or --fixture")
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			st, p, err := a.open()
			if err != nil {
				return err
			}
			defer st.Close()

			if fixturePath != "" {
				if err := exportFixture(ctx, st, fixturePath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "fixture written to %s\n", fixturePath)
			}
			if csvPath == "" && methodsPath == "" {
				return nil
			}

			report, err := p.Report(ctx)
			if err != nil {
				return err
			}

			if csvPath != "" {
				if err := writeTo(cmd.OutOrStdout(), csvPath, func(w io.Writer) error {
					return export.WriteCSV(w, report)
				}); err != nil {
					return fmt.Errorf("export csv: %w", err)
				}
			}
			if methodsPath != "" {
				if err := writeTo(cmd.OutOrStdout(), methodsPath, func(w io.Writer) error {
					_, err := io.WriteString(w, export.Methods(report))
					return err
				}); err != nil {
					return fmt.Errorf("export methods: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV output path, - for stdout")
	cmd.Flags().StringVar(&methodsPath, "methods", "", "methods text output path, - for stdout")
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "write the stored population and its current scores as a JSON fixture")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline")
	return cmd
}

// exportFixture snapshots the store into a fixture whose expected scores are
// the currently stored composites, for use as a regression baseline.
func exportFixture(ctx context.Context, st *store.Store, path string) error {
	pop, err := st.LoadPopulation(ctx)
	if err != nil {
		return err
	}
	scores, err := st.ListScores(ctx)
	if err != nil {
		return err
	}
	if len(scores) == 0 {
		return errors.New("export fixture: no computed scores, run score first")
	}

	fx := &fixture.Fixture{
		Description: fmt.Sprintf("Store export: %d participants scored with %s", len(pop.Participants), scores[0].AlgorithmVersion),
		Population:  pop,
	}
	for _, sc := range scores {
		for _, metric := range analytics.Metrics {
			v, _ := fixture.Metric(sc, metric)
			fx.Expected = append(fx.Expected, fixture.ExpectedScore{ParticipantID: sc.ParticipantID, Metric: metric, Value: v})
		}
	}
	return fixture.Save(path, fx)
}

// writeTo runs write against stdout for "-" or a freshly created file.
func writeTo(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// #endregion export
