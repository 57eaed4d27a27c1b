package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/fixture"
)

// #region import
func newImportCmd(a *app) *cobra.Command {
	var check bool
	var tol float64
	cmd := &cobra.Command{
		Use:   "import [fixture.json]",
		Short: "Import a JSON population fixture into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fx, err := fixture.Load(args[0])
			if err != nil {
				return err
			}
			st, p, err := a.open()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			if err := p.Import(ctx, fx.Population); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d participants from %s\n", len(fx.Population.Participants), args[0])
			if !check || len(fx.Expected) == 0 {
				return nil
			}

			if _, err := p.Recompute(ctx); err != nil {
				return err
			}
			scores, err := st.ListScores(ctx)
			if err != nil {
				return err
			}
			mismatches := fx.Check(scores, tol)
			for _, m := range mismatches {
				fmt.Fprintf(out, "  mismatch %s\n", m)
			}
			if len(mismatches) > 0 {
				return fmt.Errorf("%d of %d expected scores did not match", len(mismatches), len(fx.Expected))
			}
			fmt.Fprintf(out, "all %d expected scores match\n", len(fx.Expected))
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "score after import and compare against the fixture's expected scores")
	cmd.Flags().Float64Var(&tol, "tolerance", 1e-9, "absolute tolerance for --check")
	return cmd
}

// #endregion import
