package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/tree"
	"github.com/meikuraledutech/tree/internal/cli"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify closure rows and sibling positions",
	Long: `Recompute the closure relation from parent links and compare it with the
stored rows, then check that every sibling group is numbered 0..n-1.
Exits with code 5 when anything is off.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		var violations []tree.Violation
		err = s.InTx(cmd.Context(), func(q tree.Querier) error {
			found, err := tree.Verify(cmd.Context(), q)
			violations = found
			return err
		})
		if err != nil {
			return cli.DBConnectError("reading forest", err)
		}

		out := cmd.OutOrStdout()
		if len(violations) == 0 {
			fmt.Fprintln(out, "OK")
			return nil
		}
		for _, v := range violations {
			fmt.Fprintln(out, v)
		}
		return cli.CorruptError(fmt.Sprintf("%d violations", len(violations)))
	},
}
