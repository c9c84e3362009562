package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/tree/internal/cli"
	"github.com/meikuraledutech/tree/internal/seed"
)

var seedParent string

var seedCmd = &cobra.Command{
	Use:   "seed FILE",
	Short: "Append a forest described in YAML",
	Example: `  # Load a forest into the root group
  treectl seed testdata/handbook.yaml

  # Load it below an existing node
  treectl seed --parent docs chapter.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := seed.ParseFile(args[0])
		if err != nil {
			return cli.ConfigError("reading seed file", err)
		}

		s, e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := seed.Apply(cmd.Context(), e, parentArg(seedParent), f)
		if err != nil {
			return cli.OpError("seeding", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d nodes.\n", n)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedParent, "parent", "", "parent node id (default: root group)")
}
