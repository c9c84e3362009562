package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/tree"
	"github.com/meikuraledutech/tree/internal/cli"
)

var (
	showRoot string
	showJSON bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the forest or one subtree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		forest, err := e.Tree(cmd.Context(), parentArg(showRoot))
		if err != nil {
			return cli.OpError("reading tree", err)
		}

		out := cmd.OutOrStdout()
		if showJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(forest)
		}
		return tree.Render(out, forest, func(n tree.Node) string {
			return fmt.Sprintf("%s [%d]", n.ID, n.Position)
		})
	},
}

func init() {
	f := showCmd.Flags()
	f.StringVar(&showRoot, "root", "", "only print the subtree rooted at this id")
	f.BoolVar(&showJSON, "json", false, "print nested JSON instead of an outline")
}
