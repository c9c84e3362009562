package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/tree"
	"github.com/meikuraledutech/tree/internal/cli"
)

var (
	moveParent   string
	movePosition int

	deleteHard     bool
	deleteSubtree  bool
	deleteWithSelf bool
)

var moveCmd = &cobra.Command{
	Use:   "move ID",
	Short: "Reparent or reorder a node",
	Example: `  # Make node 12 the first child of 13
  treectl move 12 --parent 13 --position 0

  # Move node 10 to the end of the root group
  treectl move 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		var pos *int
		if cmd.Flags().Changed("position") {
			pos = tree.Ptr(movePosition)
		}
		n, err := e.MoveTo(cmd.Context(), args[0], parentArg(moveParent), pos)
		if err != nil {
			return cli.OpError("moving node", err)
		}
		if n == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "No live node %s.\n", args[0])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s at %d.\n", n.ID, groupName(n.ParentID), n.Position)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Soft- or hard-delete a node or its subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		if deleteSubtree {
			n, err := e.DeleteSubtree(cmd.Context(), args[0], deleteWithSelf, deleteHard)
			if err != nil {
				return cli.OpError("deleting subtree", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d nodes.\n", n)
			return nil
		}
		if err := e.Delete(cmd.Context(), args[0], deleteHard); err != nil {
			return cli.OpError("deleting node", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore ID",
	Short: "Bring back a soft-deleted node at the end of its group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := e.Restore(cmd.Context(), args[0])
		if err != nil {
			return cli.OpError("restoring node", err)
		}
		if n == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "No node %s.\n", args[0])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s at %d.\n", n.ID, n.Position)
		return nil
	},
}

func init() {
	mf := moveCmd.Flags()
	mf.StringVar(&moveParent, "parent", "", "new parent id (default: root group)")
	mf.IntVar(&movePosition, "position", 0, "position in the new group (default: end)")

	df := deleteCmd.Flags()
	df.BoolVar(&deleteHard, "hard", false, "remove rows instead of stamping deleted_at")
	df.BoolVar(&deleteSubtree, "subtree", false, "delete the descendants of ID")
	df.BoolVar(&deleteWithSelf, "with-self", false, "with --subtree, delete ID too")
}

func groupName(parent *string) string {
	if parent == nil {
		return "the root group"
	}
	return *parent
}
