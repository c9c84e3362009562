package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/tree/internal/cli"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create or drop the node and closure tables",
}

var schemaCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the tables if they don't exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.CreateSchema(cmd.Context()); err != nil {
			return cli.DBConnectError("creating schema", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Schema created.")
		return nil
	},
}

var schemaDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the tables and every node in them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.DropSchema(cmd.Context()); err != nil {
			return cli.DBConnectError("dropping schema", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Schema dropped.")
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaCreateCmd, schemaDropCmd)
}
