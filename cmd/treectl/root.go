package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/tree"
	"github.com/meikuraledutech/tree/internal/cli"
)

var (
	// Global state set during PersistentPreRunE
	cfg    *cli.Config
	logger *slog.Logger

	// Persistent flags
	cfgFile  string
	dbDriver string
	dbTarget string
)

var rootCmd = &cobra.Command{
	Use:   "treectl",
	Short: "Maintain ordered forests in a closure table",
	Long: `treectl - closure-table forest maintenance

Creates the schema, seeds forests from YAML, moves and deletes nodes and checks
that the closure rows and sibling positions are consistent.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		var err error
		cfg, _, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}
		cfg.Database.Driver = resolveString(dbDriver, cfg.Database.Driver)
		if dbTarget != "" {
			if cfg.Database.Driver == cli.DriverSQLite {
				cfg.Database.Path = dbTarget
			} else {
				cfg.Database.URL = dbTarget
			}
		}

		logger, err = cli.NewLogger(os.Stderr, cfg.Log)
		if err != nil {
			return cli.ConfigError("configuring logger", err)
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command group IDs
const (
	groupSchema = "schema"
	groupNodes  = "nodes"
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: auto-discover tree.yaml)")
	pf.StringVar(&dbDriver, "driver", "", "database driver: sqlite or postgres")
	pf.StringVar(&dbTarget, "db", "", "sqlite path or postgres URL")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupSchema, Title: "Schema:"},
		&cobra.Group{ID: groupNodes, Title: "Nodes:"},
	)

	schemaCmd.GroupID = groupSchema
	seedCmd.GroupID = groupSchema
	checkCmd.GroupID = groupSchema
	rootCmd.AddCommand(schemaCmd, seedCmd, checkCmd)

	showCmd.GroupID = groupNodes
	moveCmd.GroupID = groupNodes
	deleteCmd.GroupID = groupNodes
	restoreCmd.GroupID = groupNodes
	rootCmd.AddCommand(showCmd, moveCmd, deleteCmd, restoreCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// openEngine opens the configured store and an engine on top of it. The
// caller closes the store.
func openEngine(ctx context.Context) (tree.Store, *tree.Engine, error) {
	s, err := cli.OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return s, tree.NewEngine(s, cli.EngineOptions(cfg, tree.WithLogger(logger))...), nil
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parentArg maps an empty parent flag to the root group.
func parentArg(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
