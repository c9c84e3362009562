package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/tree/internal/cli"
)

// run executes treectl with args against the sqlite file db and returns
// what it printed.
func run(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--driver", "sqlite", "--db", db}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags puts every flag of cmd and its subcommands back to its default,
// since cobra keeps flag state between Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

const seedYAML = `
nodes:
  - id: docs
    children:
      - id: intro
      - id: guide
        children:
          - id: setup
  - id: blog
`

func TestTreectlWorkflow(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "forest.yaml"), []byte(seedYAML), 0o644))
	t.Chdir(dir)
	db := filepath.Join(dir, "tree.db")

	out, err := run(t, db, "schema", "create")
	require.NoError(t, err)
	assert.Equal(t, "Schema created.\n", out)

	out, err = run(t, db, "seed", "forest.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Seeded 5 nodes.\n", out)

	out, err = run(t, db, "move", "setup", "--parent", "blog", "--position", "0")
	require.NoError(t, err)
	assert.Equal(t, "Moved setup to blog at 0.\n", out)

	out, err = run(t, db, "move", "blog", "--parent", "setup")
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, cli.ExitRejected, exitErr.Code)
	assert.Empty(t, out)

	out, err = run(t, db, "delete", "intro")
	require.NoError(t, err)
	assert.Equal(t, "Deleted intro.\n", out)

	out, err = run(t, db, "show")
	require.NoError(t, err)
	assert.Equal(t, "- docs [0]\n  - guide [0]\n- blog [1]\n  - setup [0]\n", out)

	out, err = run(t, db, "restore", "intro")
	require.NoError(t, err)
	assert.Equal(t, "Restored intro at 1.\n", out)

	out, err = run(t, db, "delete", "docs", "--subtree", "--with-self", "--hard")
	require.NoError(t, err)
	assert.Equal(t, "Deleted 3 nodes.\n", out)

	out, err = run(t, db, "show", "--root", "blog")
	require.NoError(t, err)
	assert.Equal(t, "- blog [0]\n  - setup [0]\n", out)

	out, err = run(t, db, "check")
	require.NoError(t, err)
	assert.Equal(t, "OK\n", out)
}

func TestTreectlRejectsBadDriver(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	t.Chdir(dir)

	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"--config", "missing.yaml", "check"})
	err := rootCmd.Execute()
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, cli.ExitConfig, exitErr.Code)
}
