package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/tree"
)

// chdir switches to dir for the rest of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldCwd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })
	require.NoError(t, os.Chdir(dir))
}

func TestFindConfigFile_ExplicitPath(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("server:\n  addr: :9000\n"), 0o644))

	path, err := findConfigFile(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, tmpFile, path)
}

func TestFindConfigFile_ExplicitPathNotFound(t *testing.T) {
	_, err := findConfigFile("/nonexistent/path/tree.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestFindConfigFile_AutoDiscovery(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	configPath := filepath.Join(root, "tree.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("log:\n  level: debug\n"), 0o644))
	nested := filepath.Join(root, "deep", "nested")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	chdir(t, nested)

	path, err := findConfigFile("")
	require.NoError(t, err)

	// Resolve symlinks for comparison (macOS /var -> /private/var)
	expectedPath, _ := filepath.EvalSymlinks(configPath)
	actualPath, _ := filepath.EvalSymlinks(path)
	assert.Equal(t, expectedPath, actualPath)
}

func TestFindConfigFile_StopsAtRepoRoot(t *testing.T) {
	outer := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outer, "tree.yaml"), []byte("{}"), 0o644))
	repo := filepath.Join(outer, "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0o755))
	chdir(t, repo)

	path, err := findConfigFile("")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	chdir(t, dir)

	cfg, path, err := LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "tree.db", cfg.Database.Path)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Tree.PromoteChildren)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
database:
  driver: postgres
  host: db.internal
  name: forest
  user: app
tree:
  promote_children: true
log:
  format: json
`), 0o644))
	t.Setenv("TREE_DATABASE_PORT", "6543")
	t.Setenv("TREE_SERVER_ADDR", ":9999")

	cfg, path, err := LoadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, file, path)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.True(t, cfg.Tree.PromoteChildren)
	assert.Equal(t, "json", cfg.Log.Format)

	dsn, err := cfg.DSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://app@db.internal:6543/forest?sslmode=prefer", dsn)
}

func TestLoadConfig_RejectsUnknownDriver(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(file, []byte("database:\n  driver: mysql\n"), 0o644))

	_, _, err := LoadConfig(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
}

func TestLoadConfig_Isolation(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(file, []byte("database:\n  isolation: serializable\n"), 0o644))

	cfg, _, err := LoadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, "serializable", cfg.Database.Isolation)

	require.NoError(t, os.WriteFile(file, []byte("database:\n  isolation: snapshot\n"), 0o644))
	_, _, err = LoadConfig(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.isolation")
}

func TestDSN(t *testing.T) {
	c := &Config{Database: DatabaseConfig{URL: "postgres://x/y"}}
	dsn, err := c.DSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://x/y", dsn)

	c = &Config{Database: DatabaseConfig{Host: "h", Port: 5432, Name: "n", User: "u", Password: "p w"}}
	dsn, err = c.DSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p%20w@h:5432/n", dsn)

	_, err = (&Config{}).DSN()
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "op", "move")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"op":"move"`)

	_, err = NewLogger(&buf, LogConfig{Level: "loud"})
	require.Error(t, err)
}

func TestOpError(t *testing.T) {
	err := OpError("move", fmt.Errorf("%w: cycle", tree.ErrInvalidOperation))
	assert.Equal(t, ExitRejected, err.Code)
	assert.ErrorIs(t, err, tree.ErrInvalidOperation)

	assert.Equal(t, ExitGeneral, OpError("move", errors.New("boom")).Code)
}

func TestOpenStoreSQLite(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "t.db")}}
	s, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.GetNode(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, n)
}
