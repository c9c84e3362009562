package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meikuraledutech/tree"
	"github.com/meikuraledutech/tree/treetest"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// testDSN returns DATABASE_URL when set and otherwise starts one PostgreSQL
// container for the whole package.
func testDSN(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL tests in short mode")
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	containerOnce.Do(func() {
		ctx := context.Background()
		container, err := tcpostgres.Run(ctx,
			"postgres:18-alpine",
			tcpostgres.WithDatabase("tree"),
			tcpostgres.WithUsername("test"),
			tcpostgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			containerErr = fmt.Errorf("start postgres container: %w", err)
			return
		}
		containerDSN, containerErr = container.ConnectionString(ctx, "sslmode=disable")
		if containerErr != nil {
			_ = container.Terminate(ctx)
		}
	})
	if containerErr != nil {
		t.Skipf("postgres unavailable: %v", containerErr)
	}
	return containerDSN
}

func createTestStore(t *testing.T) *PGStore {
	t.Helper()
	ctx := context.Background()
	s, err := Connect(ctx, testDSN(t))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.DropSchema(ctx))
	require.NoError(t, s.CreateSchema(ctx))
	return s
}

func TestSuite(t *testing.T) {
	treetest.RunSuite(t, func(t *testing.T) tree.Store {
		return createTestStore(t)
	})
}

func TestInsertNodeDuplicate(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertNode(ctx, &tree.Node{ID: "a"}))
	err := s.InsertNode(ctx, &tree.Node{ID: "a"})
	require.ErrorIs(t, err, tree.ErrNodeExists)
}

func TestDataRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := tree.NewEngine(s).Create(ctx, &tree.Node{ID: "a", Data: []byte(`{"title": "A", "tags": [1, 2]}`)}, nil)
	require.NoError(t, err)

	n, err := s.GetNode(ctx, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"A","tags":[1,2]}`, string(n.Data))
}

func TestUpdateMissingNode(t *testing.T) {
	s := createTestStore(t)
	err := s.UpdateNode(context.Background(), &tree.Node{ID: "ghost"})
	require.ErrorIs(t, err, tree.ErrNodeNotFound)
}

func TestTxOptions(t *testing.T) {
	ctx := context.Background()
	s, err := Connect(ctx, testDSN(t), WithTxOptions(pgx.TxOptions{IsoLevel: pgx.Serializable}))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	var level string
	err = s.InTx(ctx, func(q tree.Querier) error {
		return q.(*queries).db.QueryRow(ctx, `SHOW transaction_isolation`).Scan(&level)
	})
	require.NoError(t, err)
	assert.Equal(t, "serializable", level)
}
