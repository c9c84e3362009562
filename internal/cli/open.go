package cli

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/tree"
	"github.com/meikuraledutech/tree/postgres"
	"github.com/meikuraledutech/tree/sqlite"
)

// OpenStore connects to the store selected by database.driver.
func OpenStore(ctx context.Context, cfg *Config) (tree.Store, error) {
	if cfg.Database.Driver == DriverSQLite {
		s, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, DBConnectError("opening sqlite database", err)
		}
		return s, nil
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return nil, ConfigError("building database DSN", err)
	}
	var opts []postgres.Option
	if iso := cfg.Database.Isolation; iso != "" {
		opts = append(opts, postgres.WithTxOptions(pgx.TxOptions{IsoLevel: pgx.TxIsoLevel(iso)}))
	}
	s, err := postgres.Connect(ctx, dsn, opts...)
	if err != nil {
		return nil, DBConnectError("connecting to postgres", err)
	}
	return s, nil
}

// EngineOptions returns the engine options implied by cfg.
func EngineOptions(cfg *Config, opts ...tree.Option) []tree.Option {
	return append([]tree.Option{tree.WithPromoteChildren(cfg.Tree.PromoteChildren)}, opts...)
}
