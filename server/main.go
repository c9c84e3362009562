// Command server exposes a forest over HTTP.
package main

import (
	"context"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meikuraledutech/tree"
	"github.com/meikuraledutech/tree/internal/cli"
	"github.com/meikuraledutech/tree/metrics"
)

func main() {
	cfg, _, err := cli.LoadConfig(os.Getenv("TREE_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := cli.NewLogger(os.Stderr, cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	store, err := cli.OpenStore(context.Background(), cfg)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	engine := tree.NewEngine(store, cli.EngineOptions(cfg,
		tree.WithLogger(logger),
		tree.WithObserver(metrics.New(reg)),
	)...)

	app := newApp(store, engine, reg, logger)
	logger.Info("listening", "addr", cfg.Server.Addr, "driver", cfg.Database.Driver)
	log.Fatal(app.Listen(cfg.Server.Addr))
}
