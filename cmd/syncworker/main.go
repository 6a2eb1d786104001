// The sync worker keeps the off-chain registry mirror consistent: it consumes
// the issuance event stream and periodically reconciles against the chain
// event log, which always wins.
package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"mintgate/internal/events"
	"mintgate/internal/platform/config"
	"mintgate/internal/platform/logger"
	"mintgate/internal/registry"
	regstore "mintgate/internal/registry/store"
)

func main() {
	log := logger.New()
	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Error("MINTGATE_KAFKA_BROKERS is required for the sync worker")
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		log.Error("MINTGATE_DATABASE_URL is required for the sync worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	members := regstore.NewPostgres(db)
	if err := members.EnsureSchema(ctx); err != nil {
		log.Error("ensure registry schema", "error", err)
		os.Exit(1)
	}

	if err := events.EnsureTopic(ctx, cfg.KafkaBrokers, cfg.IssuanceTopic, 3); err != nil {
		log.Error("ensure issuance topic", "error", err)
		os.Exit(1)
	}
	synchronizer := registry.NewSynchronizer(members, log)
	consumer, err := events.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.IssuanceTopic, synchronizer, log)
	if err != nil {
		log.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	backfiller := registry.NewBackfiller(registry.NewHTTPSource(cfg.GatewayURL), members,
		cfg.BackfillWindow, cfg.BackfillInterval, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("consuming issuance events",
			"topic", cfg.IssuanceTopic,
			"group", cfg.ConsumerGroup,
		)
		err := consumer.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info("backfill reconciliation started",
			"window", cfg.BackfillWindow,
			"interval", cfg.BackfillInterval.String(),
		)
		err := backfiller.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("sync worker exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("sync worker stopped")
}
