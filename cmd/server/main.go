// The mintgate server hosts the forwarder boundary, the issuance state
// machine, the relay dispatcher, and the registry read API in one process.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"mintgate/internal/chain"
	"mintgate/internal/domain"
	"mintgate/internal/events"
	"mintgate/internal/forwarder"
	"mintgate/internal/forwarder/noncestore"
	"mintgate/internal/issuance"
	"mintgate/internal/platform/config"
	"mintgate/internal/platform/httpserver"
	"mintgate/internal/platform/logger"
	platformredis "mintgate/internal/platform/redis"
	"mintgate/internal/registry"
	regstore "mintgate/internal/registry/store"
	"mintgate/internal/relay"
	httptransport "mintgate/internal/transport/http"
	"mintgate/internal/treasury"
)

// treasuryAccount is the ledger address the payout pool lives at.
const treasuryAccount = domain.Address("mintgate-treasury")

func main() {
	log := logger.New()
	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger := chain.New()
	if err := ledger.Execute(ctx, func(tx *chain.Tx) error {
		return tx.Credit(treasuryAccount, cfg.TreasuryBalance)
	}); err != nil {
		log.Error("genesis treasury funding failed", "error", err)
		os.Exit(1)
	}
	manager := treasury.New(ledger, treasuryAccount, cfg.PayoutAmount, cfg.LowBalanceWarn, log)

	var issuanceOpts []issuance.Option
	if len(cfg.KafkaBrokers) > 0 {
		if err := events.EnsureTopic(ctx, cfg.KafkaBrokers, cfg.IssuanceTopic, 3); err != nil {
			log.Error("ensure issuance topic", "error", err)
			os.Exit(1)
		}
		publisher, err := events.NewPublisher(cfg.KafkaBrokers, cfg.IssuanceTopic, log)
		if err != nil {
			log.Error("create event publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		issuanceOpts = append(issuanceOpts, issuance.WithPublisher(publisher))
	}
	svc := issuance.New(ledger, manager, log, issuanceOpts...)

	var nonces forwarder.NonceStore = noncestore.NewMemory()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		nonces = noncestore.NewRedis(redisClient.Client)
	}
	verifier := forwarder.New(nonces)

	var relayClient relay.Client
	if cfg.RelayURL != "" {
		relayClient = relay.NewHTTPClient(cfg.RelayURL)
	} else {
		log.Info("no relay configured, using in-process loopback relay")
		relayClient = relay.NewLoopback(svc)
	}
	attempts := relay.NewAttemptStore()
	dispatcher := relay.New(verifier, relayClient, svc, svc, attempts, log,
		relay.WithPolicy(relay.Policy{
			MaxRetries:   cfg.RelayMaxRetries,
			BackoffBase:  cfg.RelayBackoffBase,
			BackoffCap:   5 * time.Second,
			RelayTimeout: cfg.RelayTimeout,
		}))

	var members regstore.MemberStore = regstore.NewMemory()
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := regstore.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("ensure registry schema", "error", err)
			os.Exit(1)
		}
		members = pg
	}

	handler := httptransport.NewHandler(dispatcher, attempts, registry.NewService(members), manager, ledger, log)
	router := httptransport.NewRouter(handler, []byte(cfg.OperatorJWTSecret))
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting mintgate server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if len(cfg.KafkaBrokers) == 0 {
		// Without an event stream the sync worker never runs, so keep the
		// local registry mirror fresh straight from the ledger.
		backfiller := registry.NewBackfiller(registry.LedgerSource{Ledger: ledger}, members,
			cfg.BackfillWindow, cfg.BackfillInterval, log)
		g.Go(func() error {
			err := backfiller.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
