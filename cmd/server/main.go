// Command server wires the transfer engine and serves its HTTP API.
// Storage backends are chosen by configuration: Postgres, Redis, and
// Kafka when configured, in-process fallbacks otherwise.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/account"
	"tally/internal/audit"
	"tally/internal/idempotency"
	"tally/internal/platform/config"
	"tally/internal/platform/httpserver"
	"tally/internal/platform/kafka"
	"tally/internal/platform/logger"
	"tally/internal/platform/postgres"
	"tally/internal/platform/redis"
	"tally/internal/token"
	"tally/internal/transfer"
	"tally/internal/transfer/metrics"
	httptransport "tally/internal/transport/http"
	txcontext "tally/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var health []httptransport.HealthCheck

	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}

	var (
		accountStore  account.Store
		transferStore transfer.Store
		auditStore    audit.Store
		runner        txcontext.Runner
	)
	if db != nil {
		defer db.Close()
		accountStore = account.NewPostgresStore(db)
		transferStore = transfer.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		runner = &txcontext.SQLRunner{DB: db}
		health = append(health, httptransport.HealthCheck{Name: "postgres", Check: db.Ping})
		log.Info("using postgres storage")
	} else {
		accountStore = account.NewInMemoryStore()
		transferStore = transfer.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		runner = txcontext.PassthroughRunner{}
		log.Info("using in-memory storage")
	}

	var idemStore idempotency.Store
	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		idemStore = idempotency.NewRedisStore(redisClient.Client)
		health = append(health, httptransport.HealthCheck{
			Name:  "redis",
			Check: func() error { return redisClient.Health(context.Background()) },
		})
		log.Info("using redis idempotency store")
	} else {
		idemStore = idempotency.NewInMemoryStore()
	}

	chainOpts := []audit.Option{audit.WithLogger(log)}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, log)
	if err != nil {
		log.Error("kafka connection failed", "error", err)
		os.Exit(1)
	}
	if producer != nil {
		defer producer.Close()
		chainOpts = append(chainOpts, audit.WithPublisher(audit.NewPublisher(producer, cfg.AuditTopic, log)))
		log.Info("mirroring audit entries", "topic", cfg.AuditTopic)
	}

	chain, err := audit.NewChain(ctx, auditStore, chainOpts...)
	if err != nil {
		log.Error("audit chain recovery failed", "error", err)
		os.Exit(1)
	}

	anomalyCfg := transfer.DefaultAnomalyConfig()
	anomalyCfg.LargeAmount = cfg.LargeAmountThreshold
	anomalyCfg.NewRecipientAmount = cfg.NewRecipientThreshold

	transfers := transfer.NewService(accountStore, transferStore, idemStore, chain, runner,
		transfer.WithLogger(log),
		transfer.WithMetrics(metrics.New()),
		transfer.WithLimits(cfg.MaxTransferAmount, cfg.LockTimeout, cfg.LockRetries),
		transfer.WithIdempotencyTTL(cfg.IdempotencyTTL),
		transfer.WithAnomalyConfig(anomalyCfg),
	)
	accounts := account.NewService(accountStore, chain)

	validator := token.NewJWTService(cfg.JWTSigningKey, "tally")
	handler := httptransport.NewHandler(transfers, accounts, log, health...)
	router := httptransport.NewRouter(handler, validator, log)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
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

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
