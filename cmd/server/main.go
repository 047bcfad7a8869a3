package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	httpapi "folio/internal/http"
	jwttoken "folio/internal/jwt_token"
	numberingcache "folio/internal/numbering/cache"
	numberinghandler "folio/internal/numbering/handler"
	numberingmetrics "folio/internal/numbering/metrics"
	numberingservice "folio/internal/numbering/service"
	numberingstore "folio/internal/numbering/store/postgres"
	"folio/internal/platform/config"
	"folio/internal/platform/httpserver"
	"folio/internal/platform/logger"
	platformmetrics "folio/internal/platform/metrics"
	"folio/internal/platform/postgres"
	redisclient "folio/internal/platform/redis"
	"folio/pkg/platform/outbox"
	outboxkafka "folio/pkg/platform/outbox/kafka"
)

// main wires dependencies and runs the HTTP server and the outbox relay
// until SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("folio stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("folio stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(cfg.Database.URL, log); err != nil {
			return err
		}
	}
	db, err := postgres.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	platformMetrics := platformmetrics.New()
	store := numberingstore.New(db, numberingstore.WithTxTimeout(cfg.Database.TxTimeout))

	opts := []numberingservice.Option{
		numberingservice.WithLogger(log),
		numberingservice.WithMetrics(numberingmetrics.New()),
		numberingservice.WithRetryPolicy(numberingservice.RetryPolicy{
			MaxRetries:      cfg.Numbering.RetryMaxAttempts,
			InitialInterval: cfg.Numbering.RetryInitial,
			MaxInterval:     cfg.Numbering.RetryMax,
		}),
		numberingservice.WithAuditLimit(cfg.Numbering.AuditLimit),
		numberingservice.WithSuggestionSize(cfg.Numbering.SuggestionSize),
	}

	checks := map[string]httpapi.HealthCheck{"postgres": db.PingContext}

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		opts = append(opts, numberingservice.WithLedgerCache(
			numberingcache.NewRedisLedger(rdb.Client, numberingcache.WithTTL(cfg.Redis.LedgerTTL)),
		))
		checks["redis"] = rdb.Health
		log.Info("ledger cache enabled", "ttl", cfg.Redis.LedgerTTL)
	}

	numbering, err := numberingservice.New(store, store, opts...)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer)
	handler := numberinghandler.New(numbering, log, platformMetrics,
		jwttoken.NewJWTServiceAdapter(jwtService), cfg.Server.RequestTimeout)

	var relay *outbox.Relay
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := outboxkafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer publisher.Close()
		if err := publisher.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.Topic, "error", err)
		}

		relay, err = outbox.NewRelay(
			outbox.NewPostgresStore(db),
			&meteredPublisher{next: publisher, metrics: platformMetrics},
			outbox.WithBatchSize(cfg.Kafka.RelayBatchSize),
			outbox.WithPollInterval(cfg.Kafka.RelayInterval),
			outbox.WithLogger(log),
		)
		if err != nil {
			return err
		}
	} else {
		log.Info("no kafka brokers configured, audit events stay in the outbox")
	}

	srv := httpserver.New(cfg.Server, httpapi.NewRouter(checks, handler))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting folio", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if relay != nil {
		g.Go(func() error {
			log.Info("outbox relay started", "topic", cfg.Kafka.Topic)
			return relay.Run(gctx)
		})
	}

	return g.Wait()
}

// meteredPublisher counts relay deliveries.
type meteredPublisher struct {
	next    outbox.Publisher
	metrics *platformmetrics.Metrics
}

func (p *meteredPublisher) Publish(ctx context.Context, msg outbox.Message) error {
	if err := p.next.Publish(ctx, msg); err != nil {
		p.metrics.IncrementOutboxFailures()
		return err
	}
	p.metrics.IncrementOutboxPublished()
	return nil
}
