package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	marketplaceservice "tokenmart/contexts/trading-core/marketplace-service"
	postgresadapter "tokenmart/contexts/trading-core/marketplace-service/adapters/postgres"
	workerapp "tokenmart/contexts/trading-core/marketplace-service/application/workers"
	"tokenmart/contexts/trading-core/marketplace-service/ports"
	"tokenmart/internal/platform/config"
	"tokenmart/internal/platform/db"
	"tokenmart/internal/platform/httpserver"
	"tokenmart/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server      *httpserver.Server
	postgres    *db.Postgres
	outboxRelay *workerapp.OutboxRelay
	relayEvery  time.Duration
	logger      *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	outboxRelay  workerapp.OutboxRelay
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	module := marketplaceservice.NewModule(marketplaceservice.Dependencies{
		Listings:        repo,
		Ledgers:         postgresadapter.NewLedgerResolver(pg.DB, logger),
		Idempotency:     repo,
		Clock:           postgresadapter.SystemClock{},
		IDGenerator:     postgresadapter.UUIDGenerator{},
		OperatorAddress: cfg.OperatorAddress,
		IdempotencyTTL:  7 * 24 * time.Hour,
		Logger:          logger,
	})

	var subscriber ports.EventSubscriber
	var relay *workerapp.OutboxRelay
	if cfg.EnableEventFeed {
		bus, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
		if err != nil {
			pg.Close()
			return nil, err
		}
		subscriber = bus
		if cfg.EnableOutboxRelay {
			relay = &workerapp.OutboxRelay{
				Outbox:    repo,
				Publisher: bus,
				Clock:     postgresadapter.SystemClock{},
				Topic:     cfg.EventsTopic,
				BatchSize: 100,
				Logger:    logger,
			}
		}
	}

	server, err := httpserver.New(module, subscriber, cfg.EventsTopic, logger, normalizeAddr(cfg.HTTPPort))
	if err != nil {
		pg.Close()
		return nil, err
	}
	return &APIApp{
		server:      server,
		postgres:    pg,
		outboxRelay: relay,
		relayEvery:  cfg.OutboxInterval,
		logger:      logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		pg.Close()
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	return &WorkerApp{
		postgres: pg,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			Topic:     cfg.EventsTopic,
			BatchSize: 100,
			Logger:    logger,
		},
		pollInterval: cfg.OutboxInterval,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	if a.outboxRelay != nil {
		go func() {
			if err := a.outboxRelay.Run(ctx, a.relayEvery); err != nil {
				a.logger.Error("outbox relay stopped",
					"event", "bootstrap_outbox_relay_stopped",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}()
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)
	return w.outboxRelay.Run(ctx, w.pollInterval)
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
