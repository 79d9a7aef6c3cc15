package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/IcodeNet/employee-scheduling-api/internal/api"
	"github.com/IcodeNet/employee-scheduling-api/internal/cqrs"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/auth"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/document"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/setting"
	"github.com/IcodeNet/employee-scheduling-api/pkg/config"
	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
	"github.com/IcodeNet/employee-scheduling-api/pkg/mongox"
	"github.com/IcodeNet/employee-scheduling-api/pkg/redisx"
)

const version = "0.1.0"

func main() {
	// Initialize configuration and logger
	cfg, log, err := config.Initialize()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// Ensure logger is flushed on exit
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting settings server",
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	if err := run(cfg, log); err != nil {
		log.Error("Server error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}

	log.Info("Server gracefully stopped")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	// Redis serves as the store, the event transport, or both
	var redisClient *redisx.Client
	needsRedis := strings.EqualFold(cfg.Store.Backend, "redis") ||
		(cfg.Events.Enabled && strings.EqualFold(cfg.Events.Transport, cqrs.TransportRedisStream))
	if needsRedis {
		client, err := redisx.NewClient(cfg.Redis.URL, log)
		if err != nil {
			return err
		}
		redisClient = client
		closers = append(closers, func() { _ = client.Close() })
	}

	backend, closeBackend, err := openBackend(ctx, cfg, log, redisClient)
	if err != nil {
		return err
	}
	if closeBackend != nil {
		closers = append(closers, closeBackend)
	}

	durability := document.Durability{
		Level:       document.DurabilityLevel(strings.ToLower(cfg.Store.Durability.Level)),
		ReplicateTo: cfg.Store.Durability.ReplicateTo,
		PersistTo:   cfg.Store.Durability.PersistTo,
		Timeout:     cfg.Store.Durability.Timeout,
	}

	settingRepo, err := document.NewRepository(setting.DocumentType, backend,
		document.WithLogger(log), document.WithDurability(durability))
	if err != nil {
		return fmt.Errorf("failed to create setting repository: %w", err)
	}
	userRepo, err := document.NewRepository(auth.DocumentType, backend,
		document.WithLogger(log), document.WithDurability(durability))
	if err != nil {
		return fmt.Errorf("failed to create user repository: %w", err)
	}

	users, err := auth.NewUserStore(userRepo)
	if err != nil {
		return err
	}
	hasher := auth.NewBcryptVerifier(0)
	authService := auth.NewService(
		users,
		hasher,
		auth.NewLocalStrategy(users, hasher, log),
		auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTExpiration),
	)

	var (
		bus       *cqrs.Bus
		publisher setting.EventPublisher
	)
	if cfg.Events.Enabled {
		busConfig := cqrs.BusConfig{Transport: strings.ToLower(cfg.Events.Transport)}
		if redisClient != nil {
			busConfig.Redis = redisClient.Client
			busConfig.ConsumerGroup = consumerGroup()
		}
		bus, err = cqrs.NewBus(busConfig, log)
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		publisher = bus
	}

	server, err := api.NewServer(cfg, api.Dependencies{
		Settings: setting.NewService(settingRepo, publisher, log),
		Auth:     authService,
		Store:    settingRepo,
		Bus:      bus,
		Backend:  strings.ToLower(cfg.Store.Backend),
		Version:  version,
	}, log)
	if err != nil {
		return err
	}

	return server.Start(ctx)
}

// openBackend connects the configured document store. The returned func,
// when non-nil, releases it.
func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger, redisClient *redisx.Client) (document.Backend, func(), error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case "memory":
		log.Warn("Using in-memory document store; data is lost on restart")
		return document.NewMemoryBackend(), nil, nil

	case "redis":
		return document.NewRedisBackend(redisClient.Client, document.WithKeyPrefix(cfg.Redis.KeyPrefix)), nil, nil

	case "mongo":
		client, err := mongox.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Timeout, log)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = mongox.Disconnect(client, 5*time.Second) }

		backend := document.NewMongoBackend(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
		if err := backend.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		return backend, closeFn, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}

		backend := document.NewPostgresBackend(pool, cfg.Postgres.Table)
		if err := backend.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to create postgres schema: %w", err)
		}
		log.Info("PostgreSQL pool connected", zap.String("table", cfg.Postgres.Table))
		return backend, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// consumerGroup is unique per process so every server sees every event
func consumerGroup() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	return fmt.Sprintf("settings-server-%s-%d", hostname, time.Now().UnixNano())
}
