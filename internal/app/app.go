package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/operatornet/fedgate/internal/config"
	"github.com/operatornet/fedgate/internal/contract"
	"github.com/operatornet/fedgate/internal/httpserver"
	"github.com/operatornet/fedgate/internal/httpserver/deps"
	"github.com/operatornet/fedgate/internal/ledger"
	"github.com/operatornet/fedgate/internal/ledger/ledgerhttp"
	"github.com/operatornet/fedgate/internal/logger"
	"github.com/operatornet/fedgate/internal/query"
	"github.com/operatornet/fedgate/internal/redis"
	redisstore "github.com/operatornet/fedgate/internal/store/redis"
	"github.com/operatornet/fedgate/internal/submitter"
	"github.com/operatornet/fedgate/internal/subscription"
	"github.com/operatornet/fedgate/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	embedded    *ledger.Embedded // nil in remote mode
	registry    *subscription.Registry
	engine      *subscription.Engine
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	signer, err := ledger.NewSigner(cfg.PrivateKey)
	if err != nil {
		loggerClient.Errorf("Invalid FEDGATE_PRIVATE_KEY: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("gateway identity derived",
		logger.String("address", signer.Address().Hex()),
		logger.String("role", cfg.DomainRole))

	// Ledger node: remote client when an URL is configured, otherwise an
	// embedded single-node ledger exposed to peers under /ledger.
	var (
		node          ledger.Node
		embedded      *ledger.Embedded
		ledgerHandler http.Handler
	)
	if cfg.LedgerURL != "" {
		loggerClient.Infof("Using remote ledger at %s", cfg.LedgerURL)
		node = ledgerhttp.NewClient(cfg.LedgerURL, cfg.ReadTimeout)
	} else {
		loggerClient.Info("Running embedded ledger node",
			logger.Duration("block_interval", cfg.BlockInterval))
		embedded = ledger.NewEmbedded(contract.New(), cfg.BlockInterval, loggerClient)
		node = embedded
		ledgerHandler = ledgerhttp.Handler(embedded, loggerClient)
	}

	// Redis is optional; without it subscriptions live in memory only.
	var redisClient *goredis.Client
	var store subscription.Store
	if cfg.RedisAddr != "" {
		redisClient, err = redis.New(redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
		}, loggerClient)
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		store = redisstore.NewStore(redisClient)
	} else {
		loggerClient.Info("Redis not configured, subscriptions are in-memory only")
	}

	registry := subscription.NewRegistry(store, loggerClient)
	if err := registry.Load(context.Background()); err != nil {
		loggerClient.Warn("failed to load persisted subscriptions",
			logger.Error(err))
	}

	engine := subscription.NewEngine(node, registry, loggerClient, subscription.EngineOptions{
		ScanInterval:    cfg.ScanInterval,
		DeliveryTimeout: cfg.DeliveryTimeout,
		DeliveryRetries: cfg.DeliveryRetries,
	})

	sub := submitter.New(node, signer, loggerClient, submitter.Options{
		Retries:        cfg.SubmitRetries,
		ReceiptTimeout: cfg.ReceiptTimeout,
		PollInterval:   cfg.ReceiptPollInterval,
	})

	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		DomainRole:    cfg.DomainRole,
		Node:          node,
		Submitter:     sub,
		Facade:        query.New(node, signer.Address()),
		Registry:      registry,
		LedgerHandler: ledgerHandler,
		RedisClient:   redisClient,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		embedded:    embedded,
		registry:    registry,
		engine:      engine,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting fedgate v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("fedgate %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the block sealer (embedded mode only)
	if a.embedded != nil {
		if err := a.embedded.Start(ctx); err != nil {
			return fmt.Errorf("failed to start ledger sealer: %w", err)
		}
		a.logger.Info("ledger sealer started",
			logger.Duration("interval", a.cfg.BlockInterval))
	}

	// Start the subscription engine
	if err := a.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start subscription engine: %w", err)
	}
	a.logger.Info("subscription engine started",
		logger.Duration("interval", a.cfg.ScanInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	// Stop event delivery before the ledger stops answering
	a.engine.Stop()

	if a.embedded != nil {
		a.embedded.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ fedgate stopped cleanly")
	return nil
}
