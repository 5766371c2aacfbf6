package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agenthands/loregraph/internal/config"
	"github.com/agenthands/loregraph/internal/core"
	"github.com/agenthands/loregraph/internal/core/summary"
	"github.com/agenthands/loregraph/internal/database"
	"github.com/agenthands/loregraph/internal/driver"
	"github.com/agenthands/loregraph/internal/llm"
	"github.com/agenthands/loregraph/internal/logging"
	"github.com/agenthands/loregraph/internal/metrics"
	"github.com/agenthands/loregraph/internal/server"
	"github.com/agenthands/loregraph/internal/store"
)

func main() {
	os.Exit(start())
}

// start returns the process exit code so deferred cleanup, including the
// logger flush, runs before the process exits.
func start() int {
	envErr := godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Debug("No .env file loaded", zap.Error(envErr))
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return 1
	}
	return 0
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(context.Background()); err != nil {
			logger.Warn("Failed to close storage backend", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector("loregraph")

	svc := core.NewDetectionService(backend, backend, logger.Named("detection"))
	svc.Defaults = cfg.Detection.Options()
	svc.Metrics = collector

	var summarizer *summary.Summarizer
	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	switch {
	case err != nil:
		logger.Warn("Summarization disabled: LLM client unavailable", zap.Error(err))
	case llmClient == nil:
		logger.Info("Summarization disabled: no LLM provider configured")
	default:
		summarizer = summary.NewSummarizer(llmClient, cfg.Summary, logger.Named("summary"))
	}

	srv := server.New(svc, backend, summarizer, collector, logger.Named("http"))
	srv.DetectTimeout = cfg.Server.DetectTimeout()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("port", cfg.Server.Port),
			zap.String("storage_backend", cfg.Storage.Backend),
			zap.String("llm_provider", cfg.LLM.Provider))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemgraph:
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, logger.Named("memgraph"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Memgraph: %w", err)
		}
		if err := d.BuildIndices(ctx); err != nil {
			logger.Warn("Failed to build Memgraph indices", zap.Error(err))
		}
		return store.NewMemgraphStore(d, logger.Named("memgraph")), nil

	case config.BackendPostgres:
		if err := database.Migrate(cfg.Postgres.URL, cfg.Postgres.MigrationsPath, logger); err != nil {
			return nil, err
		}
		db, err := database.NewConnection(ctx, &database.Config{
			URL:            cfg.Postgres.URL,
			MaxConnections: cfg.Postgres.MaxConnections,
		})
		if err != nil {
			return nil, err
		}
		return store.NewPostgresStore(db.Pool, logger.Named("postgres")), nil

	default:
		logger.Warn("Using in-memory storage; communities are lost on restart")
		return store.NewMemoryStore(), nil
	}
}
