package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlscribe/sqlscribe/internal/api"
	"github.com/sqlscribe/sqlscribe/internal/auth"
	"github.com/sqlscribe/sqlscribe/internal/config"
	"github.com/sqlscribe/sqlscribe/internal/executor"
	"github.com/sqlscribe/sqlscribe/internal/llm"
	"github.com/sqlscribe/sqlscribe/internal/observability"
	"github.com/sqlscribe/sqlscribe/internal/pipeline"
	"github.com/sqlscribe/sqlscribe/internal/prompt"
	"github.com/sqlscribe/sqlscribe/internal/results"
	"github.com/sqlscribe/sqlscribe/internal/schema"
	s3store "github.com/sqlscribe/sqlscribe/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlscribe-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	connection, err := executor.Open(context.Background(), executor.Config{
		Engine:   cfg.Database.Engine,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Name,
		Catalog:  cfg.Database.Catalog,
	})
	if err != nil {
		logger.Error("failed to open database connection", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = connection.DB.Close() }()

	tokens := &llm.TokenSummary{}
	client, err := llm.NewClient(llm.Config{
		BaseURL:   cfg.AI.BaseURL,
		APIKey:    cfg.AI.APIKey,
		Model:     cfg.AI.Model,
		MaxTokens: cfg.AI.MaxTokens,
		Timeout:   cfg.AI.Timeout,
	}, tokens)
	if err != nil {
		logger.Error("failed to initialize completion client", slog.Any("error", err))
		os.Exit(1)
	}

	renderer, err := prompt.NewRenderer()
	if err != nil {
		logger.Error("failed to load prompt templates", slog.Any("error", err))
		os.Exit(1)
	}

	introspector := schema.NewIntrospector(connection.DB, connection.Bind)
	questionPipeline := &pipeline.Pipeline{
		Schema:  introspector,
		LLM:     client,
		Runner:  executor.New(connection.DB),
		Prompts: renderer,
		Logger:  logger,
		Dialect: connection.Dialect,
	}

	var stager *results.Stager
	if cfg.ObjectStore.Enabled() {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		stager = &results.Stager{Store: objectStore}
	}

	deps := api.Dependencies{
		Logger:          logger,
		Pipeline:        questionPipeline,
		Schema:          introspector,
		Tokens:          tokens,
		Stager:          stager,
		DefaultDatabase: cfg.Database.Name,
		Readiness: api.CombineReadinessChecks(
			api.CheckDatabaseConfig(cfg),
			api.CheckAIConfig(cfg),
			func(ctx context.Context) error { return connection.DB.PingContext(ctx) },
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
