package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RomanRochniak/CapstoneGym/internal/config"
	"github.com/RomanRochniak/CapstoneGym/internal/db"
	"github.com/RomanRochniak/CapstoneGym/internal/handler"
	"github.com/RomanRochniak/CapstoneGym/internal/kv"
	"github.com/RomanRochniak/CapstoneGym/internal/llm"
	natsclient "github.com/RomanRochniak/CapstoneGym/internal/nats"
	"github.com/RomanRochniak/CapstoneGym/internal/ratelimit"
	"github.com/RomanRochniak/CapstoneGym/internal/service"
	"github.com/RomanRochniak/CapstoneGym/internal/sitecontext"
	"github.com/RomanRochniak/CapstoneGym/pkg/logger"
	"github.com/RomanRochniak/CapstoneGym/pkg/tracing"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, log)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info("starting API server",
		zap.String("version", Version),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("db_driver", cfg.DBDriver),
	)

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "gym-assistant", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}

	var events service.EventPublisher
	var natsClient *natsclient.Client
	if cfg.NATSURL != "" {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log.Named("nats"))
		if err != nil {
			return err
		}
		defer natsClient.Close()

		publisher := natsclient.NewEventPublisher(natsClient)
		if err := publisher.EnsureStream(ctx); err != nil {
			return err
		}
		events = publisher
	} else {
		log.Info("NATS_URL not set, exchange events disabled")
	}

	provider, err := llm.NewProvider(cfg)
	switch {
	case errors.Is(err, llm.ErrMissingAPIKey):
		log.Error("AI provider has no API key, chat requests will fail",
			zap.String("provider", cfg.AIProvider))
		provider = llm.Unconfigured(cfg.AIProvider)
	case err != nil:
		return fmt.Errorf("configure %s provider: %w", cfg.AIProvider, err)
	}

	store := kv.NewMemoryStore(time.Minute)
	responder := llm.NewService(provider, store, cfg.AICacheTTL, log)
	chatSvc := service.NewChatService(
		db.NewConversationStore(gdb),
		sitecontext.NewBuilder(db.NewCatalogStore(gdb)),
		responder,
		events,
		log,
	)

	router := handler.NewRouter(handler.RouterConfig{
		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRequests:  cfg.RateLimitRequests,
		RateLimitWindow:    cfg.RateLimitWindow,
		ChatLimiter:        ratelimit.New(store, cfg.AIRateLimitPerMin, ratelimit.DefaultWindow),
		Logger:             log,
	}, handler.Handlers{
		Health:   handler.NewHealthHandler(gdb, natsClient),
		Chat:     handler.NewChatHandler(chatSvc, log),
		Sessions: handler.NewSessionHandler(chatSvc, log),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("server stopped")
	return nil
}
