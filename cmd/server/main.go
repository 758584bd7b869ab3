// Package main is the entry point for the TradePost Deal Service.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tradepost/deal-service/internal/api/handlers"
	"github.com/tradepost/deal-service/internal/api/middleware"
	"github.com/tradepost/deal-service/internal/api/routes"
	"github.com/tradepost/deal-service/internal/api/ws"
	"github.com/tradepost/deal-service/internal/config"
	"github.com/tradepost/deal-service/internal/core/cache"
	"github.com/tradepost/deal-service/internal/core/docdb"
	"github.com/tradepost/deal-service/internal/hub"
	rediscache "github.com/tradepost/deal-service/internal/infrastructure/cache/redis"
	"github.com/tradepost/deal-service/internal/infrastructure/docdb/memory"
	"github.com/tradepost/deal-service/internal/infrastructure/docdb/mongodb"
	"github.com/tradepost/deal-service/internal/pkg/clock"
	"github.com/tradepost/deal-service/internal/services/chat"
	"github.com/tradepost/deal-service/internal/services/lease"
	"github.com/tradepost/deal-service/internal/services/marketplace"
	"github.com/tradepost/deal-service/internal/services/sweeper"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize cache client using factory pattern
	cacheClient, err := createCacheClient(cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cache client")
	}
	defer cacheClient.Close()

	// Initialize document db client using factory pattern
	docDBClient, err := createDocDBClient(ctx, cfg.DocDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize document db client")
	}
	defer docDBClient.Close(context.Background())

	// Ensure database indexes
	if err := docDBClient.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	// Marketplace core client: identity verification and product lookups
	marketplaceClient := marketplace.NewClient(&marketplace.ClientConfig{
		BaseURL:    cfg.Marketplace.URL,
		ServiceKey: cfg.Marketplace.ServiceKey,
		Timeout:    cfg.Marketplace.Timeout,
	})

	clk := clock.New()

	// Live delivery: presence over the cache, rooms in the hub. Flags
	// left by a previous run describe connections that died with it.
	presence := hub.NewPresence(cacheClient, cfg.Cache.PresenceTTL)
	presence.Reset(ctx)
	eventHub := hub.New(&hub.Config{
		TypingWindow: cfg.Hub.TypingWindow,
		Presence:     presence,
	})

	leaseManager, err := lease.NewManager(&lease.Config{
		Store:        docDBClient.Leases(),
		Catalog:      marketplaceClient,
		Clock:        clk,
		Events:       eventHub,
		StoreTimeout: cfg.Lease.StoreTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize lease manager")
	}

	chatManager, err := chat.NewManager(&chat.Config{
		Store:        docDBClient.Sessions(),
		Catalog:      marketplaceClient,
		Clock:        clk,
		Events:       eventHub,
		Roster:       eventHub,
		Presence:     presence,
		StoreTimeout: cfg.Chat.StoreTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize chat manager")
	}

	// Background expiry sweeps
	expirySweeper := sweeper.New(&sweeper.Config{
		Leases:   leaseManager,
		Sessions: chatManager,
		Clock:    clk,
		Interval: cfg.Lease.SweepInterval,
	})
	go expirySweeper.Run(ctx)

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Setup router
	router := setupRouter(cfg, cacheClient, docDBClient, marketplaceClient, leaseManager, chatManager, eventHub, presence)

	// Create HTTP server
	srv := &http.Server{
		Addr:    cfg.Server.Address(),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("address", cfg.Server.Address()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

// setupLogging configures the global zerolog logger.
func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// createCacheClient creates a cache client based on the configuration.
func createCacheClient(cfg config.CacheConfig) (cache.Cache, error) {
	cacheType := cache.Type(cfg.Type)

	switch cacheType {
	case cache.TypeRedis:
		return rediscache.NewCache(rediscache.Config{
			Host:       cfg.Host,
			Port:       cfg.Port,
			Password:   cfg.Password,
			DB:         cfg.DB,
			DefaultTTL: cfg.PresenceTTL,
		})
	default:
		log.Fatal().Str("type", cfg.Type).Msg("unsupported cache type")
		return nil, nil
	}
}

// createDocDBClient creates a document database client based on the configuration.
func createDocDBClient(ctx context.Context, cfg config.DocDBConfig) (docdb.Client, error) {
	docDBType := docdb.Type(cfg.Type)

	switch docDBType {
	case docdb.TypeMongoDB:
		return mongodb.NewClient(ctx, &mongodb.ClientConfig{
			URI:          cfg.URI,
			DatabaseName: cfg.Database,
		})
	case docdb.TypeMemory:
		// Volatile store for local development
		return memory.NewClient(), nil
	default:
		log.Fatal().Str("type", cfg.Type).Msg("unsupported docdb type")
		return nil, nil
	}
}

// setupRouter creates and configures the Gin router.
func setupRouter(
	cfg *config.Config,
	cacheClient cache.Cache,
	docDBClient docdb.Client,
	marketplaceClient marketplace.Client,
	leaseManager lease.Manager,
	chatManager chat.Manager,
	eventHub *hub.Hub,
	presence *hub.Presence,
) *gin.Engine {
	router := gin.New()

	// Create middleware
	loggingMw := middleware.NewLoggingMiddleware()
	errorMw := middleware.NewErrorMiddleware()
	authMw := middleware.NewAuthMiddleware(marketplaceClient)

	// Create handlers
	healthHandler := handlers.NewHealthHandler(cacheClient, docDBClient)
	leasesHandler := handlers.NewLeasesHandler(leaseManager)
	sessionsHandler := handlers.NewSessionsHandler(chatManager)
	wsHandler := ws.NewHandler(&ws.Config{
		Hub:        eventHub,
		Sessions:   chatManager,
		Presence:   presence,
		SendBuffer: cfg.Hub.SendBuffer,
	})

	// Setup routes
	routesCfg := &routes.Config{
		HealthHandler:   healthHandler,
		LeasesHandler:   leasesHandler,
		SessionsHandler: sessionsHandler,
		WSHandler:       wsHandler,
		AuthMiddleware:  authMw,
	}

	routes.SetupWithMiddleware(router, routesCfg, loggingMw, errorMw)

	return router
}
