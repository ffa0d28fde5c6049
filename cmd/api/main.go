// Command api runs the WhatsApp messaging service: channel configuration,
// notification dispatch, provider webhooks, and the operator inbox API.
//
// Startup order:
//  1. Load .env (best effort) and environment configuration
//  2. Configure logging (level, optional pretty console output)
//  3. Initialize OpenTelemetry tracing (no-op when disabled)
//  4. Open SQLite, run migrations
//  5. Build the provider client, register routes, start the HTTP server
//  6. Run the advisory conversation-expiry sweep in the background
//
// Shutdown is graceful: SIGINT/SIGTERM drains in-flight requests before the
// tracer provider and database are closed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bryanriosb/beauty-business-sub002/internal/config"
	"github.com/bryanriosb/beauty-business-sub002/internal/entitlement"
	httpapi "github.com/bryanriosb/beauty-business-sub002/internal/http"
	"github.com/bryanriosb/beauty-business-sub002/internal/observability"
	"github.com/bryanriosb/beauty-business-sub002/internal/provider"
	"github.com/bryanriosb/beauty-business-sub002/internal/repo"
	"github.com/bryanriosb/beauty-business-sub002/internal/services"
	"github.com/bryanriosb/beauty-business-sub002/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=…".
var version = "dev"

func main() {
	// Local development convenience; the file is absent in containers.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if err := db.AutoMigrate(&entitlement.AccountFeature{}); err != nil {
		log.Fatal().Err(err).Msg("entitlement migration failed")
	}

	sender := provider.NewClient(cfg.WhatsAppBaseURL, cfg.WhatsAppTimeout)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, sender, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	// Advisory sweep: reads already enforce expiry, this just keeps the
	// "active" flag honest for inbox queries.
	if cfg.SweepInterval > 0 {
		convs := services.NewConversationService(db)
		convs.Window = cfg.ConversationWindow
		go runSweep(ctx, convs, cfg.SweepInterval)
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("shutdown complete")
}

// runSweep periodically marks expired conversations inactive until ctx ends.
func runSweep(ctx context.Context, convs *services.ConversationService, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := convs.SweepExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("conversation sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("closed", n).Msg("expired conversations swept")
			}
		}
	}
}
