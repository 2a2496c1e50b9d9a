package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/framedrop/framedrop/internal/api"
	"github.com/framedrop/framedrop/internal/common"
	"github.com/framedrop/framedrop/internal/finalize"
	"github.com/framedrop/framedrop/internal/ingest"
	"github.com/framedrop/framedrop/internal/metrics"
	"github.com/framedrop/framedrop/internal/notify"
	"github.com/framedrop/framedrop/internal/session"
	"github.com/framedrop/framedrop/internal/storage"
	"github.com/framedrop/framedrop/pkg/config"
)

func main() {
	cfg := config.LoadFromEnv()

	setupLogging(cfg.Logging)
	log.Info().Msg("starting framedrop portal")

	db, err := common.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	store, err := storage.NewFromConfig(&cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	m := metrics.New()

	var notifier ingest.Notifier = notify.Noop{}
	if cfg.Notify.Enabled {
		cache, err := common.NewCache(&cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer cache.Close()

		notifier = notify.NewAdapter(
			notify.NewTelegramClient(&cfg.Notify),
			notify.NewRedisHandleStore(cache),
			m,
			cfg.Notify.CompletedCleanup,
			cfg.Notify.TerminatedCleanup,
		)
	} else {
		log.Warn().Msg("notification channel disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := session.NewStore()
	sessions.StartReaper(ctx, cfg.Upload.ReaperInterval, cfg.Upload.SessionTTL, cfg.Upload.TerminalTTL)

	pipeline := finalize.NewPipeline(db, store, m)
	engine := ingest.NewEngine(sessions, notifier, pipeline, m, cfg.Upload.SidecarDir, cfg.Upload.QueueSize)
	engine.Start(ctx)

	router := api.SetupRouter(
		api.NewHookHandler(engine),
		api.NewMultipartHandler(store, pipeline, cfg.Storage.PresignExpiry),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
