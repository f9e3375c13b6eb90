package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mcdev12/trivia/go/internal/dbconfig"
	"github.com/mcdev12/trivia/go/internal/publish"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// load .env
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	setupLogging()

	cfg, err := loadConfig(os.Getenv("TRIVIA_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	// signal‐aware context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres is optional
	var database *Database
	if dbCfg := dbconfig.NewConfigFromEnv(); dbCfg.Enabled {
		database, err = setupDatabase(ctx, dbCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("setup database")
		}
		defer database.Close()
	} else {
		log.Info().Msg("no database configured, archive disabled")
	}

	// JetStream is optional
	var jetStream *publish.JetStreamPublisher
	if cfg.Events.NATSURL != "" {
		jetStream, err = publish.NewJetStreamPublisher(ctx, cfg.jetStreamConfig())
		if err != nil {
			log.Fatal().Err(err).Msg("create JetStream publisher")
		}
		defer func() {
			if err := jetStream.Close(); err != nil {
				log.Error().Err(err).Msg("close publisher")
			}
		}()
	} else {
		log.Info().Msg("NATS_URL not set, lifecycle events are only logged")
	}

	services, err := setupServices(ctx, cfg, database, jetStream)
	if err != nil {
		log.Fatal().Err(err).Msg("setup services")
	}
	server := setupServer(cfg, services)

	// Background workers outlive ctx so they can drain after the server stops.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		services.Dispatcher.Run(workerCtx)
	}()
	go func() {
		defer workers.Done()
		services.Arena.Run(workerCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting trivia server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// wait for shutdown or error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server exited unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	services.Connections.CloseAll()
	services.Arena.Shutdown()

	stopWorkers()
	workers.Wait()

	published, failed, dropped := services.Dispatcher.Stats()
	log.Info().
		Uint64("events_published", published).
		Uint64("events_failed", failed).
		Uint64("events_dropped", dropped).
		Msg("graceful shutdown complete")
}

// setupLogging configures zerolog from LOG_LEVEL and LOG_FORMAT.
func setupLogging() {
	if !strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	level, err := zerolog.ParseLevel(strings.ToLower(getEnv("LOG_LEVEL", "info")))
	if err != nil {
		log.Warn().Err(err).Msg("invalid LOG_LEVEL, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
