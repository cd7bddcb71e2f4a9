package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/roomclocks/go/internal/dbconfig"
	"github.com/mcdev12/roomclocks/go/internal/relay"
)

func main() {
	// load .env
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// configure zerolog console output and level
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	// signal-aware context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store config
	storeCfg := dbconfig.NewConfigFromEnv()
	if storeCfg.Backend == dbconfig.BackendMemory {
		log.Fatal().Msg("relay needs a shared store, set STORE_BACKEND to postgres or redis")
	}
	storeOpts := dbconfig.StoreOptions{}
	if iv := os.Getenv("FALLBACK_INTERVAL"); iv != "" {
		if d, err := time.ParseDuration(iv); err == nil {
			storeOpts.FallbackInterval = d
		}
	}
	store, err := dbconfig.OpenStore(ctx, storeCfg, storeOpts)
	if err != nil {
		log.Fatal().Err(err).Msg("open document store")
	}
	defer store.Close()

	// JetStream publisher
	jsCfg := relay.DefaultJetStreamConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		jsCfg.URL = url
	}
	publisher, err := relay.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create JetStream publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}()

	r := relay.NewRelay(store, publisher, relay.DefaultConfig())

	// health endpoint
	mux := http.NewServeMux()
	mux.Handle("GET /health", relay.NewHealthChecker(r, publisher.Connected, time.Minute))
	healthServer := &http.Server{
		Addr:    ":" + getEnv("HEALTH_PORT", "8081"),
		Handler: mux,
	}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server exited")
		}
	}()

	// run relay
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("backend", string(storeCfg.Backend)).Msg("starting change relay")
		errCh <- r.Start(ctx)
	}()

	// wait for shutdown or error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("relay exited unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server shutdown")
	}
	log.Info().Msg("graceful shutdown complete")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
