package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/smashquiz/go/internal/quiz/backend"
	"github.com/mcdev12/smashquiz/go/internal/quiz/broadcast"
	"github.com/mcdev12/smashquiz/go/internal/quiz/config"
	"github.com/mcdev12/smashquiz/go/internal/quiz/gateway"
	"github.com/mcdev12/smashquiz/go/internal/quiz/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(cfg.Level())

	// The embedded gateway attaches to local after the game exists.
	local := broadcast.NewLocal()
	publishers := broadcast.Multi{local}

	var healthOpts []server.HealthOption
	if cfg.Broadcast.NATSURL != "" {
		jsCfg := broadcast.DefaultJetStreamConfig()
		jsCfg.URL = cfg.Broadcast.NATSURL
		jsCfg.StreamName = cfg.Broadcast.StreamName
		jsCfg.SubjectPrefix = cfg.Broadcast.SubjectPrefix

		jsPublisher, err := broadcast.NewJetStreamPublisher(jsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create JetStream publisher")
		}
		defer jsPublisher.Close()

		metrics := broadcast.NewLogMetrics()
		publishers = append(publishers, broadcast.NewMetricPublisher(
			broadcast.NewRetryPublisher(jsPublisher, cfg.Broadcast.MaxRetries, cfg.Broadcast.RetryDelay,
				broadcast.WithRetryMetrics(metrics)),
			metrics,
		))
		healthOpts = append(healthOpts, server.WithNATS(jsPublisher, metrics))
		log.Info().Str("nats_url", jsCfg.URL).Str("stream", jsCfg.StreamName).Msg("broadcasting to JetStream")
	}

	game := backend.NewGame(publishers)
	gatewayService := gateway.NewService(gateway.DefaultConnectionConfig(), gateway.NewGameStateProvider(game))
	local.Subscribe(gatewayService.Publisher())

	mux := http.NewServeMux()
	server.RegisterService(mux, server.NewService(game))
	gatewayService.RegisterRoutes(mux)
	healthOpts = append(healthOpts, server.WithDisplays(gatewayService))
	server.RegisterHealthCheck(mux, server.NewHealthChecker(game, healthOpts...))

	httpServer := server.NewHTTPServer(cfg.Server.Port, mux)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("smash quiz server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()

	log.Info().Msg("smash quiz server shutdown complete")
}
