package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/mcdev12/smashquiz/go/internal/quiz/client"
	"github.com/mcdev12/smashquiz/go/internal/quiz/config"
	"github.com/mcdev12/smashquiz/go/internal/quiz/engine"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng := engine.New(client.NewCommandClient(nil, cfg.Gateway.BackendURL))
	display := client.NewDisplay(eng)

	redraw := func() {
		// Clear the terminal before each frame.
		fmt.Fprint(os.Stdout, "\033[H\033[2J")
		fmt.Fprintf(os.Stdout, "font size %d\n\n", display.UI().FontSize)
		if err := display.Render(os.Stdout); err != nil {
			log.Error().Err(err).Msg("failed to render board")
		}
	}
	eng.Watch(func(*models.GameState) { redraw() })
	display.OnUIUpdate(func(models.UIConfig) { redraw() })
	redraw()

	log.Info().Str("gateway", cfg.Gateway.URL).Msg("display starting")
	if err := display.Subscriber(cfg.Gateway.URL+"?role=display", client.WithOnConnect(redraw)).Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("display stopped")
	}
}
