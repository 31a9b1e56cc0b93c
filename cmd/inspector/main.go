package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/generation-inspector/internal/api"
	"github.com/lueurxax/generation-inspector/internal/inspector"
	"github.com/lueurxax/generation-inspector/internal/llm"
	"github.com/lueurxax/generation-inspector/internal/platform/config"
	"github.com/lueurxax/generation-inspector/internal/platform/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	modelFiles, err := cfg.ParsedModelFiles()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid model files configuration")
	}

	loader := inspector.NewLoader(inspector.LoaderConfig{
		InputFile:  cfg.InputFile,
		ModelFiles: modelFiles,
		Workers:    cfg.LoadWorkers,
	}, &logger)
	engine := inspector.NewEngine(&logger)
	pipeline := inspector.NewPipeline(engine, &logger)
	session := inspector.NewSession(loader, engine, &logger)

	if _, err := loader.Load(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to load generation files")
	}

	models := loader.Models()
	if len(models) == 0 {
		logger.Fatal().Msg("no models configured")
	}

	if err := session.SelectBaseModel(ctx, models[0]); err != nil {
		logger.Fatal().Err(err).Msg("failed to select base model")
	}

	backend := llm.NewOpenAI(cfg, &logger)

	metricsServer := observability.NewServer(cfg.MetricsPort, func(context.Context) error {
		if session.BaseModel() == "" {
			return errors.New("no base model selected")
		}

		return nil
	}, &logger)

	go func() {
		if err := metricsServer.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	apiServer := api.NewServer(cfg, session, pipeline, backend, &logger)

	if err := apiServer.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("inspector stopped")
			return
		}

		logger.Fatal().Err(err).Msg("inspector error")
	}

	logger.Info().Msg("inspector stopped")
}

func newLogger(appEnv string) zerolog.Logger {
	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
