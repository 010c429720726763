package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/lumen/internal/anthropic"
	"github.com/MikeSquared-Agency/lumen/internal/api"
	"github.com/MikeSquared-Agency/lumen/internal/audio"
	"github.com/MikeSquared-Agency/lumen/internal/config"
	"github.com/MikeSquared-Agency/lumen/internal/executor"
	"github.com/MikeSquared-Agency/lumen/internal/generate"
	"github.com/MikeSquared-Agency/lumen/internal/hermes"
	"github.com/MikeSquared-Agency/lumen/internal/inference"
	"github.com/MikeSquared-Agency/lumen/internal/metrics"
	"github.com/MikeSquared-Agency/lumen/internal/openai"
	"github.com/MikeSquared-Agency/lumen/internal/processor"
	"github.com/MikeSquared-Agency/lumen/internal/store"
	"github.com/MikeSquared-Agency/lumen/internal/style"
	"github.com/MikeSquared-Agency/lumen/internal/summarize"
	"github.com/MikeSquared-Agency/lumen/internal/transcribe"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	slog.Info("lumen starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.Default()
	m := metrics.New()

	// Model backends
	local := inference.NewClient(cfg.ModelServerURL, cfg.RequestTimeout)
	slog.Info("model server client ready", "url", cfg.ModelServerURL)

	var summaryModel summarize.Model = local
	var recognizer transcribe.Recognizer = local
	if cfg.SummaryBackend == config.BackendOpenAI || cfg.TranscribeBackend == config.BackendOpenAI {
		oaiClient := openai.NewAPIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		if cfg.SummaryBackend == config.BackendOpenAI {
			summaryModel = openai.NewSummarizer(oaiClient, cfg.OpenAISummaryModel)
			slog.Info("openai summarizer ready", "model", cfg.OpenAISummaryModel)
		}
		if cfg.TranscribeBackend == config.BackendOpenAI {
			recognizer = openai.NewRecognizer(oaiClient, cfg.OpenAITranscribeModel)
			slog.Info("openai recognizer ready", "model", cfg.OpenAITranscribeModel)
		}
	}
	if cfg.SummaryBackend == config.BackendAnthropic {
		summaryModel = anthropic.NewSummarizer(anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel))
		slog.Info("anthropic summarizer ready", "model", cfg.AnthropicModel)
	}

	// Orchestrators
	overlap := cfg.SummaryOverlap
	if overlap == 0 {
		overlap = summarize.NoOverlap
	}
	summarizer := summarize.New(m.InstrumentSummarizer(summaryModel), summarize.Config{
		Threshold:  cfg.SummaryThreshold,
		ChunkWords: cfg.SummaryChunkWords,
		Overlap:    overlap,
		MaxPasses:  cfg.SummaryMaxPasses,
	}, logger)

	converter := audio.NewFFmpegConverter(executor.New(), cfg.FFmpegPath, logger)
	transcriber := transcribe.New(m.InstrumentRecognizer(recognizer), converter, transcribe.Config{
		Window:     cfg.Window(),
		SilenceRMS: cfg.SilenceRMS,
	}, logger)

	generator := generate.New(m.InstrumentGenerator(local), generate.Config{
		StepTokens:    cfg.GenerateStepTokens,
		ContextTokens: cfg.GenerateContextTokens,
		MaxLength:     cfg.GenerateMaxLength,
	}, logger)

	stylizer := style.NewService(m.InstrumentStyle(local), logger)

	deps := processor.Deps{
		Summarizer:  summarizer,
		Transcriber: transcriber,
		Generator:   generator,
		Stylizer:    stylizer,
		Metrics:     m,
	}

	// Database (optional)
	var runs api.RunLister
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare schema", "error", err)
			os.Exit(1)
		}
		deps.Recorder = db
		runs = db
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, running without run history")
	}

	// NATS/Hermes (optional)
	if cfg.NatsURL != "" {
		hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		deps.Publisher = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS_URL not set, completion events disabled")
	}

	proc := processor.New(deps, logger)

	// HTTP API
	srv := api.NewServer(api.Options{
		Port:           cfg.Port,
		APIToken:       cfg.APIToken,
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		RequestTimeout: cfg.RequestTimeout,
	}, proc, runs, m, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	slog.Info("lumen ready", "port", cfg.Port, "enabled", proc.Enabled())

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}
	cancel()
	slog.Info("lumen stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
