package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"chatvault/internal/util"
	"chatvault/pkg/ai"
	"chatvault/pkg/broadcast"
	"chatvault/pkg/chat"
	"chatvault/pkg/feed"
	"chatvault/pkg/progress"
	"chatvault/pkg/storage"
	"chatvault/pkg/store"
	"chatvault/pkg/summarize"
	"chatvault/services/harvester/internal/app"
	"chatvault/services/harvester/internal/config"
	"chatvault/services/harvester/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	util.InitLogger(cfg.LogLevel, "harvester")

	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		util.Fatal("failed to init database", "error", err)
	}
	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		util.Fatal("failed to init object store", "error", err)
	}
	taskStore, err := progress.NewRedisStore(progress.RedisStoreConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		util.Fatal("failed to init task status store", "error", err)
	}

	embedder, generator, err := buildAI(cfg)
	if err != nil {
		util.Fatal("failed to init ai provider", "error", err)
	}

	registry := chat.NewRegistry(chat.NewBridgeDialer(cfg.BridgeURL, cfg.BridgeToken), cfg.SessionsDir)
	core := app.New(app.Config{
		Store:    db,
		Objects:  objects,
		Progress: taskStore,
		Registry: registry,
		Dispatcher: &broadcast.Dispatcher{
			DelayMin: time.Duration(cfg.BroadcastDelayMinSeconds) * time.Second,
			DelayMax: time.Duration(cfg.BroadcastDelayMaxSeconds) * time.Second,
		},
		Summarizer: &summarize.Summarizer{
			Store:     db,
			Generator: generator,
			Compressor: &summarize.Compressor{
				Embedder:     embedder,
				Threshold:    cfg.SummaryLineThreshold,
				PrefixLimit:  cfg.SummaryPrefixLimit,
				Fraction:     cfg.SummaryKeepFraction,
				Floor:        cfg.SummaryKeepFloor,
				TailFallback: cfg.SummaryTailFallback,
			},
			MaxMessages: cfg.SummaryMaxMessages,
		},
		StagingDir: cfg.StagingDir,
		ExportRoot: cfg.ExportRoot,
	})

	if cfg.AutoDumpEnabled {
		scheduler, err := core.StartAutoDump(cfg.AutoDumpSchedule)
		if err != nil {
			util.Fatal("failed to start auto-dump scheduler", "error", err)
		}
		defer scheduler.Stop()
		slog.Info("auto-dump scheduler started", "schedule", cfg.AutoDumpSchedule)
	}

	if cfg.RabbitURL != "" {
		liveFeed, err := feed.NewRabbitFeed(cfg.RabbitURL)
		if err != nil {
			util.Fatal("failed to connect live feed", "error", err)
		}
		defer liveFeed.Close()
		go func() {
			if err := liveFeed.Consume(context.Background(), db); err != nil {
				slog.Error("live feed consumer stopped", "error", err)
			}
		}()
		slog.Info("live feed consumer started")
	}

	httpServer := server.New(server.Config{App: core, InternalToken: cfg.InternalToken})
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("harvester server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "err", err)
	}
}

func buildAI(cfg config.FileConfig) (ai.Embedder, ai.TextGenerator, error) {
	switch cfg.AIProvider {
	case "ollama":
		client := ai.NewOllamaClient(cfg.OllamaURL)
		return ai.NewOllamaEmbedder(client, cfg.OllamaEmbedModel),
			ai.NewOllamaGenerator(client, cfg.OllamaChatModel), nil
	default:
		client, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
		if err != nil {
			return nil, nil, err
		}
		return ai.NewGeminiEmbedder(client, cfg.GeminiEmbedModel),
			ai.NewGeminiGenerator(client, cfg.GeminiChatModel), nil
	}
}
