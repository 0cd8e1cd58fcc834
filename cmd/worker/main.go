package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/podforge/podforge/internal/audio"
	"github.com/podforge/podforge/internal/config"
	"github.com/podforge/podforge/internal/cover"
	"github.com/podforge/podforge/internal/database"
	"github.com/podforge/podforge/internal/embedding"
	"github.com/podforge/podforge/internal/episode"
	"github.com/podforge/podforge/internal/extract"
	"github.com/podforge/podforge/internal/jobs"
	"github.com/podforge/podforge/internal/llm"
	"github.com/podforge/podforge/internal/pipeline"
	"github.com/podforge/podforge/internal/queue"
	"github.com/podforge/podforge/internal/queue/workers"
	"github.com/podforge/podforge/internal/retrieval"
	"github.com/podforge/podforge/internal/script"
	"github.com/podforge/podforge/internal/storage"
	"github.com/podforge/podforge/internal/tts"
	"github.com/podforge/podforge/internal/vectorstore"
	"github.com/podforge/podforge/pkg/chunker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	orch, err := buildOrchestrator(cfg, db, rdb, logger)
	if err != nil {
		slog.Error("pipeline setup failed", "error", err)
		os.Exit(1)
	}

	// Reclaim episodes orphaned by crashed workers.
	episodeStore := episode.NewStore(db)
	sweeper := pipeline.NewSweeper(episodeStore, 10*time.Minute,
		time.Duration(cfg.Pipeline.AbandonedAfterMinutes)*time.Minute, logger)
	go sweeper.Run(ctx)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// One episode at a time: TTS and mixing are memory-heavy enough
			// that parallel runs on one worker OOM.
			Concurrency: 1,
		},
	)

	mux := asynq.NewServeMux()
	episodeWorker := workers.NewEpisodeWorker(orch, logger)
	mux.HandleFunc(queue.TypeEpisodeProcess, episodeWorker.ProcessTask)

	slog.Info("starting worker", "concurrency", 1)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

func buildOrchestrator(cfg *config.Config, db *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	provider, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, err
	}

	ttsProvider, err := tts.New(cfg.TTS)
	if err != nil {
		return nil, err
	}

	coverGen, err := cover.NewGenerator(cfg.Image)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, err
	}

	vs := vectorstore.NewPgVectorStore(db)
	embedder := embedding.NewService(provider, cfg.LLM.EmbeddingModel)
	indexer := retrieval.NewIndexer(chunker.New(chunker.DefaultOptions()), embedder, vs, logger)

	return pipeline.New(pipeline.Deps{
		Store:     episode.NewStore(db),
		Progress:  jobs.NewTracker(rdb),
		Extractor: extract.New(),
		Indexer:   indexer,
		Scripter: script.NewGenerator(provider, cfg.LLM.Model,
			cfg.Pipeline.MaxScriptBytes, logger),
		Synthesizer: tts.NewSynthesizer(ttsProvider,
			cfg.TTS.VoiceMale, cfg.TTS.VoiceFemale, logger),
		Mixer:         audio.NewMixer(cfg.Pipeline, logger),
		Cover:         coverGen,
		Guard:         pipeline.NewGuard(cfg.Pipeline, logger),
		Uploader:      store,
		OutputDir:     cfg.Pipeline.OutputDir,
		TargetMinutes: cfg.Pipeline.TargetDurationMinutes,
		Logger:        logger,
	}), nil
}
