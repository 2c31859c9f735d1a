package main

import (
	"context"
	"fmt"

	"github.com/nijaru/yt-sentiment/analysis"
	"github.com/nijaru/yt-sentiment/bias"
	"github.com/nijaru/yt-sentiment/config"
	"github.com/nijaru/yt-sentiment/llm"
	"github.com/nijaru/yt-sentiment/logger"
	"github.com/nijaru/yt-sentiment/metrics"
	"github.com/nijaru/yt-sentiment/pipeline"
	"github.com/nijaru/yt-sentiment/repository/sqlite"
	"github.com/nijaru/yt-sentiment/retry"
	"github.com/nijaru/yt-sentiment/storage"
	"github.com/nijaru/yt-sentiment/transcription"
	"github.com/nijaru/yt-sentiment/youtube"
	"github.com/sirupsen/logrus"
)

// services holds everything a command needs. Close releases the database.
type services struct {
	cfg          *config.Config
	log          *logrus.Logger
	db           *sqlite.DB
	repo         *sqlite.Repository
	counters     *metrics.Counters
	orchestrator *pipeline.Orchestrator
	spaces       *storage.SpacesClient
}

func (s *services) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildServices(ctx context.Context) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	db, err := sqlite.Open(ctx, cfg.Database.Path, sqlite.DBConfigFrom(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	repo := sqlite.NewRepository(db)

	counters := metrics.NewCounters()
	policy := retry.FromConfig(cfg.Retry)
	entry := func(component string) *logrus.Entry {
		return log.WithField("component", component)
	}

	captions := youtube.NewCaptionClient(
		youtube.WithCaptionRetryPolicy(policy),
		youtube.WithCaptionLogger(entry("captions")),
	)
	meta := youtube.NewMetadataClient(
		youtube.WithAPIKey(cfg.Metadata.YouTubeAPIKey),
		youtube.WithMetadataRetryPolicy(policy),
		youtube.WithMetadataLogger(entry("metadata")),
	)
	audio := youtube.NewAudioClient(cfg.Audio.YtDlpPath, cfg.Audio.FFmpegPath, policy, entry("audio"))
	whisper := transcription.NewWhisperClient(cfg.Whisper,
		transcription.WithWhisperRetryPolicy(policy),
		transcription.WithWhisperLogger(entry("whisper")),
	)

	acquirerOpts := []transcription.Option{
		transcription.WithMetrics(counters),
		transcription.WithTempDir(cfg.TempDir),
		transcription.WithLogger(entry("transcript")),
	}
	if cfg.Audio.FallbackEnabled {
		acquirerOpts = append(acquirerOpts, transcription.WithAudio(audio, whisper))
	}
	acquirer := transcription.NewAcquirer(captions, cfg.Transcript, cfg.Audio, acquirerOpts...)

	completer := llm.NewClient(cfg.LLM,
		llm.WithRetryPolicy(policy),
		llm.WithLogger(entry("llm")),
	)
	analyzer := analysis.NewAnalyzer(completer,
		analysis.WithChunkChars(cfg.Analysis.ChunkChars),
		analysis.WithConcurrency(cfg.Analysis.Concurrency),
		analysis.WithMetrics(counters),
		analysis.WithLogger(entry("analysis")),
	)

	prompts, err := analysis.LoadPromptConfig(cfg.Analysis.PromptConfigPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load prompt config: %w", err)
	}

	engine := bias.NewEngine(
		bias.WithEnabled(cfg.Bias.AdjustmentEnabled),
		bias.WithMetrics(counters),
	)

	pipelineOpts := []pipeline.Option{
		pipeline.WithPrompts(prompts),
		pipeline.WithMetrics(counters),
		pipeline.WithLogger(entry("pipeline")),
	}
	var spaces *storage.SpacesClient
	if cfg.Spaces.Enabled {
		spaces, err = storage.NewSpacesClient(ctx, cfg.Spaces)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("initialize spaces client: %w", err)
		}
		pipelineOpts = append(pipelineOpts, pipeline.WithArchiver(spaces))
	}

	orchestrator := pipeline.NewOrchestrator(cfg, meta, acquirer, analyzer, engine, repo, pipelineOpts...)

	return &services{
		cfg:          cfg,
		log:          log,
		db:           db,
		repo:         repo,
		counters:     counters,
		orchestrator: orchestrator,
		spaces:       spaces,
	}, nil
}
