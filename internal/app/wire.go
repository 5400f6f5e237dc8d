// Package app wires configuration into the repositories, clients and
// services shared by the API server and the process CLI.
package app

import (
	"context"
	"fmt"

	"github.com/miso-46/AI-minutes/internal/config"
	"github.com/miso-46/AI-minutes/internal/logger"
	"github.com/miso-46/AI-minutes/internal/media"
	"github.com/miso-46/AI-minutes/internal/repository"
	"github.com/miso-46/AI-minutes/internal/service"
	"github.com/miso-46/AI-minutes/internal/storage"
	"gorm.io/gorm"
)

// Components is the assembled application.
type Components struct {
	DB         *gorm.DB
	Storage    storage.ObjectStorage
	Qdrant     *repository.QdrantRepository // nil unless qdrant.enabled
	Transcoder *media.Transcoder
	Dispatcher *service.Dispatcher

	Pipeline *service.PipelineService
	Minutes  *service.MinutesService
	Chat     *service.ChatService
	Summary  *service.SummaryService
}

// Wire builds every component from cfg. runner overrides the background job
// runner; nil creates a Dispatcher sized by pipeline.workers.
func Wire(ctx context.Context, cfg *config.Config, runner service.JobRunner) (*Components, error) {
	c := &Components{}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	c.DB = db

	sc := cfg.GetStorageConfig()
	objectStorage, err := storage.NewStorage(&storage.S3Config{
		Type:      storage.StorageType(sc.Type),
		Endpoint:  sc.Endpoint,
		AccessKey: sc.AccessKey,
		SecretKey: sc.SecretKey,
		UseSSL:    sc.UseSSL,
		Bucket:    sc.Bucket,
		Region:    sc.Region,
		PublicURL: sc.PublicURL,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	c.Storage = objectStorage

	var index service.ChunkIndex
	if cfg.Qdrant.Enabled {
		qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
			Host:            cfg.Qdrant.Host,
			Port:            cfg.Qdrant.Port,
			Collection:      cfg.Qdrant.Collection,
			APIKey:          cfg.Qdrant.APIKey,
			UseTLS:          cfg.Qdrant.UseTLS,
			VectorDimension: cfg.Embedding.Dimensions,
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init qdrant: %w", err)
		}
		c.Qdrant = qdrantRepo
		if err := qdrantRepo.EnsureCollection(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("ensure qdrant collection: %w", err)
		}
		index = qdrantRepo
	}

	embedder, err := service.NewEmbedder(&cfg.Embedding)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	c.Transcoder = media.NewTranscoder(media.Options{
		FFmpegPath:  cfg.Transcription.FFmpegPath,
		FFprobePath: cfg.Transcription.FFprobePath,
	})
	if err := c.Transcoder.AssertReady(ctx); err != nil {
		logger.CtxWarn(ctx, "Media tools unavailable, jobs will fail at transcription: %v", err)
	}

	whisper := service.NewWhisperTranscriber(&service.WhisperConfig{
		BaseURL:  cfg.Transcription.BaseURL,
		APIKey:   cfg.Transcription.APIKey,
		Model:    cfg.Transcription.Model,
		Language: cfg.Transcription.Language,
		Timeout:  cfg.Transcription.Timeout,
	})
	transcription := service.NewTranscriptionService(c.Transcoder, whisper, &service.TranscriptionConfig{
		WorkDir:         cfg.Transcription.WorkDir,
		MaxFileBytes:    cfg.Transcription.MaxFileBytes,
		SegmentDuration: cfg.Transcription.SegmentDuration,
		Concurrency:     cfg.Transcription.SegmentConcurrency,
	})

	completer := service.NewCompletionService(&service.CompletionConfig{
		Model:   cfg.Chat.Model,
		APIKey:  cfg.Chat.APIKey,
		BaseURL: cfg.Chat.BaseURL,
		Timeout: cfg.Chat.Timeout,
	})

	if runner == nil {
		d, err := service.NewDispatcher(cfg.Pipeline.Workers, 0)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init dispatcher: %w", err)
		}
		c.Dispatcher = d
		runner = d
	}

	minutesRepo := repository.NewMinutesRepository(db)
	transcriptRepo := repository.NewTranscriptRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	chatRepo := repository.NewChatRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)

	c.Pipeline = service.NewPipelineService(service.PipelineDeps{
		MinutesRepo:    minutesRepo,
		TranscriptRepo: transcriptRepo,
		ChunkRepo:      chunkRepo,
		Storage:        objectStorage,
		Media:          c.Transcoder,
		Transcriber:    transcription,
		Embedder:       embedder,
		Index:          index,
		Runner:         runner,
	}, service.PipelineConfig{
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
		URLTTL:       cfg.Storage.URLTTL,
		WorkDir:      cfg.Transcription.WorkDir,
	})

	c.Minutes = service.NewMinutesService(minutesRepo, transcriptRepo, summaryRepo, chatRepo, objectStorage, cfg.Storage.URLTTL)

	c.Chat = service.NewChatService(service.ChatDeps{
		MinutesRepo:    minutesRepo,
		TranscriptRepo: transcriptRepo,
		ChunkRepo:      chunkRepo,
		ChatRepo:       chatRepo,
		Embedder:       embedder,
		Completer:      completer,
		Index:          index,
	}, service.ChatConfig{
		Threshold:       cfg.Retrieval.Threshold,
		MaxResults:      cfg.Retrieval.MaxResults,
		CandidateSource: cfg.Retrieval.CandidateSource,
		CandidateLimit:  cfg.Retrieval.CandidateLimit,
		Temperature:     cfg.Chat.Temperature,
		MaxTokens:       cfg.Chat.MaxTokens,
	})

	c.Summary = service.NewSummaryService(minutesRepo, transcriptRepo, summaryRepo, completer, service.SummaryConfig{
		Temperature:    cfg.Summary.Temperature,
		MaxTokens:      cfg.Summary.MaxTokens,
		MaxInputTokens: cfg.Summary.MaxInputTokens,
		Encoding:       cfg.Summary.Encoding,
	})

	logger.With(logger.Fields{
		"qdrant":           cfg.Qdrant.Enabled,
		"candidate_source": cfg.Retrieval.CandidateSource,
		"embedding_model":  embedder.GetModel(),
		"workers":          cfg.Pipeline.Workers,
	}).Info(ctx, "Application wired")
	return c, nil
}

// Ping checks the database connection.
func (c *Components) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases connections. Call it after the dispatcher has drained.
func (c *Components) Close() {
	if c.Qdrant != nil {
		if err := c.Qdrant.Close(); err != nil {
			logger.Warn("Failed to close qdrant connection: %v", err)
		}
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
