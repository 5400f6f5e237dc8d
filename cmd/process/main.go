package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/miso-46/AI-minutes/internal/app"
	"github.com/miso-46/AI-minutes/internal/config"
	"github.com/miso-46/AI-minutes/internal/domain"
	"github.com/miso-46/AI-minutes/internal/logger"
)

// inlineRunner runs tasks on the caller's goroutine. Process never queues,
// so this only satisfies the pipeline's runner dependency.
type inlineRunner struct{}

func (inlineRunner) Go(ctx context.Context, task func(ctx context.Context)) error {
	task(ctx)
	return nil
}

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "ai-minutes-process",
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	configPath := flag.String("config", "", "Path to config file")
	file := flag.String("file", "", "Recording to process (mp4 or mov)")
	user := flag.String("user", "", "Owner identity to record the minutes under")
	flag.Parse()

	if *file == "" || *user == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	components, err := app.Wire(ctx, cfg, inlineRunner{})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer components.Close()

	ctx = logger.SetUserID(ctx, *user)
	appLogger.WithFields(logger.Fields{
		"file": *file,
		"user": *user,
	}).Info("Processing recording")

	start := time.Now()
	job, err := components.Pipeline.Process(ctx, domain.UserID(*user), *file)
	if err != nil {
		fields := logger.Fields{"duration_ms": time.Since(start).Milliseconds()}
		if job != nil {
			fields[logger.FieldJobID] = job.MinutesID
		}
		appLogger.WithFields(fields).WithError(err).Error("Processing failed")
		components.Close()
		os.Exit(1)
	}

	appLogger.WithFields(logger.Fields{
		logger.FieldJobID: job.MinutesID,
		"video_id":        job.VideoID,
		"duration_ms":     time.Since(start).Milliseconds(),
	}).Info("Processing completed")
}
