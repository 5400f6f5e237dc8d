package service

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/miso-46/AI-minutes/internal/apperr"
	"github.com/miso-46/AI-minutes/internal/logger"
	"github.com/miso-46/AI-minutes/internal/media"
	"golang.org/x/sync/errgroup"
)

// Checkpoints of the transcription stage, in percent of the stage.
const (
	transcribeProgressProbed     = 10
	transcribeProgressCompressed = 30
	transcribeProgressDone       = 100
)

// TranscriptionService turns a stored recording into one transcript string.
type TranscriptionService struct {
	media        MediaProcessor
	transcriber  Transcriber
	download     *resty.Client
	workDir      string
	maxFileBytes int64
	segment      time.Duration
	concurrency  int
}

// TranscriptionConfig holds configuration for the transcription stage.
type TranscriptionConfig struct {
	WorkDir         string
	MaxFileBytes    int64
	SegmentDuration time.Duration
	Concurrency     int
	DownloadTimeout time.Duration
}

// NewTranscriptionService creates a new transcription service.
func NewTranscriptionService(mp MediaProcessor, transcriber Transcriber, cfg *TranscriptionConfig) *TranscriptionService {
	maxBytes := cfg.MaxFileBytes
	if maxBytes <= 0 || maxBytes > media.MaxTranscriptionBytes {
		maxBytes = media.MaxTranscriptionBytes
	}
	segment := cfg.SegmentDuration
	if segment <= 0 {
		segment = media.DefaultSegmentDuration
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	timeout := cfg.DownloadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	return &TranscriptionService{
		media:        mp,
		transcriber:  transcriber,
		download:     resty.New().SetTimeout(timeout),
		workDir:      cfg.WorkDir,
		maxFileBytes: maxBytes,
		segment:      segment,
		concurrency:  concurrency,
	}
}

// Transcribe downloads the recording at sourceURL and returns its full text.
// Oversized recordings are split and the pieces transcribed concurrently; a
// failure of any piece fails the whole call.
func (s *TranscriptionService) Transcribe(ctx context.Context, sourceURL string, sink ProgressSink) (string, error) {
	const op = "transcription.Transcribe"
	ctx = logger.WithField(ctx, logger.FieldStage, "transcription")

	ws, err := media.NewWorkspace(s.workDir, "transcribe-")
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, op, err)
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			logger.CtxWarn(ctx, "Failed to clean transcription workspace: %v", err)
		}
	}()

	src := ws.Path("source" + sourceExt(sourceURL))
	if err := s.fetch(ctx, sourceURL, src); err != nil {
		return "", apperr.Wrap(apperr.KindTranscription, op, err)
	}

	text, err := s.transcribeLocal(ctx, ws, src, sink)
	if err != nil {
		return "", apperr.Wrap(apperr.KindTranscription, op, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", apperr.New(apperr.KindTranscription, op, "transcription produced no text")
	}
	return text, nil
}

func (s *TranscriptionService) fetch(ctx context.Context, sourceURL, dst string) error {
	start := time.Now()
	resp, err := s.download.R().
		SetContext(ctx).
		SetOutput(dst).
		Get(sourceURL)
	if err != nil {
		return fmt.Errorf("failed to download source video: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("failed to download source video: HTTP %d", resp.StatusCode())
	}
	size, _ := media.FileSize(dst)
	logger.With(logger.Fields{logger.FieldSize: size}).WithDuration(start).Debug(ctx, "Source video downloaded")
	return nil
}

func (s *TranscriptionService) transcribeLocal(ctx context.Context, ws *media.Workspace, src string, sink ProgressSink) (string, error) {
	duration, err := s.media.Probe(ctx, src)
	if err != nil {
		return "", err
	}
	sink.report(ctx, transcribeProgressProbed)

	compressed := ws.Path("compressed.mp4")
	if err := s.media.Compress(ctx, src, compressed); err != nil {
		return "", err
	}
	size, err := media.FileSize(compressed)
	if err != nil {
		return "", fmt.Errorf("failed to stat compressed file: %w", err)
	}
	sink.report(ctx, transcribeProgressCompressed)

	logger.FromContext(ctx).WithFields(logger.Fields{
		"duration_s":     int(duration.Seconds()),
		logger.FieldSize: size,
	}).Info("Recording compressed")

	if size <= s.maxFileBytes {
		text, err := s.transcriber.Transcribe(ctx, compressed)
		if err != nil {
			return "", err
		}
		sink.report(ctx, transcribeProgressDone)
		return text, nil
	}

	segDir := ws.Path("segments")
	if err := os.MkdirAll(segDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create segment dir: %w", err)
	}
	segments, err := s.media.Split(ctx, compressed, segDir, s.segment)
	if err != nil {
		return "", err
	}
	return s.transcribeSegments(ctx, segments, sink)
}

// transcribeSegments transcribes every segment with bounded concurrency and
// joins the results in segment order.
func (s *TranscriptionService) transcribeSegments(ctx context.Context, segments []string, sink ProgressSink) (string, error) {
	n := len(segments)
	texts := make([]string, n)
	done := make(chan struct{}, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	reported := make(chan struct{})
	go func() {
		defer close(reported)
		completed := 0
		for range done {
			completed++
			sink.report(ctx, transcribeProgressCompressed+(transcribeProgressDone-transcribeProgressCompressed)*completed/n)
		}
	}()

	for i, seg := range segments {
		g.Go(func() error {
			text, err := s.transcriber.Transcribe(gctx, seg)
			if err != nil {
				return fmt.Errorf("segment %d/%d: %w", i+1, n, err)
			}
			texts[i] = strings.TrimSpace(text)
			done <- struct{}{}
			return nil
		})
	}

	err := g.Wait()
	close(done)
	<-reported
	if err != nil {
		return "", err
	}

	logger.With(logger.Fields{logger.FieldCount: n}).Info(ctx, "Segments transcribed")
	return strings.Join(texts, " "), nil
}

// sourceExt returns the file extension of the object a URL points at,
// ignoring any query string.
func sourceExt(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ".mp4"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		return ".mp4"
	}
	return ext
}
