package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/miso-46/AI-minutes/internal/apperr"
	"github.com/miso-46/AI-minutes/internal/chunker"
	"github.com/miso-46/AI-minutes/internal/domain"
	"github.com/miso-46/AI-minutes/internal/logger"
	"github.com/miso-46/AI-minutes/internal/media"
	"github.com/miso-46/AI-minutes/internal/metrics"
	"github.com/miso-46/AI-minutes/internal/repository"
	"github.com/miso-46/AI-minutes/internal/retrieval"
	"github.com/miso-46/AI-minutes/internal/storage"
)

// allowedVideoTypes maps accepted upload extensions to their content type.
var allowedVideoTypes = map[string]string{
	".mp4": "video/mp4",
	".mov": "video/quicktime",
}

// RecordingTranscriber produces the transcript of a stored recording.
// *TranscriptionService implements it.
type RecordingTranscriber interface {
	Transcribe(ctx context.Context, sourceURL string, sink ProgressSink) (string, error)
}

// PipelineService drives a recording from upload to an embedded transcript.
type PipelineService struct {
	minutesRepo    *repository.MinutesRepository
	transcriptRepo *repository.TranscriptRepository
	chunkRepo      *repository.ChunkRepository
	storage        storage.ObjectStorage
	media          MediaProcessor
	transcriber    RecordingTranscriber
	embedder       Embedder
	index          ChunkIndex
	runner         JobRunner
	cfg            PipelineConfig
}

// PipelineConfig holds configuration for the pipeline.
type PipelineConfig struct {
	ChunkSize    int
	ChunkOverlap int
	URLTTL       time.Duration
	WorkDir      string
}

// PipelineDeps groups the collaborators of PipelineService.
type PipelineDeps struct {
	MinutesRepo    *repository.MinutesRepository
	TranscriptRepo *repository.TranscriptRepository
	ChunkRepo      *repository.ChunkRepository
	Storage        storage.ObjectStorage
	Media          MediaProcessor
	Transcriber    RecordingTranscriber
	Embedder       Embedder
	// Index is optional; nil disables vector index mirroring.
	Index  ChunkIndex
	Runner JobRunner
}

// NewPipelineService creates a new pipeline service.
func NewPipelineService(deps PipelineDeps, cfg PipelineConfig) *PipelineService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = chunker.DefaultOverlap
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = time.Hour
	}
	return &PipelineService{
		minutesRepo:    deps.MinutesRepo,
		transcriptRepo: deps.TranscriptRepo,
		chunkRepo:      deps.ChunkRepo,
		storage:        deps.Storage,
		media:          deps.Media,
		transcriber:    deps.Transcriber,
		embedder:       deps.Embedder,
		index:          deps.Index,
		runner:         deps.Runner,
		cfg:            cfg,
	}
}

// Job identifies one queued recording and the local copy of its upload.
type Job struct {
	MinutesID uint
	VideoID   uint
	Owner     domain.UserID
	LocalPath string
	Ext       string
}

// SubmitResult is returned to the uploader before processing starts.
type SubmitResult struct {
	MinutesID uint             `json:"minutes_id"`
	Status    domain.JobStatus `json:"status"`
}

// ValidateUpload checks the upload filename and returns its lower-cased
// extension.
func ValidateUpload(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedVideoTypes[ext]; !ok {
		return "", apperr.Validation("pipeline.Submit", "unsupported file type %q: only mp4 and mov are accepted", ext)
	}
	return ext, nil
}

// TitleFromFilename derives the minutes title from the uploaded filename.
func TitleFromFilename(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	title := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if title == "" || title == "." || title == "/" {
		return "untitled"
	}
	return title
}

// Submit registers the upload and queues it for background processing. It
// returns as soon as the job is queued.
func (s *PipelineService) Submit(ctx context.Context, owner domain.UserID, filename string, r io.Reader) (*SubmitResult, error) {
	job, err := s.register(ctx, owner, filename, r)
	if err != nil {
		return nil, err
	}

	err = s.runner.Go(ctx, func(jobCtx context.Context) {
		_ = s.Run(jobCtx, job)
	})
	if err != nil {
		s.abandon(ctx, job, fmt.Sprintf("failed to queue job: %v", err))
		return nil, apperr.Wrap(apperr.KindInternal, "pipeline.Submit", err)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldJobID: job.MinutesID,
		"filename":        filename,
	}).Info("Recording queued")

	return &SubmitResult{MinutesID: job.MinutesID, Status: domain.JobStatusQueued}, nil
}

// Process registers the local file at path and runs the pipeline
// synchronously. The file itself is left in place.
func (s *PipelineService) Process(ctx context.Context, owner domain.UserID, path string) (*Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "pipeline.Process", err)
	}
	defer f.Close()

	job, err := s.register(ctx, owner, filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	return job, s.Run(ctx, job)
}

func (s *PipelineService) register(ctx context.Context, owner domain.UserID, filename string, r io.Reader) (*Job, error) {
	const op = "pipeline.Submit"
	if owner.IsZero() {
		return nil, apperr.New(apperr.KindUnauthorized, op, "missing user identity")
	}
	ext, err := ValidateUpload(filename)
	if err != nil {
		return nil, err
	}

	localPath, err := s.saveUpload(r, ext)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}

	minutes := &domain.Minutes{UserID: owner, Title: TitleFromFilename(filename)}
	video, err := s.minutesRepo.CreateWithVideo(ctx, minutes)
	if err != nil {
		os.Remove(localPath)
		return nil, apperr.Wrap(apperr.KindInternal, op, fmt.Errorf("failed to register minutes: %w", err))
	}

	return &Job{
		MinutesID: minutes.ID,
		VideoID:   video.ID,
		Owner:     owner,
		LocalPath: localPath,
		Ext:       ext,
	}, nil
}

func (s *PipelineService) saveUpload(r io.Reader, ext string) (string, error) {
	if s.cfg.WorkDir != "" {
		if err := os.MkdirAll(s.cfg.WorkDir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create work dir: %w", err)
		}
	}
	f, err := os.CreateTemp(s.cfg.WorkDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return f.Name(), nil
}

// abandon fails a job that never started and drops its local file.
func (s *PipelineService) abandon(ctx context.Context, job *Job, reason string) {
	if err := s.minutesRepo.MarkFailed(context.WithoutCancel(ctx), job.MinutesID, reason); err != nil {
		logger.CtxError(ctx, "Failed to mark job %d failed: %v", job.MinutesID, err)
	}
	os.Remove(job.LocalPath)
	metrics.JobFinished(string(domain.JobStatusFailed))
}

// Run processes one job to a terminal status. Any error leaves the job
// failed with its error message and progress at the failing stage. The local
// upload is removed on every path.
func (s *PipelineService) Run(ctx context.Context, job *Job) error {
	ctx = logger.SetJobID(ctx, job.MinutesID)
	ctx = logger.SetComponent(ctx, "pipeline")
	ctx = logger.SetUserID(ctx, job.Owner.String())
	start := time.Now()

	defer func() {
		if err := os.Remove(job.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.CtxWarn(ctx, "Failed to remove local upload: %v", err)
		}
	}()

	if err := s.runGuarded(ctx, job); err != nil {
		// The failure must be recorded even when ctx was cancelled mid-run.
		if mErr := s.minutesRepo.MarkFailed(context.WithoutCancel(ctx), job.MinutesID, err.Error()); mErr != nil {
			logger.CtxError(ctx, "Failed to persist job failure: %v", mErr)
		}
		metrics.JobFinished(string(domain.JobStatusFailed))
		logger.With(logger.Fields{"kind": apperr.KindOf(err)}).
			WithDuration(start).
			WithStatus(string(domain.JobStatusFailed)).
			Error(ctx, "Pipeline failed: %v", err)
		return err
	}

	metrics.JobFinished(string(domain.JobStatusCompleted))
	logger.With(nil).WithDuration(start).WithStatus(string(domain.JobStatusCompleted)).Info(ctx, "Pipeline completed")
	return nil
}

// runGuarded turns a panic in any stage into an internal error so the job
// still reaches failed.
func (s *PipelineService) runGuarded(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperr.New(apperr.KindInternal, "pipeline.Run", "panic: %v", r)
		}
	}()
	return s.run(ctx, job)
}

func (s *PipelineService) run(ctx context.Context, job *Job) error {
	if err := s.minutesRepo.MarkProcessing(ctx, job.MinutesID); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return apperr.New(apperr.KindConflict, "pipeline.Run", "job %d is not queued", job.MinutesID)
		}
		return apperr.Wrap(apperr.KindInternal, "pipeline.Run", err)
	}

	key, err := s.stage(ctx, "upload", func(ctx context.Context) (string, error) {
		return s.uploadSource(ctx, job)
	})
	if err != nil {
		return err
	}
	if err := s.setProgress(ctx, job.MinutesID, domain.ProgressUploaded); err != nil {
		return err
	}

	s.attachThumbnail(ctx, job)

	text, err := s.stage(ctx, "transcription", func(ctx context.Context) (string, error) {
		return s.transcribe(ctx, job, key)
	})
	if err != nil {
		return err
	}
	if err := s.setProgress(ctx, job.MinutesID, domain.ProgressTranscribed); err != nil {
		return err
	}

	transcript := &domain.Transcript{VideoID: job.VideoID, Content: text}
	if err := s.transcriptRepo.Create(ctx, transcript); err != nil {
		return apperr.Wrap(apperr.KindInternal, "pipeline.Run", fmt.Errorf("failed to save transcript: %w", err))
	}

	chunks, err := chunker.Split(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return apperr.New(apperr.KindTranscription, "pipeline.Run", "transcript produced no chunks")
	}
	if err := s.setProgress(ctx, job.MinutesID, domain.ProgressChunked); err != nil {
		return err
	}

	if _, err := s.stage(ctx, "embedding", func(ctx context.Context) (string, error) {
		return "", s.embedChunks(ctx, transcript.ID, chunks)
	}); err != nil {
		return err
	}
	if err := s.setProgress(ctx, job.MinutesID, domain.ProgressEmbedded); err != nil {
		return err
	}
	if err := s.transcriptRepo.MarkEmbedded(ctx, transcript.ID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "pipeline.Run", err)
	}

	if err := s.minutesRepo.MarkCompleted(ctx, job.MinutesID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "pipeline.Run", err)
	}
	return nil
}

// stage times fn under the stage's log field and metric label.
func (s *PipelineService) stage(ctx context.Context, name string, fn func(ctx context.Context) (string, error)) (string, error) {
	ctx = logger.WithField(ctx, logger.FieldStage, name)
	start := time.Now()
	out, err := fn(ctx)
	metrics.ObserveStage(name, start, err)
	if err == nil {
		logger.With(nil).WithDuration(start).Debug(ctx, "Stage finished")
	}
	return out, err
}

func (s *PipelineService) setProgress(ctx context.Context, minutesID uint, progress int) error {
	if _, err := s.minutesRepo.UpdateProgress(ctx, minutesID, progress); err != nil {
		return apperr.Wrap(apperr.KindInternal, "pipeline.progress", err)
	}
	logger.With(logger.Fields{logger.FieldProgress: progress}).Debug(ctx, "Progress updated")
	return nil
}

func (s *PipelineService) uploadSource(ctx context.Context, job *Job) (string, error) {
	const op = "pipeline.upload"
	f, err := os.Open(job.LocalPath)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, op, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, op, err)
	}

	key := storage.VideoKey(job.MinutesID, job.Ext)
	if err := s.storage.Upload(ctx, key, f, info.Size(), allowedVideoTypes[job.Ext]); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, op, fmt.Errorf("failed to upload video: %w", err))
	}
	if err := s.minutesRepo.SetVideoLocation(ctx, job.MinutesID, key, s.storage.GetURL(key)); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, op, err)
	}
	return key, nil
}

// attachThumbnail stores a preview image for the list view. Failures are
// logged and do not affect the job.
func (s *PipelineService) attachThumbnail(ctx context.Context, job *Job) {
	ctx = logger.WithField(ctx, logger.FieldStage, "thumbnail")
	if err := s.thumbnail(ctx, job); err != nil {
		logger.CtxWarn(ctx, "Thumbnail skipped: %v", err)
	}
}

func (s *PipelineService) thumbnail(ctx context.Context, job *Job) error {
	ws, err := media.NewWorkspace(s.cfg.WorkDir, "thumb-")
	if err != nil {
		return err
	}
	defer ws.Cleanup()

	out := ws.Path("thumbnail.webp")
	if err := s.media.ExtractThumbnail(ctx, job.LocalPath, out); err != nil {
		return err
	}
	width, height, err := media.ImageSize(out)
	if err != nil {
		return err
	}

	f, err := os.Open(out)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	key := storage.ThumbnailKey(job.MinutesID)
	if err := s.storage.Upload(ctx, key, f, info.Size(), "image/webp"); err != nil {
		return err
	}
	return s.minutesRepo.SetThumbnail(ctx, job.MinutesID, key, width, height)
}

func (s *PipelineService) transcribe(ctx context.Context, job *Job, key string) (string, error) {
	sourceURL, err := s.storage.PresignGetURL(ctx, key, s.cfg.URLTTL)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "pipeline.transcribe", fmt.Errorf("failed to sign source URL: %w", err))
	}

	sink := func(ctx context.Context, percent int) {
		if _, err := s.minutesRepo.UpdateProgress(ctx, job.MinutesID, transcriptionProgress(percent)); err != nil {
			logger.CtxWarn(ctx, "Failed to update transcription progress: %v", err)
		}
	}
	return s.transcriber.Transcribe(ctx, sourceURL, sink)
}

// transcriptionProgress maps stage progress (0..100) into the job range
// reserved for transcription, below the transcribed checkpoint.
func transcriptionProgress(percent int) int {
	if percent < 0 {
		percent = 0
	}
	p := domain.ProgressUploaded + percent*(domain.ProgressTranscribed-domain.ProgressUploaded)/100
	if p >= domain.ProgressTranscribed {
		p = domain.ProgressTranscribed - 1
	}
	return p
}

// embedChunks stores every chunk with its vector. Each chunk is its own unit
// of work: the chunk row never exists without its embedding.
func (s *PipelineService) embedChunks(ctx context.Context, transcriptID uint, chunks []string) error {
	for i, content := range chunks {
		if err := s.embedChunk(ctx, transcriptID, i, content); err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	metrics.ChunksStored(len(chunks))
	logger.With(nil).WithCount(len(chunks)).Info(ctx, "Chunks embedded")
	return nil
}

// embedChunk commits the chunk and its embedding together, then mirrors the
// vector into the index. The index is only written for committed chunks.
func (s *PipelineService) embedChunk(ctx context.Context, transcriptID uint, index int, content string) error {
	chunk := &domain.TranscriptChunk{
		TranscriptID: transcriptID,
		ChunkIndex:   index,
		Content:      content,
	}
	var vector []float32
	err := s.chunkRepo.InUnitOfWork(ctx, func(tx *repository.ChunkRepository) error {
		if err := tx.CreateChunk(ctx, chunk); err != nil {
			return apperr.Wrap(apperr.KindInternal, "pipeline.embedChunk", err)
		}

		var err error
		vector, err = s.embedder.Embed(ctx, content)
		if err != nil {
			return apperr.Wrap(apperr.KindEmbedding, "pipeline.embedChunk", err)
		}
		encoded, err := retrieval.SerializeVector(vector)
		if err != nil {
			return apperr.Wrap(apperr.KindEmbedding, "pipeline.embedChunk", err)
		}
		if err := tx.CreateEmbedding(ctx, &domain.VectorEmbedding{ChunkID: chunk.ID, Embedding: encoded}); err != nil {
			return apperr.Wrap(apperr.KindInternal, "pipeline.embedChunk", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.index != nil {
		if err := s.index.UpsertChunk(ctx, chunk, vector); err != nil {
			return apperr.Wrap(apperr.KindInternal, "pipeline.embedChunk", err)
		}
	}
	return nil
}
