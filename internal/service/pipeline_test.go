package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/miso-46/AI-minutes/internal/apperr"
	"github.com/miso-46/AI-minutes/internal/domain"
	"github.com/miso-46/AI-minutes/internal/retrieval"
	"github.com/miso-46/AI-minutes/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type pipelineFixture struct {
	repos      *repos
	storage    *fakeStorage
	media      *fakeMedia
	recording  *fakeRecording
	embedder   *fakeEmbedder
	index      *fakeIndex
	pipeline   *PipelineService
	workDir    string
	progressMu sync.Mutex
	progress   []int
}

func newPipelineFixture(t *testing.T, text string) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		repos:     newRepos(t),
		storage:   newFakeStorage(),
		media:     &fakeMedia{},
		recording: &fakeRecording{text: text},
		embedder:  &fakeEmbedder{keywords: []string{"予算"}},
		index:     &fakeIndex{},
		workDir:   t.TempDir(),
	}

	// Record the job's progress after every write to the videos table.
	err := f.repos.db.Callback().Update().After("gorm:update").Register("test:progress", func(tx *gorm.DB) {
		if tx.Statement.Table != "videos" {
			return
		}
		var p int
		tx.Session(&gorm.Session{NewDB: true}).Raw("SELECT progress FROM videos ORDER BY id DESC LIMIT 1").Scan(&p)
		f.progressMu.Lock()
		if n := len(f.progress); n == 0 || f.progress[n-1] != p {
			f.progress = append(f.progress, p)
		}
		f.progressMu.Unlock()
	})
	require.NoError(t, err)

	f.pipeline = NewPipelineService(PipelineDeps{
		MinutesRepo:    f.repos.minutes,
		TranscriptRepo: f.repos.transcript,
		ChunkRepo:      f.repos.chunk,
		Storage:        f.storage,
		Media:          f.media,
		Transcriber:    f.recording,
		Embedder:       f.embedder,
		Index:          f.index,
		Runner:         syncRunner{},
	}, PipelineConfig{ChunkSize: 400, ChunkOverlap: 50, WorkDir: f.workDir})
	return f
}

func (f *pipelineFixture) video(t *testing.T, minutesID uint) *domain.Video {
	t.Helper()
	v, err := f.repos.minutes.GetVideo(context.Background(), minutesID)
	require.NoError(t, err)
	return v
}

func TestPipelineHappyPath(t *testing.T) {
	ctx := context.Background()
	text := strings.Repeat("あ", 1000)
	f := newPipelineFixture(t, text)

	res, err := f.pipeline.Submit(ctx, "user-1", "Weekly Sync.MP4", strings.NewReader("fake video bytes"))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, res.Status)

	v := f.video(t, res.MinutesID)
	assert.Equal(t, domain.JobStatusCompleted, v.Status)
	assert.Equal(t, 100, v.Progress)
	assert.Empty(t, v.ErrorMessage)
	assert.Equal(t, []int{0, 20, 80, 90, 95, 100}, f.progress)

	m, err := f.repos.minutes.GetByID(ctx, res.MinutesID)
	require.NoError(t, err)
	assert.Equal(t, "Weekly Sync", m.Title)
	assert.Equal(t, domain.UserID("user-1"), m.UserID)

	// Source and thumbnail are stored; transcription read through a signed URL.
	sourceKey := storage.VideoKey(res.MinutesID, ".mp4")
	assert.True(t, f.storage.has(sourceKey))
	assert.True(t, f.storage.has(storage.ThumbnailKey(res.MinutesID)))
	assert.Equal(t, sourceKey, v.StorageKey)
	require.NotNil(t, v.VideoURL)
	assert.Contains(t, f.recording.gotURL, "https://signed.example/"+sourceKey)
	assert.Equal(t, 48, v.ImageWidth)
	assert.Equal(t, 27, v.ImageHeight)

	tr, err := f.repos.transcript.GetByVideoID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, text, tr.Content)
	assert.True(t, tr.IsEmbedded)

	rows, err := f.repos.chunk.ListWithEmbeddings(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	wantLens := []int{400, 400, 300}
	for i, row := range rows {
		assert.Equal(t, i, row.Chunk.ChunkIndex)
		assert.Equal(t, wantLens[i], len([]rune(row.Chunk.Content)))
		vec, err := retrieval.ParseVector(row.Embedding)
		require.NoError(t, err)
		assert.Len(t, vec, 2)
	}
	assert.Len(t, f.index.upserted, 3)

	// The local upload is gone.
	entries, err := os.ReadDir(f.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipelineThumbnailFailureIsNotFatal(t *testing.T) {
	f := newPipelineFixture(t, "会議を始めます。予算について話します。")
	f.media.thumbErr = errors.New("no video stream")

	res, err := f.pipeline.Submit(context.Background(), "user-1", "a.mov", strings.NewReader("x"))
	require.NoError(t, err)

	v := f.video(t, res.MinutesID)
	assert.Equal(t, domain.JobStatusCompleted, v.Status)
	assert.Empty(t, v.ImageKey)
	assert.False(t, f.storage.has(storage.ThumbnailKey(res.MinutesID)))
}

func TestPipelineEmbeddingFailureRollsBackChunk(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, strings.Repeat("い", 1000))
	f.embedder.failOn = 2

	res, err := f.pipeline.Submit(ctx, "user-1", "b.mp4", strings.NewReader("x"))
	require.NoError(t, err)

	v := f.video(t, res.MinutesID)
	assert.Equal(t, domain.JobStatusFailed, v.Status)
	assert.Equal(t, 90, v.Progress)
	assert.Contains(t, v.ErrorMessage, "embedding backend unavailable")

	tr, err := f.repos.transcript.GetByVideoID(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, tr.IsEmbedded)

	// Only the first chunk's unit of work committed.
	n, err := f.repos.chunk.CountByTranscript(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Progress is frozen once failed.
	updated, err := f.repos.minutes.UpdateProgress(ctx, res.MinutesID, 95)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Equal(t, 90, f.video(t, res.MinutesID).Progress)

	entries, err := os.ReadDir(f.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipelineTranscriptionFailure(t *testing.T) {
	f := newPipelineFixture(t, "")
	f.recording.err = apperr.New(apperr.KindTranscription, "whisper.Transcribe", "HTTP 500: boom")
	f.recording.reports = []int{10, 30}

	res, err := f.pipeline.Submit(context.Background(), "user-1", "c.mp4", strings.NewReader("x"))
	require.NoError(t, err)

	v := f.video(t, res.MinutesID)
	assert.Equal(t, domain.JobStatusFailed, v.Status)
	// 20 + 30*60/100
	assert.Equal(t, 38, v.Progress)
	assert.Contains(t, v.ErrorMessage, "HTTP 500")
}

func TestPipelineIndexSeesOnlyCommittedChunks(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, strings.Repeat("う", 1000))
	f.index.err = errors.New("qdrant unavailable")

	res, err := f.pipeline.Submit(ctx, "user-1", "e.mp4", strings.NewReader("x"))
	require.NoError(t, err)

	v := f.video(t, res.MinutesID)
	assert.Equal(t, domain.JobStatusFailed, v.Status)
	assert.Equal(t, 90, v.Progress)
	assert.Contains(t, v.ErrorMessage, "qdrant unavailable")

	tr, err := f.repos.transcript.GetByVideoID(ctx, v.ID)
	require.NoError(t, err)
	rows, err := f.repos.chunk.ListWithEmbeddings(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []uint{rows[0].Chunk.ID}, f.index.upserted)
}

func TestPipelineCancelledRunStillFails(t *testing.T) {
	f := newPipelineFixture(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.recording.err = apperr.New(apperr.KindTranscription, "whisper.Transcribe", "request aborted")
	f.recording.before = cancel

	src := filepath.Join(t.TempDir(), "standup.mp4")
	require.NoError(t, os.WriteFile(src, []byte("video"), 0o644))

	job, err := f.pipeline.Process(ctx, "operator", src)
	require.Error(t, err)
	require.NotNil(t, job)

	v := f.video(t, job.MinutesID)
	assert.Equal(t, domain.JobStatusFailed, v.Status)
	assert.Equal(t, 20, v.Progress)
	assert.Contains(t, v.ErrorMessage, "request aborted")
}

func TestPipelinePanicMarksJobFailed(t *testing.T) {
	f := newPipelineFixture(t, "text")
	f.recording.before = func() { panic("decoder crashed") }

	res, err := f.pipeline.Submit(context.Background(), "user-1", "f.mp4", strings.NewReader("x"))
	require.NoError(t, err)

	v := f.video(t, res.MinutesID)
	assert.Equal(t, domain.JobStatusFailed, v.Status)
	assert.Equal(t, 20, v.Progress)
	assert.Contains(t, v.ErrorMessage, "panic: decoder crashed")

	entries, err := os.ReadDir(f.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipelineUploadFailure(t *testing.T) {
	f := newPipelineFixture(t, "text")
	f.storage.uploadErr = errors.New("bucket gone")

	res, err := f.pipeline.Submit(context.Background(), "user-1", "d.mp4", strings.NewReader("x"))
	require.NoError(t, err)

	v := f.video(t, res.MinutesID)
	assert.Equal(t, domain.JobStatusFailed, v.Status)
	assert.Equal(t, 0, v.Progress)
	assert.Nil(t, v.VideoURL)
}

func TestSubmitRejectsUnsupportedType(t *testing.T) {
	f := newPipelineFixture(t, "text")

	_, err := f.pipeline.Submit(context.Background(), "user-1", "notes.avi", strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	list, err := f.repos.minutes.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSubmitRequiresIdentity(t *testing.T) {
	f := newPipelineFixture(t, "text")
	_, err := f.pipeline.Submit(context.Background(), "  ", "a.mp4", strings.NewReader("x"))
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestSubmitQueueFailureMarksJobFailed(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, "text")
	f.pipeline.runner = syncRunner{err: ErrDispatcherFull}

	_, err := f.pipeline.Submit(ctx, "user-1", "a.mp4", strings.NewReader("x"))
	require.Error(t, err)

	list, err := f.repos.minutes.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.JobStatusFailed, list[0].Video.Status)

	entries, err := os.ReadDir(f.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// cancellingRunner cancels the submitter's context and then refuses the job.
type cancellingRunner struct{ cancel context.CancelFunc }

func (r cancellingRunner) Go(ctx context.Context, task func(ctx context.Context)) error {
	r.cancel()
	return ErrDispatcherFull
}

func TestSubmitQueueFailureAfterCancelMarksJobFailed(t *testing.T) {
	f := newPipelineFixture(t, "text")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.pipeline.runner = cancellingRunner{cancel: cancel}

	_, err := f.pipeline.Submit(ctx, "user-1", "a.mp4", strings.NewReader("x"))
	require.Error(t, err)

	list, err := f.repos.minutes.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.JobStatusFailed, list[0].Video.Status)
}

func TestProcessKeepsSourceFile(t *testing.T) {
	f := newPipelineFixture(t, "予算の確認。")
	src := filepath.Join(t.TempDir(), "meeting.mp4")
	require.NoError(t, os.WriteFile(src, []byte("video"), 0o644))

	job, err := f.pipeline.Process(context.Background(), "operator", src)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, f.video(t, job.MinutesID).Status)

	_, err = os.Stat(src)
	assert.NoError(t, err)
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Weekly Sync.mp4", "Weekly Sync"},
		{"C:\\Users\\me\\定例会議.MOV", "定例会議"},
		{"dir/sub/plan.v2.mp4", "plan.v2"},
		{".mp4", "untitled"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleFromFilename(tt.in))
		})
	}
}

func TestValidateUpload(t *testing.T) {
	ext, err := ValidateUpload("a.MoV")
	require.NoError(t, err)
	assert.Equal(t, ".mov", ext)

	for _, name := range []string{"a.mkv", "noext", "a.mp4.exe"} {
		_, err := ValidateUpload(name)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), name)
	}
}

func TestTranscriptionProgressMapping(t *testing.T) {
	assert.Equal(t, 20, transcriptionProgress(0))
	assert.Equal(t, 26, transcriptionProgress(10))
	assert.Equal(t, 50, transcriptionProgress(50))
	assert.Equal(t, 79, transcriptionProgress(100))
	assert.Equal(t, 20, transcriptionProgress(-5))
}
