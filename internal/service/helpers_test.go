package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/miso-46/AI-minutes/internal/domain"
	"github.com/miso-46/AI-minutes/internal/repository"
	"github.com/miso-46/AI-minutes/internal/retrieval"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// repos bundles the repositories of one test database.
type repos struct {
	db         *gorm.DB
	minutes    *repository.MinutesRepository
	transcript *repository.TranscriptRepository
	chunk      *repository.ChunkRepository
	chat       *repository.ChatRepository
	summary    *repository.SummaryRepository
}

func newRepos(t *testing.T) *repos {
	db := openTestDB(t)
	return &repos{
		db:         db,
		minutes:    repository.NewMinutesRepository(db),
		transcript: repository.NewTranscriptRepository(db),
		chunk:      repository.NewChunkRepository(db),
		chat:       repository.NewChatRepository(db),
		summary:    repository.NewSummaryRepository(db),
	}
}

// seedEmbedded stores a completed minutes document whose transcript is
// already chunked and embedded with emb.
func (r *repos) seedEmbedded(t *testing.T, owner domain.UserID, chunks []string, emb *fakeEmbedder) (*domain.Minutes, *domain.Transcript, []domain.TranscriptChunk) {
	t.Helper()
	ctx := context.Background()
	m := &domain.Minutes{UserID: owner, Title: "weekly sync"}
	video, err := r.minutes.CreateWithVideo(ctx, m)
	require.NoError(t, err)
	require.NoError(t, r.minutes.MarkProcessing(ctx, m.ID))
	require.NoError(t, r.minutes.SetVideoLocation(ctx, m.ID, "videos/1/source.mp4", "https://store.example/videos/1/source.mp4"))
	require.NoError(t, r.minutes.MarkCompleted(ctx, m.ID))

	tr := &domain.Transcript{VideoID: video.ID, Content: strings.Join(chunks, "")}
	require.NoError(t, r.transcript.Create(ctx, tr))

	stored := make([]domain.TranscriptChunk, 0, len(chunks))
	for i, c := range chunks {
		chunk := domain.TranscriptChunk{TranscriptID: tr.ID, ChunkIndex: i, Content: c}
		require.NoError(t, r.chunk.CreateChunk(ctx, &chunk))
		vec, err := emb.Embed(ctx, c)
		require.NoError(t, err)
		encoded, err := retrieval.SerializeVector(vec)
		require.NoError(t, err)
		require.NoError(t, r.chunk.CreateEmbedding(ctx, &domain.VectorEmbedding{ChunkID: chunk.ID, Embedding: encoded}))
		stored = append(stored, chunk)
	}
	require.NoError(t, r.transcript.MarkEmbedded(ctx, tr.ID))
	tr.IsEmbedded = true
	return m, tr, stored
}

// fakeStorage keeps objects in memory.
type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (s *fakeStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) GetURL(key string) string {
	return "https://store.example/" + key
}

func (s *fakeStorage) PresignGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://signed.example/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

func (s *fakeStorage) EnsureBucket(ctx context.Context) error { return nil }

func (s *fakeStorage) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// fakeMedia imitates the transcoder by writing placeholder files.
type fakeMedia struct {
	duration       time.Duration
	compressedSize int
	segments       int
	probeErr       error
	thumbErr       error
}

func (m *fakeMedia) Probe(ctx context.Context, path string) (time.Duration, error) {
	return m.duration, m.probeErr
}

func (m *fakeMedia) Compress(ctx context.Context, in, out string) error {
	return os.WriteFile(out, bytes.Repeat([]byte{0}, m.compressedSize), 0o644)
}

func (m *fakeMedia) Split(ctx context.Context, in, outDir string, segment time.Duration) ([]string, error) {
	paths := make([]string, 0, m.segments)
	for i := 0; i < m.segments; i++ {
		p := filepath.Join(outDir, fmt.Sprintf("segment_%03d.mp4", i))
		if err := os.WriteFile(p, []byte{byte(i)}, 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (m *fakeMedia) ExtractThumbnail(ctx context.Context, in, out string) error {
	if m.thumbErr != nil {
		return m.thumbErr
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	img := image.NewRGBA(image.Rect(0, 0, 48, 27))
	img.Set(1, 1, color.White)
	return png.Encode(f, img)
}

// fakeRecording returns a fixed transcript for any source URL.
type fakeRecording struct {
	text    string
	err     error
	gotURL  string
	reports []int
	// before runs ahead of the reply, e.g. to cancel ctx or panic.
	before func()
}

func (f *fakeRecording) Transcribe(ctx context.Context, sourceURL string, sink ProgressSink) (string, error) {
	f.gotURL = sourceURL
	for _, p := range f.reports {
		sink.report(ctx, p)
	}
	if f.before != nil {
		f.before()
	}
	return f.text, f.err
}

// fakeEmbedder maps texts to vectors along keyword axes, so similarity is
// predictable: texts sharing a keyword are identical on that axis.
type fakeEmbedder struct {
	keywords []string
	failOn   int // 1-based call number that fails; 0 never
	calls    atomic.Int32
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	n := int(e.calls.Add(1))
	if e.failOn > 0 && n == e.failOn {
		return nil, errors.New("embedding backend unavailable")
	}
	vec := make([]float32, len(e.keywords)+1)
	for i, kw := range e.keywords {
		if strings.Contains(text, kw) {
			vec[i] = 1
		}
	}
	vec[len(e.keywords)] = 0.01
	return vec, nil
}

func (e *fakeEmbedder) GetModel() string { return "fake-embedding" }

// fakeCompleter records prompts and returns a canned reply.
type fakeCompleter struct {
	reply  string
	err    error
	system string
	user   string
	opts   CompletionOptions
	calls  int
}

func (c *fakeCompleter) Complete(ctx context.Context, system, user string, opts CompletionOptions) (string, error) {
	c.calls++
	c.system, c.user, c.opts = system, user, opts
	return c.reply, c.err
}

// fakeIndex records upserts and answers searches with fixed IDs.
type fakeIndex struct {
	mu       sync.Mutex
	upserted []uint
	results  []uint
	err      error
}

func (i *fakeIndex) UpsertChunk(ctx context.Context, chunk *domain.TranscriptChunk, vector []float32) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.upserted = append(i.upserted, chunk.ID)
	return i.err
}

func (i *fakeIndex) SearchChunks(ctx context.Context, transcriptID uint, vector []float32, limit int) ([]uint, error) {
	return i.results, nil
}

// syncRunner runs jobs inline.
type syncRunner struct{ err error }

func (r syncRunner) Go(ctx context.Context, task func(ctx context.Context)) error {
	if r.err != nil {
		return r.err
	}
	task(context.WithoutCancel(ctx))
	return nil
}
