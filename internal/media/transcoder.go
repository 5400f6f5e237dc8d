// Package media wraps the ffmpeg and ffprobe binaries used to prepare
// meeting recordings for transcription.
//
// Required binaries in the worker runtime: ffmpeg (with libx264, aac and
// libwebp) and ffprobe.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/miso-46/AI-minutes/internal/apperr"
)

const (
	// MaxTranscriptionBytes is the largest file the transcription API accepts.
	MaxTranscriptionBytes int64 = 25 << 20
	// DefaultSegmentDuration is the length of the pieces an oversized file is
	// split into.
	DefaultSegmentDuration = 10 * time.Minute
)

// CommandRunner executes an external tool and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// TranscodingError reports a failed ffmpeg/ffprobe invocation with the
// tool's own output.
type TranscodingError struct {
	Tool   string
	Args   []string
	Output string
	Err    error
}

func (e *TranscodingError) Error() string {
	out := strings.TrimSpace(e.Output)
	if len(out) > 2000 {
		out = "..." + out[len(out)-2000:]
	}
	return fmt.Sprintf("%s failed: %v; out=%s", e.Tool, e.Err, out)
}

func (e *TranscodingError) Unwrap() error { return e.Err }

// ErrorKind tags the error for the HTTP and pipeline layers.
func (e *TranscodingError) ErrorKind() apperr.Kind { return apperr.KindTranscoding }

// Options configure the transcoding profile.
type Options struct {
	FFmpegPath   string
	FFprobePath  string
	MaxHeight    int
	FrameRate    int
	CRF          int
	Preset       string
	AudioBitrate string
	// KeyframeInterval forces a keyframe at every multiple so that later
	// stream-copy splitting cuts exactly on segment boundaries.
	KeyframeInterval time.Duration
}

// DefaultOptions is a small-file profile: 480p, 15 fps, H.264 CRF 32, AAC 96k.
func DefaultOptions() Options {
	return Options{
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		MaxHeight:        480,
		FrameRate:        15,
		CRF:              32,
		Preset:           "ultrafast",
		AudioBitrate:     "96k",
		KeyframeInterval: DefaultSegmentDuration,
	}
}

// Transcoder runs the media tools. It is synchronous; call it from
// background jobs, not request handlers.
type Transcoder struct {
	runner CommandRunner
	opts   Options
}

// NewTranscoder returns a Transcoder using the system binaries.
func NewTranscoder(opts Options) *Transcoder {
	return NewTranscoderWithRunner(execRunner{}, opts)
}

// NewTranscoderWithRunner returns a Transcoder executing through runner.
func NewTranscoderWithRunner(runner CommandRunner, opts Options) *Transcoder {
	def := DefaultOptions()
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = def.FFmpegPath
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = def.FFprobePath
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = def.MaxHeight
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = def.FrameRate
	}
	if opts.CRF <= 0 {
		opts.CRF = def.CRF
	}
	if opts.Preset == "" {
		opts.Preset = def.Preset
	}
	if opts.AudioBitrate == "" {
		opts.AudioBitrate = def.AudioBitrate
	}
	if opts.KeyframeInterval <= 0 {
		opts.KeyframeInterval = def.KeyframeInterval
	}
	return &Transcoder{runner: runner, opts: opts}
}

// AssertReady fails if a required binary is missing from PATH.
func (t *Transcoder) AssertReady(ctx context.Context) error {
	for _, name := range []string{t.opts.FFmpegPath, t.opts.FFprobePath} {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", name, err)
		}
	}
	return nil
}

func (t *Transcoder) run(ctx context.Context, tool string, args ...string) ([]byte, error) {
	out, err := t.runner.Run(ctx, tool, args...)
	if err != nil {
		return out, &TranscodingError{Tool: filepath.Base(tool), Args: args, Output: string(out), Err: err}
	}
	return out, nil
}

// Probe returns the container duration of path.
func (t *Transcoder) Probe(ctx context.Context, path string) (time.Duration, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	out, err := t.run(ctx, t.opts.FFprobePath, args...)
	if err != nil {
		return 0, err
	}
	secs, perr := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if perr != nil || secs < 0 {
		return 0, &TranscodingError{Tool: "ffprobe", Args: args, Output: string(out), Err: fmt.Errorf("unparsable duration")}
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// CompressArgs returns the ffmpeg arguments of Compress.
func (t *Transcoder) CompressArgs(in, out string) []string {
	gop := int(t.opts.KeyframeInterval / time.Second)
	if gop < 1 {
		gop = 1
	}
	return []string{
		"-y", "-hide_banner",
		"-i", in,
		"-vf", fmt.Sprintf("scale=-2:'min(%d,ih)'", t.opts.MaxHeight),
		"-r", strconv.Itoa(t.opts.FrameRate),
		"-c:v", "libx264",
		"-preset", t.opts.Preset,
		"-crf", strconv.Itoa(t.opts.CRF),
		"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", gop),
		"-c:a", "aac",
		"-b:a", t.opts.AudioBitrate,
		"-movflags", "+faststart",
		out,
	}
}

// Compress re-encodes in to out with the configured profile.
func (t *Transcoder) Compress(ctx context.Context, in, out string) error {
	_, err := t.run(ctx, t.opts.FFmpegPath, t.CompressArgs(in, out)...)
	return err
}

// Split cuts in into consecutive pieces of segment length in outDir and
// returns them in temporal order. Pieces have independent timestamps.
func (t *Transcoder) Split(ctx context.Context, in, outDir string, segment time.Duration) ([]string, error) {
	if segment <= 0 {
		segment = DefaultSegmentDuration
	}
	ext := filepath.Ext(in)
	if ext == "" {
		ext = ".mp4"
	}
	args := []string{
		"-y", "-hide_banner",
		"-i", in,
		"-map", "0",
		"-c", "copy",
		"-f", "segment",
		"-segment_time", strconv.Itoa(int(segment / time.Second)),
		"-reset_timestamps", "1",
		filepath.Join(outDir, "segment_%03d"+ext),
	}
	if _, err := t.run(ctx, t.opts.FFmpegPath, args...); err != nil {
		return nil, err
	}

	paths, err := filepath.Glob(filepath.Join(outDir, "segment_*"+ext))
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	if len(paths) == 0 {
		return nil, &TranscodingError{Tool: "ffmpeg", Args: args, Err: fmt.Errorf("no segments produced")}
	}
	sort.Strings(paths)
	return paths, nil
}

// ExtractThumbnail writes a representative frame of in as a webp image.
func (t *Transcoder) ExtractThumbnail(ctx context.Context, in, out string) error {
	_, err := t.run(ctx, t.opts.FFmpegPath,
		"-y", "-hide_banner",
		"-i", in,
		"-vf", "thumbnail,scale=480:-2",
		"-frames:v", "1",
		"-c:v", "libwebp",
		out,
	)
	return err
}

// FileSize returns the size of path in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
