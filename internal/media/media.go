// Package media shells out to ffmpeg for the two decode jobs the pipeline
// needs: sampling still frames from a video at a fixed interval and
// extracting the audio track as a transcription-ready WAV.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// CommandRunner executes an external command. Tests substitute a fake to
// assert on the argument construction without invoking ffmpeg.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Frame is one sampled still image with its position in the video.
type Frame struct {
	Path      string
	Timestamp float64 // seconds from the start of the video
}

// Processor wraps ffmpeg invocations.
type Processor struct {
	ffmpegBinary  string
	frameInterval float64
	runner        CommandRunner
}

// NewProcessor creates a Processor sampling one frame every frameInterval
// seconds.
func NewProcessor(ffmpegBinary string, frameInterval float64) *Processor {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if frameInterval <= 0 {
		frameInterval = 1.0
	}
	return &Processor{
		ffmpegBinary:  ffmpegBinary,
		frameInterval: frameInterval,
		runner:        runCommand,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (p *Processor) WithCommandRunner(runner CommandRunner) {
	p.runner = runner
}

// SampleFrames decodes the video and writes one JPEG per interval into
// destDir, returning the frames in chronological order. Frame i carries
// timestamp i*interval: the decoder emits the first frame at t=0 and one
// frame per interval after that.
func (p *Processor) SampleFrames(ctx context.Context, videoPath, destDir string) ([]Frame, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("sample frames: ensure dest dir: %w", err)
	}

	args := buildFrameArgs(videoPath, p.frameInterval, destDir)
	if err := p.runner(ctx, p.ffmpegBinary, args...); err != nil {
		return nil, fmt.Errorf("sample frames: %w", err)
	}

	entries, err := filepath.Glob(filepath.Join(destDir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("sample frames: list output: %w", err)
	}
	sort.Strings(entries)

	frames := make([]Frame, 0, len(entries))
	for i, path := range entries {
		frames = append(frames, Frame{
			Path:      path,
			Timestamp: float64(i) * p.frameInterval,
		})
	}
	return frames, nil
}

// ExtractAudio writes the video's audio track to dest as a mono 16kHz WAV.
func (p *Processor) ExtractAudio(ctx context.Context, videoPath, dest string) error {
	args := buildAudioArgs(videoPath, dest)
	if err := p.runner(ctx, p.ffmpegBinary, args...); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	return nil
}

func buildFrameArgs(source string, interval float64, destDir string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vf", fmt.Sprintf("fps=1/%g", interval),
		"-q:v", "2",
		filepath.Join(destDir, "frame_%06d.jpg"),
	}
}

func buildAudioArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
