// Package transcriber turns an extracted audio track into timestamped
// transcript segments by shelling out to the whisperx CLI and parsing its
// JSON output.
package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultLanguage is the transcription language used when none is
// configured.
const DefaultLanguage = "es"

// CommandRunner executes an external command. Tests substitute a fake.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Config holds the whisperx invocation settings.
type Config struct {
	Binary   string // whisperx executable, default "whisperx"
	Model    string // whisper model name, e.g. "small"
	Device   string // "cpu" or "cuda"
	Language string // ISO language code for transcription
}

// Segment is one transcribed span of speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcriber runs whisperx over audio files.
type Transcriber struct {
	cfg    Config
	runner CommandRunner
}

// New creates a Transcriber.
func New(cfg Config) *Transcriber {
	if cfg.Binary == "" {
		cfg.Binary = "whisperx"
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	return &Transcriber{cfg: cfg, runner: runCommand}
}

// WithCommandRunner sets a custom command runner (for testing).
func (t *Transcriber) WithCommandRunner(runner CommandRunner) {
	t.runner = runner
}

// Language returns the configured transcription language.
func (t *Transcriber) Language() string {
	return t.cfg.Language
}

// Transcribe runs whisperx over the audio file and returns its segments in
// chronological order. outputDir receives whisperx's JSON output; the
// caller owns its cleanup.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, outputDir string) ([]Segment, error) {
	if audioPath == "" {
		return nil, fmt.Errorf("transcribe: audio path required")
	}
	if outputDir == "" {
		outputDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	args := buildArgs(t.cfg, audioPath, outputDir)
	if err := t.runner(ctx, t.cfg.Binary, args...); err != nil {
		return nil, fmt.Errorf("whisperx: %w", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, baseName+".json")
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: read whisperx output: %w", err)
	}
	return parseSegments(raw)
}

func buildArgs(cfg Config, audioPath, outputDir string) []string {
	args := []string{
		audioPath,
		"--model", cfg.Model,
		"--language", cfg.Language,
		"--output_dir", outputDir,
		"--output_format", "json",
	}
	if cfg.Device != "" {
		args = append(args, "--device", cfg.Device)
	}
	return args
}

// parseSegments decodes a whisperx JSON document. Segments with empty text
// are dropped; whisperx emits them for silence-only spans.
func parseSegments(raw []byte) ([]Segment, error) {
	var doc struct {
		Segments []Segment `json:"segments"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse whisperx output: %w", err)
	}

	segments := make([]Segment, 0, len(doc.Segments))
	for _, seg := range doc.Segments {
		seg.Text = strings.TrimSpace(seg.Text)
		if seg.Text == "" {
			continue
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
