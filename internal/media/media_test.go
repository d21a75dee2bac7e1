package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildFrameArgs(t *testing.T) {
	args := buildFrameArgs("/videos/demo.mp4", 1.0, "/tmp/frames")

	assertArg := func(flag, want string) {
		t.Helper()
		for i, a := range args {
			if a == flag && i+1 < len(args) {
				if args[i+1] != want {
					t.Errorf("%s = %q, want %q", flag, args[i+1], want)
				}
				return
			}
		}
		t.Errorf("args missing %s: %v", flag, args)
	}

	assertArg("-i", "/videos/demo.mp4")
	assertArg("-vf", "fps=1/1")
	if got := args[len(args)-1]; got != filepath.Join("/tmp/frames", "frame_%06d.jpg") {
		t.Errorf("output pattern = %q", got)
	}
}

func TestBuildFrameArgsFractionalInterval(t *testing.T) {
	args := buildFrameArgs("in.mp4", 0.5, "out")
	found := false
	for _, a := range args {
		if a == "fps=1/0.5" {
			found = true
		}
	}
	if !found {
		t.Errorf("args missing fps filter for 0.5s interval: %v", args)
	}
}

func TestBuildAudioArgs(t *testing.T) {
	args := buildAudioArgs("/videos/demo.mp4", "/tmp/audio.wav")

	wantPairs := map[string]string{
		"-ac":  "1",
		"-ar":  "16000",
		"-c:a": "pcm_s16le",
		"-i":   "/videos/demo.mp4",
	}
	for flag, want := range wantPairs {
		found := false
		for i, a := range args {
			if a == flag && i+1 < len(args) && args[i+1] == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("args missing %s %s: %v", flag, want, args)
		}
	}
	if got := args[len(args)-1]; got != "/tmp/audio.wav" {
		t.Errorf("dest = %q, want /tmp/audio.wav", got)
	}
}

func TestSampleFramesAssignsIntervalTimestamps(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor("ffmpeg", 1.0)
	p.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		// Simulate ffmpeg writing three frames.
		for _, f := range []string{"frame_000001.jpg", "frame_000002.jpg", "frame_000003.jpg"} {
			if err := os.WriteFile(filepath.Join(dir, f), []byte("jpg"), 0o644); err != nil {
				return err
			}
		}
		return nil
	})

	frames, err := p.SampleFrames(context.Background(), "demo.mp4", dir)
	if err != nil {
		t.Fatalf("SampleFrames() error = %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("SampleFrames() returned %d frames, want 3", len(frames))
	}
	for i, frame := range frames {
		if want := float64(i); frame.Timestamp != want {
			t.Errorf("frame %d timestamp = %v, want %v", i, frame.Timestamp, want)
		}
	}
}

func TestSampleFramesNoOutput(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor("ffmpeg", 1.0)
	p.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return nil
	})

	frames, err := p.SampleFrames(context.Background(), "demo.mp4", dir)
	if err != nil {
		t.Fatalf("SampleFrames() error = %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("SampleFrames() returned %d frames, want 0", len(frames))
	}
}
