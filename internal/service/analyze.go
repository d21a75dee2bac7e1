package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nmedina/skulens/internal/domain"
	"github.com/nmedina/skulens/internal/featurestore"
	"github.com/nmedina/skulens/internal/logger"
	"github.com/nmedina/skulens/internal/matcher"
	"github.com/nmedina/skulens/internal/media"
	"github.com/nmedina/skulens/internal/transcriber"
)

// MediaProcessor decodes video into frames and audio.
type MediaProcessor interface {
	SampleFrames(ctx context.Context, videoPath, destDir string) ([]media.Frame, error)
	ExtractAudio(ctx context.Context, videoPath, dest string) error
}

// SpeechTranscriber produces timestamped transcript segments from audio.
type SpeechTranscriber interface {
	Transcribe(ctx context.Context, audioPath, outputDir string) ([]transcriber.Segment, error)
}

// StoreViewer exposes the current feature store state.
type StoreViewer interface {
	View() *featurestore.State
}

// AnalysisService runs the full video analysis pipeline: frame sampling and
// visual matching on one side, audio extraction and transcription on the
// other, joined by the time-window annotator.
type AnalysisService struct {
	media          MediaProcessor
	speech         SpeechTranscriber
	extractor      Extractor
	matcher        *matcher.Matcher
	store          StoreViewer
	annotator      *Annotator
	frameThreshold float64
	workDir        string
	log            *logger.Logger
}

// NewAnalysisService wires the analysis pipeline. frameThreshold is the
// fixed contrast threshold used for video frames; frames are not tuned the
// way reference images are. workDir is where per-run scratch directories
// are created; empty means the system temp dir.
func NewAnalysisService(
	mediaProc MediaProcessor,
	speech SpeechTranscriber,
	extractor Extractor,
	m *matcher.Matcher,
	store StoreViewer,
	annotator *Annotator,
	frameThreshold float64,
	workDir string,
	log *logger.Logger,
) *AnalysisService {
	return &AnalysisService{
		media:          mediaProc,
		speech:         speech,
		extractor:      extractor,
		matcher:        m,
		store:          store,
		annotator:      annotator,
		frameThreshold: frameThreshold,
		workDir:        workDir,
		log:            log.WithField(logger.FieldComponent, "analysis"),
	}
}

// Analyze runs both evidence channels over one video and returns the
// annotated transcript. The whole run observes a single feature store
// version: a registration or restore that lands mid-run does not change
// what this video is matched against.
func (s *AnalysisService) Analyze(ctx context.Context, videoPath string) (*domain.AnalysisResult, error) {
	start := time.Now()
	state := s.store.View()

	scratch, err := os.MkdirTemp(s.workDir, "skulens-analysis-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	var (
		detections []domain.VisualDetection
		segments   []domain.TranscriptSegment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detections, err = s.detectProducts(gctx, videoPath, filepath.Join(scratch, "frames"), state)
		return err
	})
	g.Go(func() error {
		var err error
		segments, err = s.transcribe(gctx, videoPath, scratch)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &domain.AnalysisResult{
		Segments:     s.annotator.Annotate(segments, detections, state.CatalogNames()),
		Detections:   detections,
		StoreVersion: state.Version(),
	}

	s.log.WithFields(logger.Fields{
		logger.FieldVideo:      filepath.Base(videoPath),
		logger.FieldVersionID:  state.Version(),
		"detections":           len(detections),
		"segments":             len(segments),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info("Analysis completed")
	return result, nil
}

// detectProducts samples frames and matches each one against the store
// state. Frames the extractor finds nothing in are skipped silently; an
// extraction failure aborts the run.
func (s *AnalysisService) detectProducts(ctx context.Context, videoPath, frameDir string, state *featurestore.State) ([]domain.VisualDetection, error) {
	if state.Len() == 0 {
		s.log.Warn("Feature store is empty, skipping visual detection")
		return nil, nil
	}

	frames, err := s.media.SampleFrames(ctx, videoPath, frameDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternal, err)
	}

	products := state.Products()
	var detections []domain.VisualDetection
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		imageBytes, err := os.ReadFile(frame.Path)
		if err != nil {
			return nil, fmt.Errorf("read frame %s: %w", frame.Path, err)
		}
		ds, _, err := s.extractor.Extract(ctx, imageBytes, s.frameThreshold)
		if err != nil {
			return nil, err
		}
		if ds.Count() == 0 {
			continue
		}

		match, ok, err := s.matcher.BestMatch(ctx, ds, products)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		detections = append(detections, domain.VisualDetection{
			Timestamp:  frame.Timestamp,
			ProductID:  match.ProductID,
			Matches:    match.Matches,
			Confidence: match.Confidence,
		})
	}
	return detections, nil
}

// transcribe extracts the audio track and runs speech recognition over it.
func (s *AnalysisService) transcribe(ctx context.Context, videoPath, scratch string) ([]domain.TranscriptSegment, error) {
	audioPath := filepath.Join(scratch, "audio.wav")
	if err := s.media.ExtractAudio(ctx, videoPath, audioPath); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternal, err)
	}

	raw, err := s.speech.Transcribe(ctx, audioPath, scratch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternal, err)
	}

	segments := make([]domain.TranscriptSegment, 0, len(raw))
	for _, seg := range raw {
		segments = append(segments, domain.TranscriptSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}
	return segments, nil
}
