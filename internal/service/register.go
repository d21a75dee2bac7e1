package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	// Register decoders for the reference image formats products are
	// uploaded in.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/nmedina/skulens/internal/config"
	"github.com/nmedina/skulens/internal/domain"
	"github.com/nmedina/skulens/internal/logger"
)

// Extractor extracts keypoint descriptors from an image.
type Extractor interface {
	Extract(ctx context.Context, image []byte, contrastThreshold float64) (domain.DescriptorSet, int, error)
}

// BackgroundRemover strips backgrounds from reference images.
type BackgroundRemover interface {
	Remove(ctx context.Context, image []byte) ([]byte, error)
}

// Registrar commits a product into the versioned feature store.
type Registrar interface {
	Register(ctx context.Context, name string, descriptors domain.DescriptorSet) (domain.Product, string, error)
}

// RegisterService runs the product registration pipeline: image validation,
// background removal, contrast tuning, extraction, and the store commit.
type RegisterService struct {
	extractor Extractor
	bgRemover BackgroundRemover
	store     Registrar
	params    TuneParams
	log       *logger.Logger
}

// NewRegisterService wires the registration pipeline.
func NewRegisterService(extractor Extractor, bgRemover BackgroundRemover, store Registrar, cfg config.ExtractorConfig, log *logger.Logger) *RegisterService {
	return &RegisterService{
		extractor: extractor,
		bgRemover: bgRemover,
		store:     store,
		params: TuneParams{
			TargetKeypoints: cfg.TargetKeypoints,
			Tolerance:       cfg.Tolerance,
			MinThreshold:    cfg.MinThreshold,
			MaxThreshold:    cfg.MaxThreshold,
			MaxIterations:   cfg.MaxIterations,
		},
		log: log.WithField(logger.FieldComponent, "register"),
	}
}

// RegisterResult reports a completed registration.
type RegisterResult struct {
	Product   domain.Product `json:"product"`
	VersionID string         `json:"version_id"`
	Keypoints int            `json:"keypoints"`
	Threshold float64        `json:"threshold"`
}

// PreviewResult reports a dry-run extraction without a store commit.
type PreviewResult struct {
	Keypoints int     `json:"keypoints"`
	Threshold float64 `json:"threshold"`
}

// Register runs the full registration pipeline for one product image.
//
// Parameters:
//   - ctx: request context
//   - name: product name to register under
//   - imageBytes: raw reference image (JPEG, PNG, or WebP)
//
// Returns:
//   - RegisterResult: the registered product, its snapshot version, and the
//     tuned extraction parameters
//   - error: domain.ErrValidation for bad input, domain.ErrExternal for
//     model service failures
func (s *RegisterService) Register(ctx context.Context, name string, imageBytes []byte) (RegisterResult, error) {
	start := time.Now()

	if err := validateImage(imageBytes); err != nil {
		return RegisterResult{}, err
	}

	cleaned, err := s.bgRemover.Remove(ctx, imageBytes)
	if err != nil {
		return RegisterResult{}, err
	}

	tuned, err := s.tune(ctx, cleaned)
	if err != nil {
		return RegisterResult{}, err
	}

	product, versionID, err := s.store.Register(ctx, name, tuned.Descriptors)
	if err != nil {
		return RegisterResult{}, err
	}

	s.log.WithFields(logger.Fields{
		logger.FieldProductID:  product.ID,
		logger.FieldVersionID:  versionID,
		logger.FieldCount:      tuned.Keypoints,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info("Registration pipeline completed")

	return RegisterResult{
		Product:   product,
		VersionID: versionID,
		Keypoints: tuned.Keypoints,
		Threshold: tuned.Threshold,
	}, nil
}

// Preview runs validation, background removal, and contrast tuning without
// committing anything, so an operator can judge reference image quality
// before registering.
func (s *RegisterService) Preview(ctx context.Context, imageBytes []byte) (PreviewResult, error) {
	if err := validateImage(imageBytes); err != nil {
		return PreviewResult{}, err
	}
	cleaned, err := s.bgRemover.Remove(ctx, imageBytes)
	if err != nil {
		return PreviewResult{}, err
	}
	tuned, err := s.tune(ctx, cleaned)
	if err != nil {
		return PreviewResult{}, err
	}
	return PreviewResult{Keypoints: tuned.Keypoints, Threshold: tuned.Threshold}, nil
}

func (s *RegisterService) tune(ctx context.Context, imageBytes []byte) (TuneResult, error) {
	tuned, err := TuneContrast(ctx, s.extractor.Extract, imageBytes, s.params)
	if err != nil {
		return TuneResult{}, err
	}
	if tuned.Keypoints == 0 {
		return TuneResult{}, fmt.Errorf("%w: no keypoints detected in reference image", domain.ErrValidation)
	}
	return tuned, nil
}

// validateImage rejects payloads that do not decode as a supported image
// format before any model service is called.
func validateImage(imageBytes []byte) error {
	if len(imageBytes) == 0 {
		return fmt.Errorf("%w: image payload is empty", domain.ErrValidation)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(imageBytes)); err != nil {
		return fmt.Errorf("%w: unreadable image: %v", domain.ErrValidation, err)
	} else if format == "" {
		return fmt.Errorf("%w: unrecognized image format", domain.ErrValidation)
	}
	return nil
}
