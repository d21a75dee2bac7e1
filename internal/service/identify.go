package service

import (
	"context"
	"time"

	"github.com/nmedina/skulens/internal/logger"
	"github.com/nmedina/skulens/internal/matcher"
)

// IdentifyService matches a single still image against the current feature
// store state. It is the one-shot counterpart of the per-frame detection the
// video pipeline runs: same extractor, same threshold, same ratio-test
// matcher.
type IdentifyService struct {
	extractor Extractor
	matcher   *matcher.Matcher
	store     StoreViewer
	threshold float64
	log       *logger.Logger
}

// NewIdentifyService wires single-image identification. threshold is the
// fixed contrast threshold also used for video frames.
func NewIdentifyService(extractor Extractor, m *matcher.Matcher, store StoreViewer, threshold float64, log *logger.Logger) *IdentifyService {
	return &IdentifyService{
		extractor: extractor,
		matcher:   m,
		store:     store,
		threshold: threshold,
		log:       log.WithField(logger.FieldComponent, "identify"),
	}
}

// IdentifyResult reports the best product match for one image. Found is
// false when no product reaches the detection threshold; the remaining match
// fields are zero in that case.
type IdentifyResult struct {
	Found        bool    `json:"found"`
	ProductID    string  `json:"product_id,omitempty"`
	Name         string  `json:"name,omitempty"`
	Matches      int     `json:"matches"`
	Confidence   float64 `json:"confidence"`
	Keypoints    int     `json:"keypoints"`
	StoreVersion string  `json:"store_version"`
}

// Identify extracts descriptors from the image and scores them against every
// registered product.
//
// Parameters:
//   - ctx: request context
//   - imageBytes: raw image (JPEG, PNG, or WebP)
//
// Returns:
//   - IdentifyResult: best match above the threshold, or Found=false
//   - error: domain.ErrValidation for bad input, domain.ErrExternal for
//     extractor failures
func (s *IdentifyService) Identify(ctx context.Context, imageBytes []byte) (IdentifyResult, error) {
	start := time.Now()

	if err := validateImage(imageBytes); err != nil {
		return IdentifyResult{}, err
	}

	state := s.store.View()
	result := IdentifyResult{StoreVersion: state.Version()}
	if state.Len() == 0 {
		return result, nil
	}

	ds, keypoints, err := s.extractor.Extract(ctx, imageBytes, s.threshold)
	if err != nil {
		return IdentifyResult{}, err
	}
	result.Keypoints = keypoints
	if ds.Count() == 0 {
		return result, nil
	}

	match, ok, err := s.matcher.BestMatch(ctx, ds, state.Products())
	if err != nil {
		return IdentifyResult{}, err
	}
	if ok {
		result.Found = true
		result.ProductID = match.ProductID
		result.Matches = match.Matches
		result.Confidence = match.Confidence
		if p, found := state.Product(match.ProductID); found {
			result.Name = p.Name
		}
	}

	s.log.WithFields(logger.Fields{
		logger.FieldProductID:  result.ProductID,
		logger.FieldVersionID:  result.StoreVersion,
		"matches":              result.Matches,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info("Identification completed")
	return result, nil
}
