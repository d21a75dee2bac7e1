package service

import (
	"context"
	"fmt"

	"github.com/nmedina/skulens/internal/domain"
)

// ExtractFunc extracts descriptors from an image at a contrast threshold.
// Satisfied by ExtractorService.Extract; tests pass a synthetic curve.
type ExtractFunc func(ctx context.Context, image []byte, contrastThreshold float64) (domain.DescriptorSet, int, error)

// TuneParams bounds the contrast-threshold search.
type TuneParams struct {
	TargetKeypoints int
	Tolerance       int
	MinThreshold    float64
	MaxThreshold    float64
	MaxIterations   int
}

// TuneResult is the outcome of a threshold search.
type TuneResult struct {
	Descriptors domain.DescriptorSet
	Keypoints   int
	Threshold   float64
}

// TuneContrast bisects the contrast threshold until the keypoint count
// lands inside the target band. Raising the threshold prunes low-contrast
// keypoints, so the count is monotonically non-increasing in the threshold
// and bisection converges. When the iteration budget runs out the
// closest-to-target extraction seen is returned rather than failing: a
// slightly off count still yields usable reference descriptors.
func TuneContrast(ctx context.Context, extract ExtractFunc, image []byte, params TuneParams) (TuneResult, error) {
	low, high := params.MinThreshold, params.MaxThreshold
	if low >= high {
		return TuneResult{}, fmt.Errorf("%w: threshold bounds [%g, %g] are invalid", domain.ErrValidation, low, high)
	}

	var (
		best     TuneResult
		bestDiff = -1
	)
	for i := 0; i < params.MaxIterations; i++ {
		mid := (low + high) / 2
		ds, count, err := extract(ctx, image, mid)
		if err != nil {
			return TuneResult{}, err
		}

		diff := count - params.TargetKeypoints
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best = TuneResult{Descriptors: ds, Keypoints: count, Threshold: mid}
			bestDiff = diff
		}
		if diff <= params.Tolerance {
			return best, nil
		}

		if count > params.TargetKeypoints {
			// Too many keypoints: raise the threshold to prune more.
			low = mid
		} else {
			high = mid
		}
	}
	return best, nil
}
