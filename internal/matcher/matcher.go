// Package matcher scores video frames against registered product
// descriptors. Matching is exhaustive and deterministic: every frame
// descriptor set is compared against every product's full reference set,
// so identical inputs always produce identical detections.
package matcher

import (
	"context"
	"math"

	"github.com/nmedina/skulens/internal/domain"
)

// Config holds the matching thresholds.
type Config struct {
	// Ratio is the Lowe ratio for the two-nearest-neighbor test.
	Ratio float64
	// MinMatches is the accepted-correspondence count a product must reach
	// before a frame counts as a detection.
	MinMatches int
	// EarlyExitMatches stops scanning remaining products once a candidate
	// reaches this count. Zero disables the early exit.
	EarlyExitMatches int
}

// Match is one product scored against a frame.
type Match struct {
	ProductID  string
	Matches    int
	Confidence float64
}

// Matcher runs the two-nearest-neighbor ratio test over descriptor sets.
type Matcher struct {
	ratioSq          float32
	minMatches       int
	earlyExitMatches int
}

// New creates a Matcher. Distances are compared squared, so the ratio is
// squared once here instead of taking a square root per comparison.
func New(cfg Config) *Matcher {
	return &Matcher{
		ratioSq:          float32(cfg.Ratio * cfg.Ratio),
		minMatches:       cfg.MinMatches,
		earlyExitMatches: cfg.EarlyExitMatches,
	}
}

// MinMatches returns the detection threshold.
func (m *Matcher) MinMatches() int {
	return m.minMatches
}

// Count returns the number of reference descriptors that pass the ratio
// test against the frame. A reference descriptor is accepted when its
// nearest frame neighbor is decisively closer than the second nearest.
// Fewer than two frame descriptors can never pass the test.
func (m *Matcher) Count(ref, frame domain.DescriptorSet) int {
	if ref.Dim != frame.Dim || frame.Count() < 2 {
		return 0
	}
	accepted := 0
	for i := 0; i < ref.Count(); i++ {
		best, second := nearestTwo(ref.Row(i), frame)
		if best < m.ratioSq*second {
			accepted++
		}
	}
	return accepted
}

// BestMatch scores every product against the frame and returns the best
// candidate that reaches the detection threshold. Products are scanned in
// the order given; when EarlyExitMatches is set, a candidate reaching that
// count short-circuits the scan.
//
// The boolean is false when no product reaches MinMatches.
func (m *Matcher) BestMatch(ctx context.Context, frame domain.DescriptorSet, products []domain.Product) (Match, bool, error) {
	var best Match
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return Match{}, false, err
		}
		count := m.Count(p.Descriptors, frame)
		if count > best.Matches {
			best = Match{
				ProductID:  p.ID,
				Matches:    count,
				Confidence: confidence(count, p.Descriptors.Count()),
			}
		}
		if m.earlyExitMatches > 0 && best.Matches >= m.earlyExitMatches {
			break
		}
	}
	if best.Matches < m.minMatches {
		return Match{}, false, nil
	}
	return best, true, nil
}

// nearestTwo returns the two smallest squared distances from q to the rows
// of set.
func nearestTwo(q []float32, set domain.DescriptorSet) (best, second float32) {
	best, second = float32(math.Inf(1)), float32(math.Inf(1))
	for j := 0; j < set.Count(); j++ {
		d := sqDist(q, set.Row(j))
		switch {
		case d < best:
			second = best
			best = d
		case d < second:
			second = d
		}
	}
	return best, second
}

func sqDist(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// confidence normalizes an accepted-correspondence count against the size
// of the product's reference set.
func confidence(matches, refCount int) float64 {
	if refCount == 0 {
		return 0
	}
	c := float64(matches) / float64(refCount)
	if c > 1 {
		c = 1
	}
	return c
}
