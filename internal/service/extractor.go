package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nmedina/skulens/internal/domain"
)

// ExtractorService calls the keypoint-extraction model service. The service
// receives an image and a contrast threshold and returns fixed-length
// descriptor vectors for the keypoints it found.
type ExtractorService struct {
	client *resty.Client
}

// ExtractorServiceConfig holds the HTTP client settings for the extractor.
type ExtractorServiceConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewExtractorService creates an extractor client.
func NewExtractorService(cfg *ExtractorServiceConfig) *ExtractorService {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &ExtractorService{client: client}
}

type extractRequest struct {
	Image             string  `json:"image"` // base64-encoded image bytes
	ContrastThreshold float64 `json:"contrast_threshold"`
}

type extractResponse struct {
	Keypoints   int         `json:"keypoints"`
	Descriptors [][]float32 `json:"descriptors"`
	Detail      string      `json:"detail,omitempty"`
}

// Extract runs keypoint extraction on an image at the given contrast
// threshold. Returns the descriptors and the keypoint count. An image with
// no detectable keypoints yields an empty set and count zero, not an error.
func (s *ExtractorService) Extract(ctx context.Context, image []byte, contrastThreshold float64) (domain.DescriptorSet, int, error) {
	req := extractRequest{
		Image:             base64.StdEncoding.EncodeToString(image),
		ContrastThreshold: contrastThreshold,
	}

	var resp extractResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post("/extract")
	if err != nil {
		return domain.DescriptorSet{}, 0, fmt.Errorf("%w: extractor: %v", domain.ErrExternal, err)
	}
	if httpResp.StatusCode() != 200 {
		if resp.Detail != "" {
			return domain.DescriptorSet{}, 0, fmt.Errorf("%w: extractor: %s", domain.ErrExternal, resp.Detail)
		}
		return domain.DescriptorSet{}, 0, fmt.Errorf("%w: extractor: status %d", domain.ErrExternal, httpResp.StatusCode())
	}

	if len(resp.Descriptors) == 0 {
		return domain.DescriptorSet{Dim: domain.DescriptorDim}, 0, nil
	}
	ds, err := domain.NewDescriptorSet(domain.DescriptorDim, resp.Descriptors)
	if err != nil {
		return domain.DescriptorSet{}, 0, fmt.Errorf("%w: extractor returned malformed descriptors: %v", domain.ErrExternal, err)
	}
	return ds, resp.Keypoints, nil
}
