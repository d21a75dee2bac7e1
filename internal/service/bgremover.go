package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nmedina/skulens/internal/domain"
)

// BgRemoverService calls the background-removal model service. Product
// reference images are cleaned before extraction so keypoints come from the
// product itself, not the backdrop it was photographed against.
type BgRemoverService struct {
	client  *resty.Client
	enabled bool
}

// BgRemoverServiceConfig holds the HTTP client settings for the remover.
type BgRemoverServiceConfig struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

// NewBgRemoverService creates a background-remover client.
func NewBgRemoverService(cfg *BgRemoverServiceConfig) *BgRemoverService {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &BgRemoverService{client: client, enabled: cfg.Enabled}
}

// Enabled reports whether background removal is configured on.
func (s *BgRemoverService) Enabled() bool {
	return s.enabled
}

type bgRemoveRequest struct {
	Image string `json:"image"`
}

type bgRemoveResponse struct {
	Image  string `json:"image"`
	Detail string `json:"detail,omitempty"`
}

// Remove strips the background from an image, returning the processed
// image bytes. When the service is disabled the input passes through
// unchanged.
func (s *BgRemoverService) Remove(ctx context.Context, image []byte) ([]byte, error) {
	if !s.enabled {
		return image, nil
	}

	var resp bgRemoveResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(bgRemoveRequest{Image: base64.StdEncoding.EncodeToString(image)}).
		SetResult(&resp).
		Post("/remove")
	if err != nil {
		return nil, fmt.Errorf("%w: bgremover: %v", domain.ErrExternal, err)
	}
	if httpResp.StatusCode() != 200 {
		if resp.Detail != "" {
			return nil, fmt.Errorf("%w: bgremover: %s", domain.ErrExternal, resp.Detail)
		}
		return nil, fmt.Errorf("%w: bgremover: status %d", domain.ErrExternal, httpResp.StatusCode())
	}

	out, err := base64.StdEncoding.DecodeString(resp.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: bgremover returned invalid image encoding: %v", domain.ErrExternal, err)
	}
	return out, nil
}
