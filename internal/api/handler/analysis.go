package handler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/nmedina/skulens/internal/api/middleware"
	"github.com/nmedina/skulens/internal/domain"
	"github.com/nmedina/skulens/internal/service"
)

// maxVideoBytes caps uploaded videos.
const maxVideoBytes = 2 << 30

// AnalysisHandler handles video analysis endpoints.
type AnalysisHandler struct {
	analysis *service.AnalysisService
	workDir  string
}

// NewAnalysisHandler creates a new analysis handler. workDir is where
// uploaded videos are spooled; empty means the system temp dir.
func NewAnalysisHandler(analysis *service.AnalysisService, workDir string) *AnalysisHandler {
	return &AnalysisHandler{analysis: analysis, workDir: workDir}
}

// Analyze handles POST /api/v1/videos/analyze. Expects a multipart form
// with a "video" file; responds with the annotated transcript and the raw
// visual detections.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	fileHeader, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File field 'video' is required"})
		return
	}
	if fileHeader.Size > maxVideoBytes {
		writeError(c, fmt.Errorf("%w: video exceeds %d bytes", domain.ErrValidation, maxVideoBytes))
		return
	}

	spool, err := os.MkdirTemp(h.workDir, "skulens-upload-*")
	if err != nil {
		writeError(c, fmt.Errorf("spool upload: %w", err))
		return
	}
	defer os.RemoveAll(spool)

	videoPath := filepath.Join(spool, filepath.Base(fileHeader.Filename))
	if err := c.SaveUploadedFile(fileHeader, videoPath); err != nil {
		writeError(c, fmt.Errorf("spool upload: %w", err))
		return
	}

	result, err := h.analysis.Analyze(c.Request.Context(), videoPath)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Video analysis failed")
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
