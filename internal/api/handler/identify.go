package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nmedina/skulens/internal/api/middleware"
	"github.com/nmedina/skulens/internal/service"
)

// IdentifyHandler handles single-image product identification.
type IdentifyHandler struct {
	identify *service.IdentifyService
}

// NewIdentifyHandler creates a new identification handler.
func NewIdentifyHandler(identify *service.IdentifyService) *IdentifyHandler {
	return &IdentifyHandler{identify: identify}
}

// Identify handles POST /api/v1/identify. Expects a multipart form with an
// "image" file and returns the best product match, or found=false when no
// registered product reaches the detection threshold.
func (h *IdentifyHandler) Identify(c *gin.Context) {
	imageBytes, err := readUpload(c, "image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.identify.Identify(c.Request.Context(), imageBytes)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Warn("Identification failed")
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
