package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nmedina/skulens/internal/api/middleware"
	"github.com/nmedina/skulens/internal/featurestore"
	"github.com/nmedina/skulens/internal/logger"
)

// VersionHandler handles snapshot version endpoints.
type VersionHandler struct {
	store *featurestore.Store
}

// NewVersionHandler creates a new version handler.
func NewVersionHandler(store *featurestore.Store) *VersionHandler {
	return &VersionHandler{store: store}
}

// List handles GET /api/v1/versions, most recent snapshot first.
func (h *VersionHandler) List(c *gin.Context) {
	snapshots, err := h.store.ListVersions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	current := h.store.View().Version()
	c.JSON(http.StatusOK, gin.H{
		"versions": snapshots,
		"current":  current,
		"count":    len(snapshots),
	})
}

// Restore handles POST /api/v1/versions/:id/restore. On success the live
// store serves the restored version and the head pointer moves with it.
func (h *VersionHandler) Restore(c *gin.Context) {
	versionID := c.Param("id")

	snap, err := h.store.Restore(c.Request.Context(), versionID)
	if err != nil {
		middleware.GetLogger(c).WithError(err).
			WithField(logger.FieldVersionID, versionID).
			Warn("Restore failed")
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"restored":      snap.VersionID,
		"product_count": snap.ProductCount,
		"created_at":    snap.CreatedAt,
	})
}
