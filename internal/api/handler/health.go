package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nmedina/skulens/internal/featurestore"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store *featurestore.Store
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store *featurestore.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// Health returns the health status of the service along with the store
// version currently serving analysis runs.
func (h *HealthHandler) Health(c *gin.Context) {
	state := h.store.View()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"store_version": state.Version(),
		"products":      state.Len(),
	})
}
