package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nmedina/skulens/internal/api/middleware"
	"github.com/nmedina/skulens/internal/domain"
	"github.com/nmedina/skulens/internal/repository"
	"github.com/nmedina/skulens/internal/service"
)

// maxImageBytes caps uploaded reference images.
const maxImageBytes = 20 << 20

// ProductHandler handles product registration and catalog endpoints.
type ProductHandler struct {
	register *service.RegisterService
	products *repository.ProductRepository
}

// NewProductHandler creates a new product handler.
// Parameters:
//   - register: registration pipeline service.
//   - products: catalog mirror repository.
//
// Returns:
//   - *ProductHandler: initialized handler.
func NewProductHandler(register *service.RegisterService, products *repository.ProductRepository) *ProductHandler {
	return &ProductHandler{
		register: register,
		products: products,
	}
}

// Register handles POST /api/v1/products. Expects a multipart form with a
// "name" field and an "image" file.
func (h *ProductHandler) Register(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Form field 'name' is required"})
		return
	}

	imageBytes, err := readUpload(c, "image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.register.Register(c.Request.Context(), name, imageBytes)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Warn("Product registration failed")
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":               result.Product.ID,
		"name":             result.Product.Name,
		"descriptor_count": result.Product.Descriptors.Count(),
		"keypoints":        result.Keypoints,
		"threshold":        result.Threshold,
		"version_id":       result.VersionID,
	})
}

// Preview handles POST /api/v1/products/preview. Runs the extraction
// pipeline without committing, so operators can judge reference image
// quality first.
func (h *ProductHandler) Preview(c *gin.Context) {
	imageBytes, err := readUpload(c, "image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.register.Preview(c.Request.Context(), imageBytes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// List handles GET /api/v1/products.
func (h *ProductHandler) List(c *gin.Context) {
	records, err := h.products.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": records,
		"count":    len(records),
	})
}

// Get handles GET /api/v1/products/:id.
func (h *ProductHandler) Get(c *gin.Context) {
	record, err := h.products.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// readUpload reads one uploaded file from the multipart form, enforcing the
// size cap.
func readUpload(c *gin.Context, field string) ([]byte, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%w: file field '%s' is required", domain.ErrValidation, field)
	}
	if fileHeader.Size > maxImageBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrValidation, maxImageBytes)
	}
	return readMultipartFile(fileHeader)
}

func readMultipartFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxImageBytes))
}
