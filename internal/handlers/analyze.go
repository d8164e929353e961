// internal/handlers/analyze.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/gmatrix/gmatrix-backend/internal/metrics"
	"github.com/gmatrix/gmatrix-backend/internal/services"
	"github.com/gmatrix/gmatrix-backend/internal/utils"
)

// AnalyzeHandler is the entry point of the photo flow: upload a shot of the
// packaging, get back the extracted name plus whether that name already has
// a product. Nothing is created here; creation stays an explicit step.
type AnalyzeHandler struct {
	visionService  *services.VisionService
	productService *services.ProductService
	storageService *services.StorageService
}

type AnalyzeResult struct {
	Name      string `json:"name"`
	Guessed   bool   `json:"guessed"`
	Exists    bool   `json:"exists"`
	ProductID string `json:"product_id,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

func NewAnalyzeHandler(visionService *services.VisionService, productService *services.ProductService, storageService *services.StorageService) *AnalyzeHandler {
	return &AnalyzeHandler{
		visionService:  visionService,
		productService: productService,
		storageService: storageService,
	}
}

// POST /analyze
// Multipart "photo" field. Analysis failures are not errors: the response
// falls back to a placeholder name and the client prompts for manual entry.
func (h *AnalyzeHandler) AnalyzePhoto(c *gin.Context) {
	file, err := c.FormFile("photo")
	if err != nil {
		utils.BadRequestResponse(c, "photo file is required", nil)
		return
	}

	photo, mimeType, err := readUpload(file)
	if err != nil {
		utils.BadRequestResponse(c, "Could not read uploaded file", nil)
		return
	}

	name, err := h.visionService.IdentifyProduct(c.Request.Context(), photo, mimeType)
	if err != nil {
		metrics.RecordVisionCall("rejected")
		switch {
		case errors.Is(err, services.ErrImageTooLarge):
			utils.BadRequestResponse(c, "Image exceeds the 5MB limit", nil)
		case errors.Is(err, services.ErrUnsupportedImageType):
			utils.BadRequestResponse(c, "Unsupported image type", nil)
		default:
			utils.InternalErrorResponse(c, "")
		}
		return
	}

	result := &AnalyzeResult{Name: name, Guessed: name != services.UnnamedProduct}
	if result.Guessed {
		metrics.RecordVisionCall("named")
	} else {
		metrics.RecordVisionCall("unnamed")
	}

	// Keep the photo regardless of the analysis outcome so it can seed the
	// product image once the user confirms a name.
	if upload, err := h.storageService.UploadProductImage(photo, mimeType, "front"); err == nil {
		result.ImageURL = upload.URL
	}

	if result.Guessed {
		if exists, err := h.productService.Exists(c.Request.Context(), name); err == nil {
			result.Exists = exists.Exists
			result.ProductID = exists.ProductID
		}
	}

	utils.SuccessResponse(c, result)
}
