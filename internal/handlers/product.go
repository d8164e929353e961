// internal/handlers/product.go
package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gmatrix/gmatrix-backend/internal/services"
	"github.com/gmatrix/gmatrix-backend/internal/utils"
)

type ProductHandler struct {
	productService      *services.ProductService
	storageService      *services.StorageService
	notificationService *services.NotificationService
}

func NewProductHandler(productService *services.ProductService, storageService *services.StorageService, notificationService *services.NotificationService) *ProductHandler {
	return &ProductHandler{
		productService:      productService,
		storageService:      storageService,
		notificationService: notificationService,
	}
}

// GET /products
func (h *ProductHandler) SearchProducts(c *gin.Context) {
	params := services.ProductSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}
	if raw := c.Query("min_votes"); raw != "" {
		if minVotes, err := strconv.ParseInt(raw, 10, 64); err == nil && minVotes >= 0 {
			params.MinVotes = &minVotes
		}
	}

	products, total, err := h.productService.SearchProducts(c.Request.Context(), params)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(products, total, params.PaginationParams))
}

// GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.productService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			utils.NotFoundResponse(c, "product")
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, product)
}

// GET /products/resolve?name=...
// Answers whether a typed or extracted name already maps to a product.
// Read-only; calling it never creates anything.
func (h *ProductHandler) ResolveProduct(c *gin.Context) {
	result, err := h.productService.Exists(c.Request.Context(), c.Query("name"))
	if err != nil {
		if errors.Is(err, services.ErrEmptyProductName) {
			utils.BadRequestResponse(c, "Product name is required", nil)
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, result)
}

// POST /products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req services.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), &req)
	switch {
	case errors.Is(err, services.ErrEmptyProductName):
		utils.BadRequestResponse(c, "Product name is required", nil)
	case errors.Is(err, services.ErrProductExists):
		// Lost a creation race or the name was taken; hand back the
		// surviving row so the client can vote on it directly.
		c.JSON(http.StatusConflict, utils.APIResponse{
			Success: false,
			Data:    product,
			Error:   &utils.APIError{Code: "CONFLICT", Message: "Product already exists"},
		})
	case err != nil:
		if validationErrors := utils.GetValidationErrors(err); len(validationErrors) > 0 {
			utils.ValidationErrorResponse(c, validationErrors)
			return
		}
		utils.InternalErrorResponse(c, "")
	default:
		utils.CreatedResponse(c, product)
	}
}

// GET /products/near?lat=..&lng=..&radius_km=..
func (h *ProductHandler) NearbyProducts(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil {
		utils.BadRequestResponse(c, "lat and lng are required", nil)
		return
	}

	radiusKm := 5.0
	if raw := c.Query("radius_km"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 && parsed <= 100 {
			radiusKm = parsed
		}
	}

	results, err := h.productService.NearbyProducts(c.Request.Context(), lat, lng, radiusKm)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, results)
}

// POST /products/:id/stores
func (h *ProductHandler) ReportStore(c *gin.Context) {
	var report services.StoreReport
	if err := c.ShouldBindJSON(&report); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	entry, err := h.productService.ReportStore(c.Request.Context(), c.Param("id"), &report)
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			utils.NotFoundResponse(c, "product")
			return
		}
		if validationErrors := utils.GetValidationErrors(err); len(validationErrors) > 0 {
			utils.ValidationErrorResponse(c, validationErrors)
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.CreatedResponse(c, entry)
}

type ReportProductRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// POST /products/:id/report
// Flags a product for moderator review. The product stays live until an
// admin acts on the notification.
func (h *ProductHandler) ReportProduct(c *gin.Context) {
	userID, _ := utils.GetUserIDFromContext(c)

	var req ReportProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ValidationErrorResponse(c, utils.GetValidationErrors(err))
		return
	}

	product, err := h.productService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			utils.NotFoundResponse(c, "product")
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}

	if err := h.notificationService.NotifyProductReported(product.ID, req.Reason, &userID); err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{"product_id": product.ID, "status": "reported"})
}

// GET /products/:id/image-url?side=front|back
// Hands out a fetchable URL for a product photo; S3-backed deployments get
// a short-lived presigned link.
func (h *ProductHandler) GetImageURL(c *gin.Context) {
	product, err := h.productService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			utils.NotFoundResponse(c, "product")
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}

	stored := product.ImageURL
	if c.DefaultQuery("side", "front") == "back" {
		stored = product.BackImageURL
	}
	if stored == "" {
		utils.NotFoundResponse(c, "image")
		return
	}

	url, err := h.storageService.ResolveImageURL(stored, 15*time.Minute)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{"url": url})
}

// POST /products/:id/images
// Accepts multipart "front" and/or "back" photo files.
func (h *ProductHandler) UploadImages(c *gin.Context) {
	productID := c.Param("id")

	var frontURL, backURL string
	for _, side := range []string{"front", "back"} {
		file, err := c.FormFile(side)
		if err != nil {
			continue
		}

		photo, mimeType, err := readUpload(file)
		if err != nil {
			utils.BadRequestResponse(c, "Could not read uploaded file", nil)
			return
		}

		result, err := h.storageService.UploadProductImage(photo, mimeType, side)
		if err != nil {
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

		if side == "front" {
			frontURL = result.URL
		} else {
			backURL = result.URL
		}
	}

	if frontURL == "" && backURL == "" {
		utils.BadRequestResponse(c, "No photo provided", nil)
		return
	}

	product, err := h.productService.UpdateImages(c.Request.Context(), productID, frontURL, backURL)
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			utils.NotFoundResponse(c, "product")
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, product)
}

func readUpload(file *multipart.FileHeader) ([]byte, string, error) {
	f, err := file.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}

	return data, file.Header.Get("Content-Type"), nil
}
