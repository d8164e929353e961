// internal/handlers/vote.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/gmatrix/gmatrix-backend/internal/metrics"
	"github.com/gmatrix/gmatrix-backend/internal/middleware"
	"github.com/gmatrix/gmatrix-backend/internal/models"
	"github.com/gmatrix/gmatrix-backend/internal/services"
	"github.com/gmatrix/gmatrix-backend/internal/utils"
)

type VoteHandler struct {
	voteService    *services.VoteService
	productService *services.ProductService
}

// SubmitVoteRequest is one rating, optionally bundled with a store sighting
// so a single submission can earn the store and GPS bonuses.
type SubmitVoteRequest struct {
	Safety float64               `json:"safety"`
	Taste  float64               `json:"taste"`
	Price  *int                  `json:"price,omitempty"`
	Store  *services.StoreReport `json:"store,omitempty"`
}

func NewVoteHandler(voteService *services.VoteService, productService *services.ProductService) *VoteHandler {
	return &VoteHandler{
		voteService:    voteService,
		productService: productService,
	}
}

// POST /products/:id/votes
func (h *VoteHandler) SubmitVote(c *gin.Context) {
	userID, ok := middleware.EffectiveUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req SubmitVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	productID := c.Param("id")
	rating := services.Rating{Safety: req.Safety, Taste: req.Taste, Price: req.Price}

	// Reject a bad rating before the bundled store report is persisted, so
	// an invalid submission leaves no trace.
	if err := rating.Validate(); err != nil {
		utils.BadRequestResponse(c, "Ratings must be 0-100 and price 1-5", nil)
		return
	}

	opts := services.SubmitVoteOptions{}

	if req.Store != nil {
		entry, err := h.productService.ReportStore(c.Request.Context(), productID, req.Store)
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
		opts.StoreKey = entry.StoreKey
		opts.HasGps = req.Store.Lat != nil && req.Store.Lng != nil
	}

	userType, _ := utils.GetUserTypeFromContext(c)
	isRegistered := userType == string(models.UserTypeRegistered)

	result, err := h.voteService.SubmitVote(c.Request.Context(), productID, userID, rating, isRegistered, opts)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProductNotFound):
			utils.NotFoundResponse(c, "product")
		case errors.Is(err, services.ErrInvalidRating):
			utils.BadRequestResponse(c, "Ratings must be 0-100 and price 1-5", nil)
		default:
			utils.InternalErrorResponse(c, "")
		}
		return
	}

	metrics.RecordVoteSubmitted()
	utils.SuccessResponse(c, result)
}

// GET /products/:id/votes/me
func (h *VoteHandler) GetMyVote(c *gin.Context) {
	userID, ok := middleware.EffectiveUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	vote, err := h.voteService.GetUserVote(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, services.ErrVoteNotFound) {
			utils.NotFoundResponse(c, "vote")
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, vote)
}
