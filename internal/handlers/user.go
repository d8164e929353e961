// internal/handlers/user.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/gmatrix/gmatrix-backend/internal/middleware"
	"github.com/gmatrix/gmatrix-backend/internal/services"
	"github.com/gmatrix/gmatrix-backend/internal/utils"
)

type UserHandler struct {
	gamificationService *services.GamificationService
	voteService         *services.VoteService
}

func NewUserHandler(gamificationService *services.GamificationService, voteService *services.VoteService) *UserHandler {
	return &UserHandler{
		gamificationService: gamificationService,
		voteService:         voteService,
	}
}

// GET /users/me/profile
// Returns the gamification ledger: points, badges, streaks. Guests have no
// profile and get 404.
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := middleware.EffectiveUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	profile, err := h.gamificationService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			utils.NotFoundResponse(c, "profile")
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, profile)
}

// GET /users/me/votes/:productId
func (h *UserHandler) GetVoteForProduct(c *gin.Context) {
	userID, ok := middleware.EffectiveUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	vote, err := h.voteService.GetUserVote(c.Request.Context(), c.Param("productId"), userID)
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
