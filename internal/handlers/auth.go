// internal/handlers/auth.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gmatrix/gmatrix-backend/internal/services"
	"github.com/gmatrix/gmatrix-backend/internal/utils"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	authResponse, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"user":          authResponse.User,
		"token":         authResponse.AccessToken,
		"refresh_token": authResponse.RefreshToken,
		"token_type":    authResponse.TokenType,
		"expires_in":    authResponse.ExpiresIn,
	})
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	authResponse, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		utils.UnauthorizedResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"user":          authResponse.User,
		"token":         authResponse.AccessToken,
		"refresh_token": authResponse.RefreshToken,
		"token_type":    authResponse.TokenType,
		"expires_in":    authResponse.ExpiresIn,
	})
}

// POST /auth/guest
// Issues an anonymous identity so votes can be cast without registration.
func (h *AuthHandler) CreateGuest(c *gin.Context) {
	authResponse, err := h.authService.CreateGuest(c.Request.Context())
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.CreatedResponse(c, gin.H{
		"user":       authResponse.User,
		"token":      authResponse.AccessToken,
		"token_type": authResponse.TokenType,
		"expires_in": authResponse.ExpiresIn,
	})
}

// POST /auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	authResponse, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		utils.UnauthorizedResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"user":          authResponse.User,
		"token":         authResponse.AccessToken,
		"refresh_token": authResponse.RefreshToken,
		"token_type":    authResponse.TokenType,
		"expires_in":    authResponse.ExpiresIn,
	})
}

// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		utils.NotFoundResponse(c, "user")
		return
	}

	utils.SuccessResponse(c, user)
}
