// internal/handlers/admin.go
package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gmatrix/gmatrix-backend/internal/services"
	"github.com/gmatrix/gmatrix-backend/internal/utils"
)

type AdminHandler struct {
	adminService        *services.AdminService
	voteService         *services.VoteService
	notificationService *services.NotificationService
}

func NewAdminHandler(adminService *services.AdminService, voteService *services.VoteService, notificationService *services.NotificationService) *AdminHandler {
	return &AdminHandler{
		adminService:        adminService,
		voteService:         voteService,
		notificationService: notificationService,
	}
}

// GET /admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats(c.Request.Context())
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{"stats": stats})
}

// DELETE /admin/products/:id
func (h *AdminHandler) DeleteProduct(c *gin.Context) {
	if err := h.adminService.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			utils.NotFoundResponse(c, "product")
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{"deleted": true})
}

// DELETE /admin/products/:id/votes/:userId
// Removes one user's vote and backs its contribution out of the averages.
func (h *AdminHandler) DeleteVote(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	product, err := h.voteService.DeleteVote(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProductNotFound):
			utils.NotFoundResponse(c, "product")
		case errors.Is(err, services.ErrVoteNotFound):
			utils.NotFoundResponse(c, "vote")
		default:
			utils.InternalErrorResponse(c, "")
		}
		return
	}

	utils.SuccessResponse(c, product)
}

// POST /admin/products/:id/recalculate?decay_half_life_days=..
// Rebuilds the averages from raw votes, optionally with time decay.
func (h *AdminHandler) RecalculateProduct(c *gin.Context) {
	halfLife := 0.0
	if raw := c.Query("decay_half_life_days"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			utils.BadRequestResponse(c, "decay_half_life_days must be a non-negative number", nil)
			return
		}
		halfLife = parsed
	}

	product, err := h.voteService.Recalculate(c.Request.Context(), c.Param("id"), halfLife)
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

// POST /admin/roles/:userId
func (h *AdminHandler) GrantAdmin(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	grantedBy, _ := utils.GetUserIDFromContext(c)
	if err := h.adminService.GrantAdmin(c.Request.Context(), targetID, grantedBy); err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			utils.NotFoundResponse(c, "user")
		case errors.Is(err, services.ErrPermissionDenied):
			utils.BadRequestResponse(c, "Guests cannot hold the admin role", nil)
		default:
			utils.InternalErrorResponse(c, "")
		}
		return
	}

	utils.SuccessResponse(c, gin.H{"granted": true})
}

// DELETE /admin/roles/:userId
func (h *AdminHandler) RevokeAdmin(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	if err := h.adminService.RevokeAdmin(c.Request.Context(), targetID); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			utils.NotFoundResponse(c, "user")
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{"revoked": true})
}

// GET /admin/audit-logs
func (h *AdminHandler) GetAuditLogs(c *gin.Context) {
	filter := services.AuditLogFilter{
		PaginationParams: utils.GetPaginationParams(c),
		ResourceType:     c.Query("resource_type"),
	}
	if raw := c.Query("user_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			filter.UserID = &id
		}
	}

	logs, total, err := h.adminService.GetAuditLogs(c.Request.Context(), filter)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(logs, total, filter.PaginationParams))
}

// GET /admin/notifications
func (h *AdminHandler) GetNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	notifications, err := h.notificationService.ListUnread(limit)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, notifications)
}
