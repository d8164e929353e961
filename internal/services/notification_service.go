// internal/services/notification_service.go
package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gmatrix/gmatrix-backend/internal/config"
	"github.com/gmatrix/gmatrix-backend/internal/models"
)

// NotificationService is the single funnel for events that need moderator
// attention. Permission denials from every call site pass through here so
// user-facing treatment and logging stay consistent.
type NotificationService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewNotificationService(db *gorm.DB, cfg *config.Config) *NotificationService {
	return &NotificationService{db: db, cfg: cfg}
}

// NotifyPermissionDenied records a denied operation. In development the
// attempted operation and path are logged verbatim for debugging; the
// user-facing response stays generic either way.
func (s *NotificationService) NotifyPermissionDenied(userID *uuid.UUID, operation, path string) {
	entry := logrus.WithFields(logrus.Fields{
		"operation": operation,
		"path":      path,
		"user_id":   userID,
	})
	if s.cfg.Environment == "development" {
		entry.Warn("Permission denied")
	} else {
		entry.Info("Permission denied")
	}

	notification := &models.AdminNotification{
		Type:                "permission_denied",
		Title:               "Permission denied",
		Message:             fmt.Sprintf("Operation %s on %s was rejected", operation, path),
		Priority:            "low",
		RelatedResourceType: "request",
		RelatedResourceID:   path,
	}

	// Best-effort; the denial response does not wait on this write.
	go func() {
		if err := s.db.Create(notification).Error; err != nil {
			logrus.WithError(err).Error("Failed to record permission denial")
		}
	}()
}

// NotifyProductReported flags a product for moderator review.
func (s *NotificationService) NotifyProductReported(productID, reason string, reporterID *uuid.UUID) error {
	notification := &models.AdminNotification{
		Type:                "product_reported",
		Title:               "Product reported",
		Message:             fmt.Sprintf("Product %s was reported: %s", productID, reason),
		Priority:            "medium",
		RelatedResourceType: "product",
		RelatedResourceID:   productID,
	}

	if err := s.db.Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"product_id":  productID,
		"reporter_id": reporterID,
	}).Info("Product reported for review")
	return nil
}

// ListUnread returns pending admin notifications, newest first.
func (s *NotificationService) ListUnread(limit int) ([]models.AdminNotification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var notifications []models.AdminNotification
	err := s.db.Where("is_read = ?", false).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}
