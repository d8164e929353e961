// internal/services/admin_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gmatrix/gmatrix-backend/internal/models"
	"github.com/gmatrix/gmatrix-backend/internal/utils"
)

// AdminService covers moderation: role management, product/vote removal,
// and the audit trail. Admin status is solely the presence of a row in
// roles_admin.
type AdminService struct {
	db                  *gorm.DB
	notificationService *NotificationService
	storageService      *StorageService
}

type AdminDashboardStats struct {
	TotalProducts   int64 `json:"total_products"`
	TotalVotes      int64 `json:"total_votes"`
	TotalUsers      int64 `json:"total_users"`
	RegisteredUsers int64 `json:"registered_users"`
	VotesThisWeek   int64 `json:"votes_this_week"`
	ProductsNoVotes int64 `json:"products_no_votes"`
}

type AuditLogFilter struct {
	utils.PaginationParams
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	ResourceType string     `json:"resource_type,omitempty"`
}

func NewAdminService(db *gorm.DB, notificationService *NotificationService, storageService *StorageService) *AdminService {
	return &AdminService{
		db:                  db,
		notificationService: notificationService,
		storageService:      storageService,
	}
}

// IsAdmin reports whether the user has a roles_admin row.
func (s *AdminService) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.AdminRole{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *AdminService) GrantAdmin(ctx context.Context, userID, grantedBy uuid.UUID) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if user.IsGuest() {
		return ErrPermissionDenied
	}

	role := &models.AdminRole{UserID: userID, GrantedBy: &grantedBy}
	if err := s.db.WithContext(ctx).FirstOrCreate(role, "user_id = ?", userID).Error; err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"granted_by": grantedBy,
	}).Info("Admin role granted")
	return nil
}

func (s *AdminService) RevokeAdmin(ctx context.Context, userID uuid.UUID) error {
	result := s.db.WithContext(ctx).Delete(&models.AdminRole{}, "user_id = ?", userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteProduct removes a product and cascades to its votes and store
// entries. Hard delete: the normalized id becomes available again. Stored
// photos are cleaned up after the transaction commits, best-effort.
func (s *AdminService) DeleteProduct(ctx context.Context, productID string) error {
	var product models.Product

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}

		if err := tx.Where("product_id = ?", productID).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", productID).Delete(&models.StoreEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&product).Error; err != nil {
			return err
		}

		logrus.WithField("product_id", productID).Info("Product deleted with its votes")
		return nil
	})
	if err != nil {
		return err
	}

	s.cleanupImages(&product)
	return nil
}

// cleanupImages removes the product's photos from storage. Failures are
// logged only; the database delete has already committed.
func (s *AdminService) cleanupImages(product *models.Product) {
	if s.storageService == nil {
		return
	}
	for _, url := range []string{product.ImageURL, product.BackImageURL} {
		key := ImageKeyFromURL(url)
		if key == "" {
			continue
		}
		if err := s.storageService.DeleteImage(key); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("Failed to delete product image")
		}
	}
}

func (s *AdminService) GetDashboardStats(ctx context.Context) (*AdminDashboardStats, error) {
	stats := &AdminDashboardStats{}
	weekStart := time.Now().UTC().AddDate(0, 0, -7)

	db := s.db.WithContext(ctx)
	db.Model(&models.Product{}).Count(&stats.TotalProducts)
	db.Model(&models.Vote{}).Count(&stats.TotalVotes)
	db.Model(&models.User{}).Count(&stats.TotalUsers)
	db.Model(&models.User{}).Where("user_type = ?", models.UserTypeRegistered).Count(&stats.RegisteredUsers)
	db.Model(&models.Vote{}).Where("voted_at >= ?", weekStart).Count(&stats.VotesThisWeek)
	db.Model(&models.Product{}).Where("vote_count = 0").Count(&stats.ProductsNoVotes)

	return stats, nil
}

func (s *AdminService) GetAuditLogs(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AuditLog
	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "action"})
	query = utils.ApplyPagination(query, filter.PaginationParams)
	if err := query.Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
