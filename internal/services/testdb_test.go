// internal/services/testdb_test.go
package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gmatrix/gmatrix-backend/internal/config"
	"github.com/gmatrix/gmatrix-backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One in-memory database per test; a second pooled connection would
	// see an empty schema.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.StoreEntry{},
		&models.Vote{},
		&models.UserProfile{},
		&models.AdminRole{},
		&models.AuditLog{},
		&models.AdminNotification{},
	))

	return db
}

func testGamificationConfig() config.GamificationConfig {
	return config.GamificationConfig{
		BasePoints:        10,
		NewProductBonus:   25,
		GpsBonus:          15,
		StoreTagBonus:     5,
		ScoutBadgeVotes:   10,
		ExplorerBadgeNew:  5,
		MapperBadgeStores: 5,
		StreakBadgeDays:   7,
	}
}

func createTestUser(t *testing.T, db *gorm.DB, userType models.UserType) *models.User {
	t.Helper()

	id := uuid.New()
	user := &models.User{
		BaseModel: models.BaseModel{ID: id},
		Username:  "user-" + id.String()[:8],
		Email:     "user-" + id.String()[:8] + "@example.com",
		UserType:  userType,
		Status:    models.UserStatusActive,
	}
	require.NoError(t, user.SetPassword("Sup3r-secret!"))
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestProduct(t *testing.T, db *gorm.DB, name string) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:   NormalizeProductID(name),
		Name: name,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}
