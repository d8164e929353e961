// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gmatrix/gmatrix-backend/internal/config"
	"github.com/gmatrix/gmatrix-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.StoreEntry{},
		&models.Vote{},
		&models.UserProfile{},
		&models.AdminRole{},
		&models.AuditLog{},
		&models.AdminNotification{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)",
		"CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)",
		"CREATE INDEX IF NOT EXISTS idx_users_type_status ON users(user_type, status)",

		// Product indexes
		"CREATE INDEX IF NOT EXISTS idx_products_vote_count ON products(vote_count DESC)",
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",

		// Vote indexes
		"CREATE INDEX IF NOT EXISTS idx_votes_product ON votes(product_id)",
		"CREATE INDEX IF NOT EXISTS idx_votes_user ON votes(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_votes_voted_at ON votes(voted_at DESC)",

		// Store entry indexes
		"CREATE INDEX IF NOT EXISTS idx_store_entries_coords ON store_entries(lat, lng)",
		"CREATE INDEX IF NOT EXISTS idx_store_entries_last_seen ON store_entries(last_seen_at DESC)",

		// Admin indexes
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_admin_notifications_unread ON admin_notifications(is_read, created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// SeedInitialData creates the bootstrap admin account and its role row.
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	var adminCount int64
	db.Model(&models.AdminRole{}).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.User{
			Username: "admin",
			Email:    "admin@gmatrix.app",
			UserType: models.UserTypeRegistered,
			Status:   models.UserStatusActive,
		}

		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		if err := db.Create(&models.AdminRole{UserID: admin.ID}).Error; err != nil {
			return fmt.Errorf("failed to grant admin role: %w", err)
		}

		log.Println("Default admin user created successfully")
	}

	log.Println("Initial data seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
