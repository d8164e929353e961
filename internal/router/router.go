// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gmatrix/gmatrix-backend/internal/config"
	"github.com/gmatrix/gmatrix-backend/internal/events"
	"github.com/gmatrix/gmatrix-backend/internal/handlers"
	"github.com/gmatrix/gmatrix-backend/internal/metrics"
	"github.com/gmatrix/gmatrix-backend/internal/middleware"
	"github.com/gmatrix/gmatrix-backend/internal/services"
	"github.com/gmatrix/gmatrix-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config, bus *events.Bus) *gin.Engine {
	// Initialize services
	notificationService := services.NewNotificationService(db, cfg)
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize storage")
	}
	visionService, err := services.NewVisionService(cfg.AI)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize image analysis gateway")
	}

	authService := services.NewAuthService(db, cfg)
	productService := services.NewProductService(db)
	gamificationService := services.NewGamificationService(db, cfg.Gamification)
	voteService := services.NewVoteService(db, gamificationService, bus)
	adminService := services.NewAdminService(db, notificationService, storageService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(productService, storageService, notificationService)
	voteHandler := handlers.NewVoteHandler(voteService, productService)
	analyzeHandler := handlers.NewAnalyzeHandler(visionService, productService, storageService)
	userHandler := handlers.NewUserHandler(gamificationService, voteService)
	adminHandler := handlers.NewAdminHandler(adminService, voteService, notificationService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(metrics.Middleware())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	r.GET("/metrics", metrics.Handler())

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/guest", authHandler.CreateGuest)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.Me)
		}

		// Photo analysis: the entry point of the rating flow
		v1.POST("/analyze",
			middleware.OptionalAuth(),
			middleware.AnalyzeRateLimit(),
			analyzeHandler.AnalyzePhoto,
		)

		// Product routes
		products := v1.Group("/products")
		{
			products.GET("", middleware.OptionalAuth(), productHandler.SearchProducts)
			products.GET("/resolve", productHandler.ResolveProduct)
			products.GET("/near", productHandler.NearbyProducts)
			products.GET("/:id", middleware.OptionalAuth(), productHandler.GetProduct)
			products.GET("/:id/image-url", productHandler.GetImageURL)

			// Authenticated routes: guests qualify, they hold tokens too
			protected := products.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", productHandler.CreateProduct)
				protected.POST("/:id/votes", middleware.VoteRateLimit(), voteHandler.SubmitVote)
				protected.GET("/:id/votes/me", voteHandler.GetMyVote)
				protected.POST("/:id/stores", productHandler.ReportStore)
				protected.POST("/:id/report", productHandler.ReportProduct)
				protected.POST("/:id/images", middleware.AnalyzeRateLimit(), productHandler.UploadImages)
			}
		}

		// User routes
		users := v1.Group("/users")
		users.Use(middleware.AuthRequired())
		{
			users.GET("/me/profile", userHandler.GetProfile)
			users.GET("/me/votes/:productId", userHandler.GetVoteForProduct)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(adminService, notificationService))
		{
			admin.GET("/dashboard/stats", adminHandler.GetDashboardStats)
			admin.DELETE("/products/:id", adminHandler.DeleteProduct)
			admin.DELETE("/products/:id/votes/:userId", adminHandler.DeleteVote)
			admin.POST("/products/:id/recalculate", adminHandler.RecalculateProduct)
			admin.POST("/roles/:userId", adminHandler.GrantAdmin)
			admin.DELETE("/roles/:userId", adminHandler.RevokeAdmin)
			admin.GET("/audit-logs", adminHandler.GetAuditLogs)
			admin.GET("/notifications", adminHandler.GetNotifications)
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", "./uploads")
	}

	return r
}
