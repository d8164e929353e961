// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gmatrix/gmatrix-backend/internal/config"
	"github.com/gmatrix/gmatrix-backend/internal/database"
	"github.com/gmatrix/gmatrix-backend/internal/events"
	"github.com/gmatrix/gmatrix-backend/internal/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	if err := database.SeedInitialData(db); err != nil {
		log.Fatal("Failed to seed initial data:", err)
	}

	// Connect the product-update bus. With NATS_EMBEDDED an in-process
	// server is started; either way a dead endpoint degrades to no-op
	// publishes rather than blocking startup.
	natsURL := cfg.NATS.URL
	if cfg.NATS.Embedded {
		ns, err := events.StartEmbeddedServer()
		if err != nil {
			log.Fatal("Failed to start embedded NATS server:", err)
		}
		defer ns.Shutdown()
		natsURL = ns.ClientURL()
	}

	bus, err := events.Connect(natsURL)
	if err != nil {
		log.Printf("Event bus unavailable, continuing without realtime updates: %v", err)
		bus = nil
	} else {
		defer bus.Close()
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := router.Initialize(db, cfg, bus)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
