// internal/middleware/logging.go
package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gmatrix/gmatrix-backend/internal/models"
)

type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// AuditLogMiddleware records every mutating request. Product ids are slugs,
// so the resource id is whatever path segment follows the collection name.
func AuditLogMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "GET" || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		var userUUID *uuid.UUID
		if userID, exists := c.Get("user_id"); exists {
			if id, ok := userID.(uuid.UUID); ok {
				userUUID = &id
			}
		}

		var requestData map[string]interface{}
		if len(requestBody) > 0 && strings.Contains(c.ContentType(), "json") {
			json.Unmarshal(requestBody, &requestData)
		}

		auditLog := &models.AuditLog{
			UserID:       userUUID,
			Action:       c.Request.Method + " " + c.FullPath(),
			ResourceType: extractResourceType(c.Request.URL.Path),
			ResourceID:   extractResourceID(c.Request.URL.Path),
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			NewValues:    models.JSONB(requestData),
		}

		go func() {
			if err := db.Create(auditLog).Error; err != nil {
				logrus.WithError(err).Error("Failed to create audit log")
			}
		}()

		logrus.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": duration.Milliseconds(),
			"ip":       c.ClientIP(),
			"user_id":  userUUID,
		}).Info("Request processed")
	}
}

func extractResourceType(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "v1" {
		return parts[1]
	}
	if len(parts) >= 1 {
		return parts[0]
	}
	return "unknown"
}

func extractResourceID(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	// /v1/<collection>/<id>/...
	if len(parts) >= 3 && parts[0] == "v1" {
		return parts[2]
	}
	return ""
}

func RequestLogger() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return ""
	})
}
