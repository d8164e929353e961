// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	AWS          AWSConfig
	AI           AIConfig
	NATS         NATSConfig
	Gamification GamificationConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	ReadTimeout    int
	WriteTimeout   int
	IdleTimeout    int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey       string
	AccessTokenTTL  int // in hours
	RefreshTokenTTL int // in hours
	GuestTokenTTL   int // in hours
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	CloudFrontURL   string
}

// AIConfig points the image analysis gateway at an OpenAI-compatible
// vision endpoint.
type AIConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

type NATSConfig struct {
	URL      string
	Embedded bool
}

// GamificationConfig holds point values and badge thresholds. These are
// policy knobs, not structure; the ledger consumes them as data.
type GamificationConfig struct {
	BasePoints        int
	NewProductBonus   int
	GpsBonus          int
	StoreTagBonus     int
	ScoutBadgeVotes   int
	ExplorerBadgeNew  int
	MapperBadgeStores int
	StreakBadgeDays   int
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Host:           getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:    getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:   getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:    getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "gmatrix"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL:  getEnvAsInt("JWT_ACCESS_TTL", 24),   // 24 hours
			RefreshTokenTTL: getEnvAsInt("JWT_REFRESH_TTL", 168), // 7 days
			GuestTokenTTL:   getEnvAsInt("JWT_GUEST_TTL", 720),   // 30 days
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "gmatrix-product-images"),
			CloudFrontURL:   getEnv("AWS_CLOUDFRONT_URL", ""),
		},
		AI: AIConfig{
			BaseURL:        getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:         getEnv("AI_API_KEY", ""),
			Model:          getEnv("AI_MODEL", "gpt-4o-mini"),
			TimeoutSeconds: getEnvAsInt("AI_TIMEOUT_SECONDS", 20),
		},
		NATS: NATSConfig{
			URL:      getEnv("NATS_URL", "nats://localhost:4222"),
			Embedded: getEnvAsBool("NATS_EMBEDDED", true),
		},
		Gamification: GamificationConfig{
			BasePoints:        getEnvAsInt("POINTS_BASE", 10),
			NewProductBonus:   getEnvAsInt("POINTS_NEW_PRODUCT", 25),
			GpsBonus:          getEnvAsInt("POINTS_GPS", 15),
			StoreTagBonus:     getEnvAsInt("POINTS_STORE_TAG", 5),
			ScoutBadgeVotes:   getEnvAsInt("BADGE_SCOUT_VOTES", 10),
			ExplorerBadgeNew:  getEnvAsInt("BADGE_EXPLORER_NEW_PRODUCTS", 5),
			MapperBadgeStores: getEnvAsInt("BADGE_MAPPER_STORES", 5),
			StreakBadgeDays:   getEnvAsInt("BADGE_STREAK_DAYS", 7),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.AI.TimeoutSeconds < 1 {
		return fmt.Errorf("AI timeout must be at least 1 second")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
