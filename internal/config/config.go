package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Payment gateway configuration
	Payment PaymentConfig

	// Booking lifecycle policy
	Booking BookingConfig

	// Redis configuration (optional)
	Redis RedisConfig

	// SMS configuration
	SMS SMSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	AutoMigrate        bool // apply schema.sql on startup
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret             string
	RefreshSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// PaymentConfig holds payment gateway configuration
type PaymentConfig struct {
	BaseURL         string
	KeyID           string // public key id, safe to send to clients
	KeySecret       string // SECRET - signs checkout callbacks, never expose to client
	WebhookSecret   string // SECRET - signs webhook bodies
	Currency        string
	RequestTimeout  time.Duration
	MaxRetries      int
	MaxRetryElapsed time.Duration
	VerifyWithFetch bool // cross-check amount with the gateway before recording a payment
}

// BookingConfig holds booking lifecycle policy parameters
type BookingConfig struct {
	ConfirmationWindow time.Duration // Pending -> Expired
	PaymentWindow      time.Duration // Confirmed -> Expired, measured from confirmed_at
	NoShowGrace        time.Duration // Paid -> Expired after check-in date
	SweepBatchSize     int
	SweepSchedule      string
	RefundSchedule     string
	RefundBatchSize    int
	ReconcileSchedule  string
	NotifyTimeout      time.Duration
}

// RedisConfig holds Redis configuration. An empty URL disables Redis.
type RedisConfig struct {
	URL              string
	WebhookDedupeTTL time.Duration
}

// SMSConfig holds SMS gateway configuration
type SMSConfig struct {
	Mode     string // "dev" logs messages, "production" sends them
	APIURL   string
	APIKey   string
	SenderID string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			AutoMigrate:        getEnvAsBool("DATABASE_AUTO_MIGRATE", false),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", ""),
			RefreshSecret:      getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenExpiry:  time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
			RefreshTokenExpiry: time.Duration(getEnvAsInt("JWT_REFRESH_TOKEN_EXPIRY", 604800)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Payment: PaymentConfig{
			BaseURL:         getEnv("PAYMENT_API_URL", "https://api.razorpay.com/v1"),
			KeyID:           getEnv("PAYMENT_KEY_ID", ""),
			KeySecret:       getEnv("PAYMENT_KEY_SECRET", ""),
			WebhookSecret:   getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			Currency:        getEnv("PAYMENT_CURRENCY", "INR"),
			RequestTimeout:  getEnvAsDuration("PAYMENT_REQUEST_TIMEOUT", 15*time.Second),
			MaxRetries:      getEnvAsInt("PAYMENT_MAX_RETRIES", 3),
			MaxRetryElapsed: getEnvAsDuration("PAYMENT_MAX_RETRY_ELAPSED", 30*time.Second),
			VerifyWithFetch: getEnvAsBool("PAYMENT_VERIFY_WITH_FETCH", true),
		},
		Booking: BookingConfig{
			ConfirmationWindow: getEnvAsDuration("BOOKING_CONFIRMATION_WINDOW", 48*time.Hour),
			PaymentWindow:      getEnvAsDuration("BOOKING_PAYMENT_WINDOW", 24*time.Hour),
			NoShowGrace:        getEnvAsDuration("BOOKING_NO_SHOW_GRACE", 72*time.Hour),
			SweepBatchSize:     getEnvAsInt("BOOKING_SWEEP_BATCH_SIZE", 100),
			SweepSchedule:      getEnv("BOOKING_SWEEP_SCHEDULE", "0 * * * * *"),
			RefundSchedule:     getEnv("REFUND_PROCESSOR_SCHEDULE", "0 */5 * * * *"),
			RefundBatchSize:    getEnvAsInt("REFUND_PROCESSOR_BATCH_SIZE", 50),
			ReconcileSchedule:  getEnv("INVENTORY_RECONCILE_SCHEDULE", "0 30 * * * *"),
			NotifyTimeout:      getEnvAsDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:              getEnv("REDIS_URL", ""),
			WebhookDedupeTTL: getEnvAsDuration("WEBHOOK_DEDUPE_TTL", 72*time.Hour),
		},
		SMS: SMSConfig{
			Mode:     getEnv("SMS_MODE", "dev"),
			APIURL:   getEnv("SMS_API_URL", ""),
			APIKey:   getEnv("SMS_API_KEY", ""),
			SenderID: getEnv("SMS_SENDER_ID", "StayNest"),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.JWT.RefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if c.Payment.KeySecret == "" {
		return fmt.Errorf("PAYMENT_KEY_SECRET is required")
	}

	if c.Payment.MaxRetries < 0 {
		return fmt.Errorf("PAYMENT_MAX_RETRIES must not be negative")
	}

	if c.Booking.ConfirmationWindow <= 0 || c.Booking.PaymentWindow <= 0 {
		return fmt.Errorf("booking confirmation and payment windows must be positive")
	}

	if c.Booking.NoShowGrace < 0 {
		return fmt.Errorf("BOOKING_NO_SHOW_GRACE must not be negative")
	}

	if c.Booking.SweepBatchSize <= 0 {
		return fmt.Errorf("BOOKING_SWEEP_BATCH_SIZE must be positive")
	}

	// Validate SMS configuration only in production mode
	if c.SMS.Mode == "production" {
		if c.SMS.APIURL == "" {
			return fmt.Errorf("SMS_API_URL is required in production mode")
		}
		if c.SMS.APIKey == "" {
			return fmt.Errorf("SMS_API_KEY is required in production mode")
		}
	}

	return nil
}

// IsProduction reports whether the server runs in production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration strings ("48h", "90s")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
