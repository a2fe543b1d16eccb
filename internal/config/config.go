// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// DefaultSystemActorID identifies automated actors (gateway verifier, scheduler)
// when no admin performed an action.
const DefaultSystemActorID = "00000000-0000-0000-0000-000000000001"

type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	AWS         AWSConfig
	Storage     StorageConfig
	Payment     PaymentConfig
	Ledger      LedgerConfig
	Scheduler   SchedulerConfig
	I18n        I18nConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	ReadTimeout    int
	WriteTimeout   int
	IdleTimeout    int
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

type DatabaseConfig struct {
	Driver       string
	SQLitePath   string
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
	SecretKey      string
	AccessTokenTTL int // in hours
}

type RedisConfig struct {
	URL      string
	Host     string
	Port     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
}

type StorageConfig struct {
	LocalPath     string
	ExportsFolder string
}

type PaymentConfig struct {
	StripeSecretKey    string
	PlatformFeePercent float64
	MinimumCashout     float64
	Currency           string
}

type LedgerConfig struct {
	SystemActorID    uuid.UUID
	ClearanceDays    int
	ClearanceByType  map[string]int
	ExportMaxRecords int
}

type SchedulerConfig struct {
	Enabled           bool
	ClearanceInterval int // in seconds
	WorkerPoolSize    int
	MaxAttempts       int
	LockTTL           int // in seconds
}

type I18nConfig struct {
	DefaultLocale string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	systemActor, err := uuid.Parse(getEnv("SYSTEM_ACTOR_ID", DefaultSystemActorID))
	if err != nil {
		return nil, fmt.Errorf("invalid SYSTEM_ACTOR_ID: %w", err)
	}

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Host:           getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:    getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:   getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:    getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 10),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			SQLitePath:   getEnv("DB_SQLITE_PATH", "escrow_ledger.db"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "escrow_ledger"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 24),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvAsSlice("KAFKA_BROKERS", nil),
			TopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "ledger."),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "escrow-ledger-exports"),
		},
		Storage: StorageConfig{
			LocalPath:     getEnv("STORAGE_LOCAL_PATH", "./exports"),
			ExportsFolder: getEnv("STORAGE_EXPORTS_FOLDER", "ledger-exports"),
		},
		Payment: PaymentConfig{
			StripeSecretKey:    getEnv("STRIPE_SECRET_KEY", ""),
			PlatformFeePercent: getEnvAsFloat("PLATFORM_FEE_PERCENT", 10.0),
			MinimumCashout:     getEnvAsFloat("MINIMUM_CASHOUT", 10.0),
			Currency:           strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
		},
		Ledger: LedgerConfig{
			SystemActorID: systemActor,
			ClearanceDays: getEnvAsInt("CLEARANCE_DAYS", 7),
			ClearanceByType: map[string]int{
				"booking":       getEnvAsInt("CLEARANCE_DAYS_BOOKING", 0),
				"collaboration": getEnvAsInt("CLEARANCE_DAYS_COLLABORATION", 0),
			},
			ExportMaxRecords: getEnvAsInt("EXPORT_MAX_RECORDS", 50000),
		},
		Scheduler: SchedulerConfig{
			Enabled:           getEnvAsBool("SCHEDULER_ENABLED", true),
			ClearanceInterval: getEnvAsInt("CLEARANCE_INTERVAL", 300),
			WorkerPoolSize:    getEnvAsInt("CLEARANCE_WORKERS", 8),
			MaxAttempts:       getEnvAsInt("CLEARANCE_MAX_ATTEMPTS", 3),
			LockTTL:           getEnvAsInt("SCHEDULER_LOCK_TTL", 240),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
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

	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Database.Driver == "sqlite" && c.Environment == "production" {
		return fmt.Errorf("sqlite driver is not supported in production")
	}

	if c.Payment.PlatformFeePercent < 0 || c.Payment.PlatformFeePercent > 100 {
		return fmt.Errorf("platform fee percent must be between 0 and 100, got %v", c.Payment.PlatformFeePercent)
	}

	if c.Payment.MinimumCashout < 0 {
		return fmt.Errorf("minimum cashout cannot be negative")
	}

	if c.Ledger.ClearanceDays < 0 {
		return fmt.Errorf("clearance days cannot be negative")
	}

	for paymentType, days := range c.Ledger.ClearanceByType {
		if days < 0 {
			return fmt.Errorf("clearance days for %s cannot be negative", paymentType)
		}
	}

	if c.Ledger.SystemActorID == uuid.Nil {
		return fmt.Errorf("system actor id must not be the nil uuid")
	}

	if c.Scheduler.ClearanceInterval <= 0 {
		return fmt.Errorf("clearance interval must be positive")
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
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

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
