package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr              string
	DatabaseURL       string
	MigrationsDir     string
	JWTSecret         string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	DataEncryptionKey string
	Environment       string
	LogLevel          string
	InstitutionName   string
	Timezone          string

	SeedAdminUsername string
	SeedAdminEmail    string
	SeedAdminPassword string
	RunMigrations     bool
	RunSeed           bool

	EmailProvider  string
	EmailFrom      string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	SendGridAPIKey string

	PasswordResetTTL time.Duration
	PasswordResetURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	OutboxPollInterval time.Duration

	StorageDriver string
	StorageDir    string
	S3Bucket      string
	S3Region      string

	PayrollWorkers       int
	PayrollLockTTL       time.Duration
	LeaveAccrualInterval time.Duration

	CORSOrigins        []string
	MaxBodyBytes       int64
	RateLimitPerMinute int
	MetricsEnabled     bool
}

// Load reads configuration from the environment. Values from .env files in the
// working directory are applied first and never override variables already set.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:              getEnv("APP_ADDR", ":8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		MigrationsDir:     getEnv("MIGRATIONS_DIR", "migrations"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		AccessTokenTTL:    getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:   getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		DataEncryptionKey: getEnv("DATA_ENCRYPTION_KEY", ""),
		Environment:       getEnv("APP_ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		InstitutionName:   getEnv("INSTITUTION_NAME", "School ERP"),
		Timezone:          getEnv("APP_TIMEZONE", "Local"),

		SeedAdminUsername: getEnv("SEED_ADMIN_USERNAME", "admin"),
		SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", "admin@school.local"),
		SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),
		RunMigrations:     getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:           getEnvBool("RUN_SEED", true),

		EmailProvider:  strings.ToLower(getEnv("EMAIL_PROVIDER", "none")),
		EmailFrom:      getEnv("EMAIL_FROM", "no-reply@school.local"),
		SMTPHost:       getEnv("SMTP_HOST", ""),
		SMTPPort:       getEnvInt("SMTP_PORT", 587),
		SMTPUser:       getEnv("SMTP_USER", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),

		PasswordResetTTL: getEnvDuration("PASSWORD_RESET_TTL", 2*time.Hour),
		PasswordResetURL: getEnv("PASSWORD_RESET_URL", "http://localhost:8080/reset"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),

		KafkaBrokers:       getEnvList("KAFKA_BROKERS"),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", "schoolerp"),
		OutboxPollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", 5*time.Second),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
		StorageDir:    getEnv("STORAGE_DIR", "storage"),
		S3Bucket:      getEnv("S3_BUCKET", ""),
		S3Region:      getEnv("S3_REGION", "us-east-1"),

		PayrollWorkers:       getEnvInt("PAYROLL_WORKERS", 8),
		PayrollLockTTL:       getEnvDuration("PAYROLL_LOCK_TTL", 10*time.Minute),
		LeaveAccrualInterval: getEnvDuration("LEAVE_ACCRUAL_INTERVAL", 24*time.Hour),

		CORSOrigins:        getEnvList("CORS_ORIGINS"),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() {
		if len(strings.TrimSpace(c.JWTSecret)) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for encryption at rest")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be set or RUN_SEED disabled in production")
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE is not a known time zone: %w", err)
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.PayrollWorkers <= 0 {
		return fmt.Errorf("PAYROLL_WORKERS must be positive")
	}
	switch c.EmailProvider {
	case "none":
	case "smtp":
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST must be set when EMAIL_PROVIDER is smtp")
		}
	case "sendgrid":
		if c.SendGridAPIKey == "" {
			return fmt.Errorf("SENDGRID_API_KEY must be set when EMAIL_PROVIDER is sendgrid")
		}
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be one of none, smtp, sendgrid")
	}
	switch c.StorageDriver {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET must be set when STORAGE_DRIVER is s3")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be local or s3")
	}
	return nil
}
