package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		DatabaseURL:        "postgres://localhost/schoolerp",
		Environment:        "development",
		EmailProvider:      "none",
		StorageDriver:      "local",
		MaxBodyBytes:       4096,
		RateLimitPerMinute: 60,
		PayrollWorkers:     4,
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db/erp")
	t.Setenv("KAFKA_BROKERS", " broker-1:9092, ,broker-2:9092")
	t.Setenv("PAYROLL_LOCK_TTL", "not-a-duration")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "postgres://db/erp", cfg.DatabaseURL)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 10*time.Minute, cfg.PayrollLockTTL)
	assert.Equal(t, "local", cfg.StorageDriver)
	assert.Equal(t, 8, cfg.PayrollWorkers)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := map[string]func(c *Config){
		"missing database":      func(c *Config) { c.DatabaseURL = "" },
		"short jwt in prod":     func(c *Config) { c.Environment = "production"; c.JWTSecret = "short"; c.DataEncryptionKey = "k" },
		"smtp without host":     func(c *Config) { c.EmailProvider = "smtp" },
		"sendgrid without key":  func(c *Config) { c.EmailProvider = "sendgrid" },
		"unknown provider":      func(c *Config) { c.EmailProvider = "pigeon" },
		"s3 without bucket":     func(c *Config) { c.StorageDriver = "s3" },
		"zero payroll workers":  func(c *Config) { c.PayrollWorkers = 0 },
		"tiny body limit":       func(c *Config) { c.MaxBodyBytes = 10 },
		"non positive limiting": func(c *Config) { c.RateLimitPerMinute = 0 },
		"unknown timezone":      func(c *Config) { c.Timezone = "Mars/Olympus" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateProductionSeed(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = "production"
	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.DataEncryptionKey = "key"
	cfg.RunSeed = true
	assert.Error(t, cfg.Validate())

	cfg.SeedAdminPassword = "S3cure-admin-pass"
	assert.NoError(t, cfg.Validate())
}
