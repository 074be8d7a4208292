// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetDeliveryRunCron() string
	GetDedupPurgeCron() string
	GetQuotaMonitorCron() string
	GetLeaseReclaimCron() string
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetAdminEmail() string
}

// StorageConfig provides settings for MinIO S3-compatible storage.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketDeliveries() string
	IsMinIOEnabled() bool
}

// PersonalizerConfig provides settings for AI-generated outreach content.
type PersonalizerConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	IsPersonalizerEnabled() bool
}

// AllocationConfig provides the tuning knobs of the allocation engine.
type AllocationConfig interface {
	GetDedupWindowDays() int
	GetExclusiveRetentionDays() int
	GetReservationLease() time.Duration
	GetPlansFile() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                    string
	HTTPAddr               string
	DatabaseURL            string
	JWTAccessSecret        string
	CORSAllowAll           bool
	CORSOrigins            []string
	CORSAllowCreds         bool
	RedisURL               string
	RedisTLSInsecure       bool
	AsynqQueueName         string
	AsynqConcurrency       int
	DeliveryRunCron        string
	DedupPurgeCron         string
	QuotaMonitorCron       string
	LeaseReclaimCron       string
	EmailEnabled           bool
	SMTPHost               string
	SMTPPort               int
	SMTPUsername           string
	SMTPPassword           string
	EmailFromName          string
	EmailFromAddress       string
	AdminEmail             string
	MinIOEndpoint          string
	MinIOAccessKey         string
	MinIOSecretKey         string
	MinIOUseSSL            bool
	MinioBucketDeliveries  string
	GeminiAPIKey           string
	GeminiModel            string
	DedupWindowDays        int
	ExclusiveRetentionDays int
	ReservationLease       time.Duration
	PlansFile              string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string         { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool   { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string   { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int    { return c.AsynqConcurrency }
func (c *Config) GetDeliveryRunCron() string  { return c.DeliveryRunCron }
func (c *Config) GetDedupPurgeCron() string   { return c.DedupPurgeCron }
func (c *Config) GetQuotaMonitorCron() string { return c.QuotaMonitorCron }
func (c *Config) GetLeaseReclaimCron() string { return c.LeaseReclaimCron }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetAdminEmail() string       { return c.AdminEmail }

// StorageConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketDeliveries() string {
	return c.MinioBucketDeliveries
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// PersonalizerConfig implementation
func (c *Config) GetGeminiAPIKey() string     { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string      { return c.GeminiModel }
func (c *Config) IsPersonalizerEnabled() bool { return c.GeminiAPIKey != "" }

// AllocationConfig implementation
func (c *Config) GetDedupWindowDays() int        { return c.DedupWindowDays }
func (c *Config) GetExclusiveRetentionDays() int { return c.ExclusiveRetentionDays }
func (c *Config) GetReservationLease() time.Duration {
	return c.ReservationLease
}
func (c *Config) GetPlansFile() string { return c.PlansFile }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpUsername := getEnv("SMTP_USERNAME", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                    getEnv("APP_ENV", "development"),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		JWTAccessSecret:        getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:           corsAllowAll,
		CORSOrigins:            corsOrigins,
		CORSAllowCreds:         strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:               getEnv("REDIS_URL", ""),
		RedisTLSInsecure:       strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:         getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:       mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		DeliveryRunCron:        getEnv("DELIVERY_RUN_CRON", "0 9 * * *"),
		DedupPurgeCron:         getEnv("DEDUP_PURGE_CRON", "30 2 * * *"),
		QuotaMonitorCron:       getEnv("QUOTA_MONITOR_CRON", "0 8 * * *"),
		LeaseReclaimCron:       getEnv("LEASE_RECLAIM_CRON", "*/10 * * * *"),
		EmailEnabled:           emailEnabled && smtpUsername != "",
		SMTPHost:               getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:               mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:           smtpUsername,
		SMTPPassword:           getEnv("SMTP_PASSWORD", ""),
		EmailFromName:          getEnv("EMAIL_FROM_NAME", "LeadFlow"),
		EmailFromAddress:       getEnv("EMAIL_FROM_ADDRESS", "leads@leadflow.local"),
		AdminEmail:             getEnv("ADMIN_EMAIL", ""),
		MinIOEndpoint:          getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:         getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:         getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:            strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketDeliveries:  getEnv("MINIO_BUCKET_DELIVERIES", "lead-deliveries"),
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		DedupWindowDays:        mustInt(getEnv("DEDUP_WINDOW_DAYS", "30")),
		ExclusiveRetentionDays: mustInt(getEnv("EXCLUSIVE_RETENTION_DAYS", "90")),
		ReservationLease:       mustDuration(getEnv("RESERVATION_LEASE", "10m")),
		PlansFile:              getEnv("PLANS_FILE", "plans.yaml"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.SMTPPassword == "" {
		return nil, fmt.Errorf("SMTP_PASSWORD is required when SMTP_USERNAME is set")
	}
	if cfg.DedupWindowDays < 1 {
		return nil, fmt.Errorf("DEDUP_WINDOW_DAYS must be at least 1")
	}
	if cfg.ExclusiveRetentionDays < cfg.DedupWindowDays {
		return nil, fmt.Errorf("EXCLUSIVE_RETENTION_DAYS must not be shorter than DEDUP_WINDOW_DAYS")
	}
	if cfg.ReservationLease < time.Minute {
		return nil, fmt.Errorf("RESERVATION_LEASE must be at least 1m")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
