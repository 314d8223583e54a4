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

// AuthConfig provides token issuance settings for the auth module.
type AuthConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
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
}

// PipelineConfig provides settings for the pipeline transition handler.
type PipelineConfig interface {
	GetHourlyRateCents() int64
	GetPaymentTermsDays() int
	GetDefaultEventDuration() time.Duration
	GetSideEffectTimeout() time.Duration
}

// FollowupConfig provides settings for follow-up reminders.
type FollowupConfig interface {
	GetReminderOffsetDays() int
	GetReminderRetentionDays() int
	GetThreadScanWindowDays() int
	GetThreadScanMaxThreads() int
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// MailboxConfig provides IMAP settings for the thread reader.
type MailboxConfig interface {
	GetIMAPHost() string
	GetIMAPPort() int
	GetIMAPUsername() string
	GetIMAPPassword() string
	IsMailboxEnabled() bool
}

// EmailConfig provides SMTP settings for outbound reminder emails.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// CalendarConfig provides settings for the external calendar API.
type CalendarConfig interface {
	GetCalendarAPIURL() string
	GetCalendarAPIKey() string
	IsCalendarEnabled() bool
}

// BillingConfig provides settings for the external invoicing API.
type BillingConfig interface {
	GetBillingAPIURL() string
	GetBillingAPIKey() string
	IsBillingEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CORSAllowAll    bool
	CORSOrigins     []string
	CORSAllowCreds  bool
	AppBaseURL      string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	HourlyRateCents      int64
	PaymentTermsDays     int
	DefaultEventDuration time.Duration
	SideEffectTimeout    time.Duration

	ReminderOffsetDays    int
	ReminderRetentionDays int
	ThreadScanWindowDays  int
	ThreadScanMaxThreads  int

	IMAPHost     string
	IMAPPort     int
	IMAPUsername string
	IMAPPassword string

	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string

	CalendarAPIURL string
	CalendarAPIKey string
	BillingAPIURL  string
	BillingAPIKey  string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// AuthConfig implementation
func (c *Config) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// PipelineConfig implementation
func (c *Config) GetHourlyRateCents() int64              { return c.HourlyRateCents }
func (c *Config) GetPaymentTermsDays() int               { return c.PaymentTermsDays }
func (c *Config) GetDefaultEventDuration() time.Duration { return c.DefaultEventDuration }
func (c *Config) GetSideEffectTimeout() time.Duration    { return c.SideEffectTimeout }

// FollowupConfig implementation
func (c *Config) GetReminderOffsetDays() int    { return c.ReminderOffsetDays }
func (c *Config) GetReminderRetentionDays() int { return c.ReminderRetentionDays }
func (c *Config) GetThreadScanWindowDays() int  { return c.ThreadScanWindowDays }
func (c *Config) GetThreadScanMaxThreads() int  { return c.ThreadScanMaxThreads }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// MailboxConfig implementation
func (c *Config) GetIMAPHost() string     { return c.IMAPHost }
func (c *Config) GetIMAPPort() int        { return c.IMAPPort }
func (c *Config) GetIMAPUsername() string { return c.IMAPUsername }
func (c *Config) GetIMAPPassword() string { return c.IMAPPassword }
func (c *Config) IsMailboxEnabled() bool  { return c.IMAPHost != "" }

// EmailConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool {
	return c.SMTPHost != "" && c.EmailFromAddress != ""
}

// CalendarConfig implementation
func (c *Config) GetCalendarAPIURL() string { return c.CalendarAPIURL }
func (c *Config) GetCalendarAPIKey() string { return c.CalendarAPIKey }
func (c *Config) IsCalendarEnabled() bool   { return c.CalendarAPIURL != "" }

// BillingConfig implementation
func (c *Config) GetBillingAPIURL() string { return c.BillingAPIURL }
func (c *Config) GetBillingAPIKey() string { return c.BillingAPIKey }
func (c *Config) IsBillingEnabled() bool   { return c.BillingAPIURL != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:  mustDuration(getEnv("JWT_ACCESS_TTL", "15m")),
		RefreshTokenTTL: mustDuration(getEnv("JWT_REFRESH_TTL", "720h")),
		CORSAllowAll:    corsAllowAll,
		CORSOrigins:     corsOrigins,
		CORSAllowCreds:  strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:      getEnv("APP_BASE_URL", "http://localhost:4200"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		// 450 DKK/hour is the business default, stored in cents (øre).
		HourlyRateCents:      mustInt64(getEnv("PIPELINE_HOURLY_RATE_CENTS", "45000")),
		PaymentTermsDays:     mustInt(getEnv("PIPELINE_PAYMENT_TERMS_DAYS", "8")),
		DefaultEventDuration: mustDuration(getEnv("PIPELINE_DEFAULT_EVENT_DURATION", "2h")),
		SideEffectTimeout:    mustDuration(getEnv("PIPELINE_SIDE_EFFECT_TIMEOUT", "15s")),

		ReminderOffsetDays:    mustInt(getEnv("FOLLOWUP_REMINDER_OFFSET_DAYS", "3")),
		ReminderRetentionDays: mustInt(getEnv("FOLLOWUP_RETENTION_DAYS", "90")),
		ThreadScanWindowDays:  mustInt(getEnv("FOLLOWUP_SCAN_WINDOW_DAYS", "7")),
		ThreadScanMaxThreads:  mustInt(getEnv("FOLLOWUP_SCAN_MAX_THREADS", "100")),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     mustInt(getEnv("IMAP_PORT", "993")),
		IMAPUsername: getEnv("IMAP_USERNAME", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),

		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Mailpilot"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),

		CalendarAPIURL: getEnv("CALENDAR_API_URL", ""),
		CalendarAPIKey: getEnv("CALENDAR_API_KEY", ""),
		BillingAPIURL:  getEnv("BILLING_API_URL", ""),
		BillingAPIKey:  getEnv("BILLING_API_KEY", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive durations")
	}
	if cfg.HourlyRateCents <= 0 {
		return nil, fmt.Errorf("PIPELINE_HOURLY_RATE_CENTS must be positive")
	}
	if cfg.ReminderOffsetDays <= 0 || cfg.ReminderRetentionDays <= 0 {
		return nil, fmt.Errorf("FOLLOWUP_REMINDER_OFFSET_DAYS and FOLLOWUP_RETENTION_DAYS must be positive")
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

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
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
