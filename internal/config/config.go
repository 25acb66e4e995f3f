package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	PriorityModeTrust     = "trust"
	PriorityModeRecompute = "recompute"

	PushChannelPostgres = "postgres"
	PushChannelNATS     = "nats"
	PushChannelNone     = "none"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port        string
	Debug       bool
	CORSOrigins []string

	// Brand being monitored
	BrandName string

	// Initial data source: "mock" or "live"
	DataSource string

	// Primary live origin (HTTP aggregate endpoint)
	APIBaseURL string
	APITimeout time.Duration

	// Secondary live origin (realtime database)
	DatabaseURL      string
	DatabaseSchema   string
	DatabaseMaxConns int

	// Push subscription
	PushChannel       string
	NATSURL           string
	NATSSubjectPrefix string

	// Refresh behaviour
	RefreshSchedule string
	RefreshTimeout  time.Duration
	PriorityMode    string

	// Alert notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Debug:       getBoolEnv("DEBUG", false),
		CORSOrigins: getSliceEnv("CORS_ORIGINS", []string{"*"}),
		BrandName:   getEnv("BRAND_NAME", "LeapScholar"),

		APIBaseURL: strings.TrimRight(getEnv("API_BASE_URL", ""), "/"),
		APITimeout: getDurationEnv("API_TIMEOUT", 30*time.Second),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseSchema:   getEnv("DATABASE_SCHEMA", "public"),
		DatabaseMaxConns: getIntEnv("DATABASE_MAX_CONNS", 10),

		NATSURL:           getEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "pulse"),

		RefreshSchedule: getEnv("REFRESH_SCHEDULE", ""),
		RefreshTimeout:  getDurationEnv("REFRESH_TIMEOUT", 60*time.Second),
		PriorityMode:    strings.ToLower(getEnv("PRIORITY_MODE", PriorityModeTrust)),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	// Defaults that depend on which live origins are configured
	defaultSource := "mock"
	if cfg.LiveConfigured() {
		defaultSource = "live"
	}
	cfg.DataSource = strings.ToLower(getEnv("DATA_SOURCE", defaultSource))

	defaultPush := PushChannelNone
	if cfg.DatabaseURL != "" {
		defaultPush = PushChannelPostgres
	}
	cfg.PushChannel = strings.ToLower(getEnv("PUSH_CHANNEL", defaultPush))

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LiveConfigured reports whether any live origin has credentials
func (c *Config) LiveConfigured() bool {
	return c.APIBaseURL != "" || c.DatabaseURL != ""
}

// NotificationsEnabled reports whether any alert channel is configured
func (c *Config) NotificationsEnabled() bool {
	return c.TeamsWebhookURL != "" || c.NotificationEmail != ""
}

func (c *Config) validate() error {
	if c.DataSource != "mock" && c.DataSource != "live" {
		return fmt.Errorf("DATA_SOURCE must be 'mock' or 'live'")
	}

	if c.DataSource == "live" && !c.LiveConfigured() {
		return fmt.Errorf("DATA_SOURCE=live requires API_BASE_URL or DATABASE_URL")
	}

	if c.PriorityMode != PriorityModeTrust && c.PriorityMode != PriorityModeRecompute {
		return fmt.Errorf("PRIORITY_MODE must be 'trust' or 'recompute'")
	}

	switch c.PushChannel {
	case PushChannelNone, PushChannelNATS:
	case PushChannelPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("PUSH_CHANNEL=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("PUSH_CHANNEL must be 'postgres', 'nats' or 'none'")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("REFRESH_TIMEOUT must be positive")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
