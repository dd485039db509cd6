// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir            string // Base directory for the database, history files and backups
	Port               int
	DevMode            bool
	LogLevel           string
	RefreshSchedule    string // Cron spec for the price refresh cycle (with seconds field)
	AlertWindowHours   int    // Minimum hours between alerts for the same ticker
	TelegramBotToken   string
	TelegramChatIDs    []string // Initial alert subscribers (comma-separated in env)
	AlphaVantageAPIKey string
	EDGARUserAgent     string // SEC requires an identifying User-Agent
	Backup             *BackupConfig
}

// BackupConfig holds S3-compatible backup storage configuration.
// Backups are disabled when no bucket is configured.
type BackupConfig struct {
	Enabled       bool
	Endpoint      string // S3-compatible endpoint URL (R2, MinIO, AWS)
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	RetentionDays int
	Schedule      string // Cron spec for the backup job
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("MARGINWATCH_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		Port:               getEnvAsInt("PORT", 8080),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RefreshSchedule:    getEnv("REFRESH_SCHEDULE", "0 */5 * * * *"), // Every 5 minutes
		AlertWindowHours:   getEnvAsInt("ALERT_WINDOW_HOURS", 24),
		TelegramBotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatIDs:    getEnvAsList("TELEGRAM_CHAT_IDS"),
		AlphaVantageAPIKey: getEnv("ALPHAVANTAGE_API_KEY", ""),
		EDGARUserAgent:     getEnv("EDGAR_USER_AGENT", "marginwatch admin@marginwatch.local"),
		Backup:             loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.AlertWindowHours <= 0 {
		return fmt.Errorf("ALERT_WINDOW_HOURS must be positive, got %d", c.AlertWindowHours)
	}

	// Telegram and Alpha Vantage credentials are optional: without a bot token
	// alerts are logged only, without an API key the fallback quote source is off.
	return nil
}

// loadBackupConfig loads backup settings; backups stay disabled unless a bucket is set
func loadBackupConfig() *BackupConfig {
	bucket := getEnv("BACKUP_S3_BUCKET", "")

	return &BackupConfig{
		Enabled:       bucket != "",
		Endpoint:      getEnv("BACKUP_S3_ENDPOINT", ""),
		Region:        getEnv("BACKUP_S3_REGION", "auto"),
		Bucket:        bucket,
		AccessKey:     getEnv("BACKUP_S3_ACCESS_KEY", ""),
		SecretKey:     getEnv("BACKUP_S3_SECRET_KEY", ""),
		RetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		Schedule:      getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"), // 3 AM daily
	}
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
