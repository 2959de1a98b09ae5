package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port            string
	StoreDriver     string // "postgres" or "memory"
	DBConn          string
	LogLevel        string
	JWTSecret       string
	SessionTTL      time.Duration
	CardTokenTTL    time.Duration
	CleanupSchedule string
	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
	SenderEmail     string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	sessionTTL, err := getEnvSeconds("SESSION_TTL_SECONDS", 1800)
	if err != nil {
		return nil, err
	}
	cardTokenTTL, err := getEnvSeconds("CARD_TOKEN_TTL_SECONDS", 1800)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		StoreDriver:     getEnv("STORE_DRIVER", "postgres"),
		DBConn:          getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=vault sslmode=disable"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		SessionTTL:      sessionTTL,
		CardTokenTTL:    cardTokenTTL,
		CleanupSchedule: getEnv("CLEANUP_SCHEDULE", "@every 10m"),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnv("SMTP_PORT", "587"),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SenderEmail:     getEnv("SENDER_EMAIL", "noreply@card-vault.local"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.StoreDriver != "postgres" && cfg.StoreDriver != "memory" {
		return nil, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == "postgres" && cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvSeconds(key string, defaultVal int) (time.Duration, error) {
	raw := getEnv(key, strconv.Itoa(defaultVal))
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("%s must be a positive number of seconds, got %q", key, raw)
	}
	return time.Duration(seconds) * time.Second, nil
}
