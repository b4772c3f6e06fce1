package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application
type Config struct {
	TelegramToken  string
	ReminderChatID int64
	DatabaseURL    string
	Store          string // postgres or memory
	LogLevel       string
	PrometheusPort string
	Port           string
	DayStartHour   int
	DayActiveHours int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Store:          getEnvOrDefault("STORE", "postgres"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		PrometheusPort: getEnvOrDefault("PROMETHEUS_PORT", "9090"),
		Port:           getEnvOrDefault("PORT", "8080"),
	}

	var err error
	if cfg.DayStartHour, err = getEnvInt("DAY_START_HOUR", 8); err != nil {
		return nil, err
	}
	if cfg.DayActiveHours, err = getEnvInt("DAY_ACTIVE_HOURS", 12); err != nil {
		return nil, err
	}

	// Required environment variables. The memory store is a development mode
	// and may run without the bot.
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" && cfg.Store != "memory" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN environment variable is required")
	}

	if raw := os.Getenv("REMINDER_CHAT_ID"); raw != "" {
		if cfg.ReminderChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("REMINDER_CHAT_ID must be an integer: %w", err)
		}
	}

	if cfg.Store == "postgres" {
		if cfg.DatabaseURL = os.Getenv("DATABASE_URL"); cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required")
		}
	}

	return cfg, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}
