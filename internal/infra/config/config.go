package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	HTTPAddr           string
	DatabaseDriver     string
	DatabaseURL        string
	StateKey           string // Namespaced key of the reminder record
	SnoozeDuration     time.Duration
	DeliveryTimeout    time.Duration
	TelegramToken      string // Empty disables the Telegram surface
	AdminTelegramID    int64  // 0 lets any chat issue reminder commands
	CORSAllowedOrigins []string
	MetricsNamespace   string
	LogLevel           string
	Environment        string
	ForceColors        bool // Text logs keep colours when not attached to a TTY
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")

	cfg.DatabaseDriver = strings.ToLower(getenvDefault("DATABASE_DRIVER", DriverSQLite))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	switch cfg.DatabaseDriver {
	case DriverSQLite:
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "data/pets.db"
		}
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	cfg.StateKey = getenvDefault("STATE_KEY", "pixelPets:reminderState")

	snoozeSeconds, err := strconv.Atoi(getenvDefault("SNOOZE_SECONDS", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid SNOOZE_SECONDS: %w", err)
	}
	if snoozeSeconds <= 0 {
		return nil, fmt.Errorf("SNOOZE_SECONDS must be positive, got %d", snoozeSeconds)
	}
	cfg.SnoozeDuration = time.Duration(snoozeSeconds) * time.Second

	cfg.DeliveryTimeout, err = time.ParseDuration(getenvDefault("DELIVERY_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DELIVERY_TIMEOUT: %w", err)
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")

	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	for _, origin := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	cfg.MetricsNamespace = getenvDefault("METRICS_NAMESPACE", "pixel_pets")

	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getenvDefault("ENVIRONMENT", "development"))
	cfg.ForceColors = strings.EqualFold(os.Getenv("TERM_COLORS"), "always")

	return cfg, nil
}

// TelegramEnabled reports whether the bot should be started.
func (c *AppConfig) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
