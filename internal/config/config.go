package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// Telegram
	TelegramToken string `env:"TELEGRAM_BOT_TOKEN,required"`
	AdminID       int64  `env:"ADMIN_ID,required"`

	// Shared mailbox
	RootAddress string        `env:"EMAIL_USER,required"` // the real mailbox all aliases forward through
	Password    string        `env:"EMAIL_PASS,required"`
	IMAPServer  string        `env:"IMAP_SERVER" envDefault:"imap.yandex.ru:993"`
	DialTimeout time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`

	// Aliases
	AllowedDomains []string `env:"ALLOWED_DOMAINS,required" envSeparator:","`

	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/dreammail.db"`

	// Sync loop
	PollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	BootstrapLimit  int           `env:"BOOTSTRAP_LIMIT" envDefault:"50"`
	SyncMaxAttempts int           `env:"SYNC_MAX_ATTEMPTS" envDefault:"5"`

	// Web dashboard
	WebListenAddr string `env:"WEB_LISTEN_ADDR" envDefault:":8080"`
	WebAppURL     string `env:"WEBAPP_URL"` // shown as a menu button when set

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.AdminID == 0 {
		return nil, fmt.Errorf("ADMIN_ID must be a non-zero Telegram user id")
	}

	for i, d := range cfg.AllowedDomains {
		cfg.AllowedDomains[i] = strings.ToLower(strings.TrimSpace(d))
	}
	cfg.RootAddress = strings.ToLower(strings.TrimSpace(cfg.RootAddress))
	if !strings.Contains(cfg.RootAddress, "@") {
		return nil, fmt.Errorf("EMAIL_USER must be a full email address, got %q", cfg.RootAddress)
	}

	if cfg.BootstrapLimit <= 0 {
		return nil, fmt.Errorf("BOOTSTRAP_LIMIT must be positive, got %d", cfg.BootstrapLimit)
	}
	if cfg.SyncMaxAttempts <= 0 {
		return nil, fmt.Errorf("SYNC_MAX_ATTEMPTS must be positive, got %d", cfg.SyncMaxAttempts)
	}

	return cfg, nil
}
