// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials (the chat platform login), use ValidateScrapeReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultRoom is the only chat room the scraper currently knows how to reach.
const DefaultRoom = "general"

type Config struct {
	// Chat platform
	ChatURL      string
	ChatUsername string
	ChatPassword string
	ChatRoom     string

	// Scrape loop
	PollInterval         time.Duration
	LoginTimeout         time.Duration
	ContainerRetryBudget int
	RestartOnLoss        bool

	// Browser
	Headless  bool
	UserAgent string

	// Storage
	LogDir string
	DBDsn  string

	// HTTP
	HTTPAddr   string
	AdminToken string
}

// Load reads environment variables and applies defaults. It doesn't fail if chat creds are
// missing; use ValidateScrapeReady() before launching a browser session. Leaving DB_DSN
// empty disables the Postgres archive; the JSONL session log always works.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ChatURL = os.Getenv("CHAT_URL")
	cfg.ChatUsername = os.Getenv("CHAT_USERNAME")
	cfg.ChatPassword = os.Getenv("CHAT_PASSWORD")
	cfg.ChatRoom = os.Getenv("CHAT_ROOM")
	if cfg.ChatRoom == "" {
		cfg.ChatRoom = DefaultRoom
	}

	cfg.PollInterval = 5 * time.Second
	if v := os.Getenv("SCRAPE_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid SCRAPE_POLL_INTERVAL %q: want a positive duration", v)
		}
		cfg.PollInterval = d
	}

	cfg.LoginTimeout = 10 * time.Second
	if v := os.Getenv("LOGIN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid LOGIN_TIMEOUT %q: want a positive duration", v)
		}
		cfg.LoginTimeout = d
	}

	cfg.ContainerRetryBudget = 5
	if v := os.Getenv("CONTAINER_RETRY_BUDGET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid CONTAINER_RETRY_BUDGET %q: want a positive integer", v)
		}
		cfg.ContainerRetryBudget = n
	}

	cfg.RestartOnLoss = os.Getenv("SESSION_RESTART_ON_LOSS") == "1"

	// Headless by default; HEADLESS=0 opens a visible browser for debugging selectors.
	cfg.Headless = os.Getenv("HEADLESS") != "0"
	cfg.UserAgent = os.Getenv("BROWSER_USER_AGENT")

	cfg.LogDir = os.Getenv("LOG_DIR")
	if cfg.LogDir == "" {
		cfg.LogDir = "chat_logs"
	}

	cfg.DBDsn = os.Getenv("DB_DSN")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")

	return cfg, nil
}

// ValidateScrapeReady checks the fields required before any browser session starts.
// Callers must not launch a browser when this fails.
func (c *Config) ValidateScrapeReady() error {
	if c.ChatURL == "" || c.ChatUsername == "" || c.ChatPassword == "" {
		return fmt.Errorf("missing chat env: require CHAT_URL, CHAT_USERNAME, CHAT_PASSWORD")
	}
	return nil
}

// ArchiveEnabled reports whether the Postgres archive sink should be wired up.
func (c *Config) ArchiveEnabled() bool { return c.DBDsn != "" }
