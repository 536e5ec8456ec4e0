// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultGeographyURL   = "https://psgc.gitlab.io/api"
	DefaultRequestTimeout = 10 * time.Second
	DefaultSessionTTL     = 30 * time.Minute
	DefaultDraftTTL       = 24 * time.Hour
)

// ErrNotConfigured is returned when the backend API URL is missing.
var ErrNotConfigured = errors.New("API URL is not configured. Please check your .env file")

type Config struct {
	APIURL         string
	GeographyURL   string
	BotToken       string
	TargetGuild    string
	RedisURL       string
	RequestTimeout time.Duration
	SessionTTL     time.Duration
	DraftTTL       time.Duration
	LogLevel       string
}

// Load reads the given .env files (".env" when none are given) and then the process environment.
// A missing .env file is not an error; the environment alone may be enough.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
		log.Debug("No .env file found, using process environment only")
	}

	cfg := &Config{
		APIURL:         trimURL(os.Getenv("MECHCONNECT_API_URL")),
		GeographyURL:   trimURL(os.Getenv("GEOGRAPHY_API_URL")),
		BotToken:       os.Getenv("BOT_TOKEN"),
		TargetGuild:    os.Getenv("BOT_TARGET_GUILD"),
		RedisURL:       os.Getenv("REDIS_URL"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		RequestTimeout: DefaultRequestTimeout,
		SessionTTL:     DefaultSessionTTL,
		DraftTTL:       DefaultDraftTTL,
	}
	if cfg.GeographyURL == "" {
		cfg.GeographyURL = DefaultGeographyURL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	var err error
	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", cfg.SessionTTL); err != nil {
		return nil, err
	}
	if cfg.DraftTTL, err = durationEnv("DRAFT_TTL", cfg.DraftTTL); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return ErrNotConfigured
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("MECHCONNECT_API_URL must be an http(s) URL, got %q", c.APIURL)
	}
	return nil
}

// ConfigureLogging applies LogLevel to the standard logrus logger.
func (c *Config) ConfigureLogging() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func trimURL(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}
