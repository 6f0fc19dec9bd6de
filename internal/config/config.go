package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHydroURL       = "https://danepubliczne.imgw.pl/api/data/hydro"
	defaultWarningsURL    = "https://danepubliczne.imgw.pl/api/data/warningshydro"
	defaultPort           = 8080
	defaultRequestTimeout = 30 * time.Second
	defaultDays           = 7
	defaultLimit          = 100
	defaultBatchSize      = 50
)

// Config holds environment-driven settings for the service.
type Config struct {
	DatabaseURL    string
	HydroURL       string
	WarningsURL    string
	Port           int
	RequestTimeout time.Duration
	DefaultDays    int
	DefaultLimit   int
	DefaultBatch   int
	SyncSchedule   string
	LogLevel       string
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		HydroURL:       defaultHydroURL,
		WarningsURL:    defaultWarningsURL,
		Port:           defaultPort,
		RequestTimeout: defaultRequestTimeout,
		DefaultDays:    defaultDays,
		DefaultLimit:   defaultLimit,
		DefaultBatch:   defaultBatchSize,
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	if v := strings.TrimSpace(os.Getenv("IMGW_API_URL")); v != "" {
		cfg.HydroURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv("IMGW_WARNINGS_URL")); v != "" {
		cfg.WarningsURL = v
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
		cfg.Port = port
	}

	if v := strings.TrimSpace(os.Getenv("IMGW_REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid IMGW_REQUEST_TIMEOUT: %s", v)
		}
		cfg.RequestTimeout = d
	}

	if daysStr := os.Getenv("SYNC_DEFAULT_DAYS"); daysStr != "" {
		days, err := strconv.Atoi(daysStr)
		if err != nil || days <= 0 {
			return cfg, fmt.Errorf("invalid SYNC_DEFAULT_DAYS: %s", daysStr)
		}
		cfg.DefaultDays = days
	}

	if limitStr := os.Getenv("API_DEFAULT_LIMIT"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			return cfg, fmt.Errorf("invalid API_DEFAULT_LIMIT: %s", limitStr)
		}
		cfg.DefaultLimit = limit
	}

	if batchStr := os.Getenv("API_DEFAULT_BATCH"); batchStr != "" {
		batch, err := strconv.Atoi(batchStr)
		if err != nil || batch <= 0 {
			return cfg, fmt.Errorf("invalid API_DEFAULT_BATCH: %s", batchStr)
		}
		cfg.DefaultBatch = batch
	}

	// Empty schedule disables the in-process scheduler.
	cfg.SyncSchedule = strings.TrimSpace(os.Getenv("SYNC_SCHEDULE"))

	cfg.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
