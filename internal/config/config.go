package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server  ServerConfig
	Logging LoggingConfig
	Twitter TwitterConfig
	Polling PollingConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// TwitterConfig holds the OAuth2 app credentials and callback settings.
type TwitterConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       string
}

// PollingConfig holds the scheduler intervals and safety margins.
type PollingConfig struct {
	FetchInterval time.Duration
	SweepInterval time.Duration
	RefreshMargin time.Duration
	SweepMargin   time.Duration
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultCallbackURL = "http://localhost:8080/api/auth/twitter/callback"
	defaultScopes      = "tweet.read tweet.write users.read dm.write offline.access"

	defaultFetchInterval = 5 * time.Minute
	defaultSweepInterval = 2 * time.Hour
	defaultRefreshMargin = 5 * time.Minute
	defaultSweepMargin   = 1 * time.Hour
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Twitter: TwitterConfig{
			ClientID:     os.Getenv("TWITTER_CLIENT_ID"),
			ClientSecret: os.Getenv("TWITTER_CLIENT_SECRET"),
			CallbackURL:  getEnv("TWITTER_CALLBACK_URL", defaultCallbackURL),
			Scopes:       getEnv("TWITTER_SCOPE", defaultScopes),
		},
		Polling: PollingConfig{
			FetchInterval: defaultFetchInterval,
			SweepInterval: defaultSweepInterval,
			RefreshMargin: defaultRefreshMargin,
			SweepMargin:   defaultSweepMargin,
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("POLLING_INTERVAL_MINUTES"); v != "" {
		d, err := parseMinutes(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid POLLING_INTERVAL_MINUTES: %w", err)
		}
		cfg.Polling.FetchInterval = d
	}

	if v := os.Getenv("TOKEN_SWEEP_INTERVAL_MINUTES"); v != "" {
		d, err := parseMinutes(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TOKEN_SWEEP_INTERVAL_MINUTES: %w", err)
		}
		cfg.Polling.SweepInterval = d
	}

	return cfg, nil
}

// Validate confirms the settings needed for outbound Twitter calls are set.
func (c Config) Validate() error {
	if c.Twitter.ClientID == "" {
		return fmt.Errorf("TWITTER_CLIENT_ID is required")
	}
	if c.Twitter.ClientSecret == "" {
		return fmt.Errorf("TWITTER_CLIENT_SECRET is required")
	}
	return nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseMinutes(raw string) (time.Duration, error) {
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return time.Duration(minutes) * time.Minute, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
