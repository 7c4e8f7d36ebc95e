package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Hub      HubConfig
	Backfill BackfillConfig
	Geocode  GeocodeConfig
	Weather  WeatherConfig
	DB       DatabaseConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	RateLimitRPS int
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type HubConfig struct {
	// SendBuffer is the per-subscriber outbound queue; alerts beyond it are
	// dropped for that subscriber rather than blocking the fan-out.
	SendBuffer int
}

type BackfillConfig struct {
	Enabled    bool
	Interval   time.Duration
	Workers    int
	BufferSize int
}

type GeocodeConfig struct {
	NominatimURL string
}

type WeatherConfig struct {
	URL    string
	APIKey string
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS: getEnvInt("RATE_LIMIT_RPS", 20),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getEnvDuration("TOKEN_TTL", time.Hour),
		},
		Hub: HubConfig{
			SendBuffer: getEnvInt("HUB_SEND_BUFFER", 32),
		},
		Backfill: BackfillConfig{
			Enabled:    getEnvBool("BACKFILL_ENABLED", true),
			Interval:   getEnvDuration("BACKFILL_INTERVAL", 5*time.Minute),
			Workers:    getEnvInt("BACKFILL_WORKERS", 2),
			BufferSize: getEnvInt("BACKFILL_BUFFER_SIZE", 64),
		},
		Geocode: GeocodeConfig{
			NominatimURL: getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		},
		Weather: WeatherConfig{
			URL:    getEnv("WEATHER_API_URL", "https://api.weatherapi.com"),
			APIKey: getEnv("WEATHER_API_KEY", ""),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/reliefnet.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Hub.SendBuffer < 1 {
		return fmt.Errorf("hub send buffer must be at least 1")
	}
	if c.Backfill.Enabled && c.Backfill.Interval < time.Minute {
		return fmt.Errorf("backfill interval must be at least 1 minute")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
