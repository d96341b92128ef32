package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/aryan0dhankhar/insightdash/pkg/database"
)

// Config holds the application configuration.
// Values come from environment variables, optionally layered over the YAML file named by CONFIG_FILE.
// Secrets are only read from the environment.
type Config struct {
	Environment        string   `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`
	ServerPort         int      `yaml:"server_port" env:"SERVER_PORT" env-default:"8080"`
	LogLevel           string   `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:3000"`
	RedisURL           string   `yaml:"redis_url" env:"REDIS_URL" env-default:""`
	OTLPEndpoint       string   `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:""`

	Database  database.Config `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Upload    UploadConfig    `yaml:"upload"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Assistant AssistantConfig `yaml:"assistant"`
}

// AuthConfig holds session and token settings
type AuthConfig struct {
	SessionSecret        string        `yaml:"-" env:"SESSION_SECRET"`
	JWTSecret            string        `yaml:"-" env:"JWT_SECRET"`
	CookieName           string        `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" env-default:"insightdash_session"`
	CookieSecure         bool          `yaml:"cookie_secure" env:"SESSION_COOKIE_SECURE" env-default:"false"`
	SessionTTL           time.Duration `yaml:"session_ttl" env:"SESSION_TTL" env-default:"168h"`
	SessionSweepInterval time.Duration `yaml:"session_sweep_interval" env:"SESSION_SWEEP_INTERVAL" env-default:"15m"`
	LoginRateLimit       int           `yaml:"login_rate_limit" env:"LOGIN_RATE_LIMIT" env-default:"10"`
	LoginRateWindow      time.Duration `yaml:"login_rate_window" env:"LOGIN_RATE_WINDOW" env-default:"1m"`
}

// UploadConfig holds spreadsheet ingestion settings
type UploadConfig struct {
	Dir      string `yaml:"dir" env:"UPLOAD_DIR" env-default:"uploads"`
	MaxBytes int64  `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES" env-default:"52428800"`
	Workers  int    `yaml:"workers" env:"INGEST_WORKERS" env-default:"2"`
}

// DashboardConfig holds aggregate cache settings
type DashboardConfig struct {
	CacheTTL     time.Duration `yaml:"cache_ttl" env:"DASHBOARD_CACHE_TTL" env-default:"60s"`
	LiveInterval time.Duration `yaml:"live_interval" env:"DASHBOARD_LIVE_INTERVAL" env-default:"5s"`
}

// AssistantConfig holds the OpenAI-compatible collaborator settings
type AssistantConfig struct {
	APIKey           string        `yaml:"-" env:"ASSISTANT_API_KEY"`
	BaseURL          string        `yaml:"base_url" env:"ASSISTANT_BASE_URL" env-default:""`
	Model            string        `yaml:"model" env:"ASSISTANT_MODEL" env-default:"gpt-4o-mini"`
	Timeout          time.Duration `yaml:"timeout" env:"ASSISTANT_TIMEOUT" env-default:"30s"`
	BreakerThreshold int           `yaml:"breaker_threshold" env:"ASSISTANT_BREAKER_THRESHOLD" env-default:"5"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" env:"ASSISTANT_BREAKER_COOLDOWN" env-default:"30s"`
}

// IsAvailable reports whether an assistant endpoint is configured
func (a *AssistantConfig) IsAvailable() bool {
	return a.APIKey != ""
}

const devSecret = "dev-secret-change-me"

// Load reads configuration from the environment, layered over CONFIG_FILE when set
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.ServerPort)
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}

	if c.IsProduction() {
		if c.Auth.SessionSecret == "" || c.Auth.JWTSecret == "" {
			return errors.New("SESSION_SECRET and JWT_SECRET are required in production")
		}
		return nil
	}

	if c.Auth.SessionSecret == "" {
		c.Auth.SessionSecret = devSecret
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = devSecret
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Usage describes every supported environment variable
func Usage() (string, error) {
	return cleanenv.GetDescription(&Config{}, nil)
}
