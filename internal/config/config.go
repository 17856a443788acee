package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server runtime behavior.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig contains the database connection settings.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	UseMock         bool          `yaml:"use_mock"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuthConfig groups API token and admin session settings.
type AuthConfig struct {
	TokenLifetime time.Duration `yaml:"token_lifetime"`
	Session       SessionConfig `yaml:"session"`
}

// SessionConfig controls the admin cookie session.
type SessionConfig struct {
	Lifetime     time.Duration `yaml:"lifetime"`
	CookieName   string        `yaml:"cookie_name"`
	CookieDomain string        `yaml:"cookie_domain"`
	CookieSecure bool          `yaml:"cookie_secure"`
}

// StorageConfig selects where uploaded recipe images are written.
type StorageConfig struct {
	Driver    string   `yaml:"driver"`
	MediaRoot string   `yaml:"media_root"`
	MediaURL  string   `yaml:"media_url"`
	S3        S3Config `yaml:"s3"`
}

// S3Config holds settings for an S3-compatible object store.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

// Load inspects the optional CONFIG_FILE and the environment and builds a
// Config value. Environment variables take precedence over the file.
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Server.Addr = firstNonEmpty(
		os.Getenv("SERVER_ADDR"),
		os.Getenv("ADDR"),
		cfg.Server.Addr,
		":8080",
	)

	cfg.Database.URL = firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("DB_URL"),
		cfg.Database.URL,
	)
	cfg.Database.MaxIdleConns = parseIntWithDefault(os.Getenv("DATABASE_MAX_IDLE_CONNS"), cfg.Database.MaxIdleConns)
	cfg.Database.MaxOpenConns = parseIntWithDefault(os.Getenv("DATABASE_MAX_OPEN_CONNS"), cfg.Database.MaxOpenConns)
	cfg.Database.ConnMaxLifetime = parseDurationWithDefault(os.Getenv("DATABASE_CONN_MAX_LIFETIME"), cfg.Database.ConnMaxLifetime)
	cfg.Database.ConnMaxIdleTime = parseDurationWithDefault(os.Getenv("DATABASE_CONN_MAX_IDLE_TIME"), cfg.Database.ConnMaxIdleTime)
	cfg.Database.UseMock = parseBoolWithDefault(os.Getenv("DATABASE_USE_MOCK"), cfg.Database.UseMock)

	cfg.Logging.Level = firstNonEmpty(os.Getenv("LOG_LEVEL"), cfg.Logging.Level, "info")
	cfg.Logging.Format = firstNonEmpty(os.Getenv("LOG_FORMAT"), cfg.Logging.Format, "text")

	cfg.Auth.TokenLifetime = parseDurationWithDefault(os.Getenv("AUTH_TOKEN_LIFETIME"), cfg.Auth.TokenLifetime)
	cfg.Auth.Session.Lifetime = parseDurationWithDefault(os.Getenv("SESSION_LIFETIME"), cfg.Auth.Session.Lifetime)
	cfg.Auth.Session.CookieName = firstNonEmpty(os.Getenv("SESSION_COOKIE_NAME"), cfg.Auth.Session.CookieName)
	cfg.Auth.Session.CookieDomain = firstNonEmpty(os.Getenv("SESSION_COOKIE_DOMAIN"), cfg.Auth.Session.CookieDomain)
	cfg.Auth.Session.CookieSecure = parseBoolWithDefault(os.Getenv("SESSION_COOKIE_SECURE"), cfg.Auth.Session.CookieSecure)

	cfg.Storage.Driver = strings.ToLower(firstNonEmpty(os.Getenv("STORAGE_DRIVER"), cfg.Storage.Driver, StorageDriverLocal))
	cfg.Storage.MediaRoot = firstNonEmpty(os.Getenv("MEDIA_ROOT"), cfg.Storage.MediaRoot, "media")
	cfg.Storage.MediaURL = firstNonEmpty(os.Getenv("MEDIA_URL"), cfg.Storage.MediaURL, "/media/")
	cfg.Storage.S3.Bucket = firstNonEmpty(os.Getenv("S3_BUCKET"), cfg.Storage.S3.Bucket)
	cfg.Storage.S3.Region = firstNonEmpty(os.Getenv("S3_REGION"), os.Getenv("AWS_REGION"), cfg.Storage.S3.Region, "us-east-1")
	cfg.Storage.S3.Endpoint = firstNonEmpty(os.Getenv("S3_ENDPOINT"), cfg.Storage.S3.Endpoint)
	cfg.Storage.S3.AccessKey = firstNonEmpty(os.Getenv("S3_ACCESS_KEY"), cfg.Storage.S3.AccessKey)
	cfg.Storage.S3.SecretKey = firstNonEmpty(os.Getenv("S3_SECRET_KEY"), cfg.Storage.S3.SecretKey)
	cfg.Storage.S3.UsePathStyle = parseBoolWithDefault(os.Getenv("S3_USE_PATH_STYLE"), cfg.Storage.S3.UsePathStyle)

	cfg.Metrics.Enabled = parseBoolWithDefault(os.Getenv("METRICS_ENABLED"), cfg.Metrics.Enabled)
	cfg.Metrics.Path = firstNonEmpty(os.Getenv("METRICS_PATH"), cfg.Metrics.Path, "/metrics")

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return Config{}, fmt.Errorf("server address must not be empty")
	}
	switch cfg.Storage.Driver {
	case StorageDriverLocal:
	case StorageDriverS3:
		if strings.TrimSpace(cfg.Storage.S3.Bucket) == "" {
			return Config{}, fmt.Errorf("s3 storage requires S3_BUCKET")
		}
	default:
		return Config{}, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		Auth: AuthConfig{
			TokenLifetime: 30 * 24 * time.Hour,
			Session: SessionConfig{
				Lifetime:     12 * time.Hour,
				CookieSecure: true,
			},
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func parseIntWithDefault(value string, def int) int {
	if strings.TrimSpace(value) == "" {
		return def
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}

func parseDurationWithDefault(value string, def time.Duration) time.Duration {
	if strings.TrimSpace(value) == "" {
		return def
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}

func parseBoolWithDefault(value string, def bool) bool {
	if strings.TrimSpace(value) == "" {
		return def
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}
