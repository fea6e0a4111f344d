// Package config loads server and client settings from environment variables
// and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all server configuration.
type Config struct {
	Port           string
	PostgresDSN    string
	MongoURI       string
	MongoDB        string
	RedisAddr      string
	RedisPassword  string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	CORSOrigins    []string
	LogLevel       string
	LogFormat      string
	Seed           bool
	MetricsEnabled bool
	SearchCacheTTL time.Duration
}

// ClientConfig holds blogctl settings.
type ClientConfig struct {
	APIBaseURL  string
	SessionDB   string
	HTTPTimeout time.Duration
	LogLevel    string
	LogFormat   string
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DB", "blog")
	v.SetDefault("REDIS_ADDR", "redis:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("MINIO_ENDPOINT", "minio:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "blog-media")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SEED", false)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("SEARCH_CACHE_TTL", "30s")
}

// Load reads the server configuration. Environment variables win over the
// file named by CONFIG_FILE.
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	setServerDefaults(v)

	cfg := &Config{
		Port:           v.GetString("PORT"),
		PostgresDSN:    v.GetString("POSTGRES_DSN"),
		MongoURI:       v.GetString("MONGO_URI"),
		MongoDB:        v.GetString("MONGO_DB"),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:    v.GetString("MINIO_BUCKET"),
		MinioUseSSL:    v.GetBool("MINIO_USE_SSL"),
		CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
		Seed:           v.GetBool("SEED"),
		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
		SearchCacheTTL: v.GetDuration("SEARCH_CACHE_TTL"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the required connection settings are present.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.PostgresDSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required"))
	}
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.MinioBucket == "" {
		errs = append(errs, errors.New("MINIO_BUCKET is required"))
	}
	if c.SearchCacheTTL <= 0 {
		errs = append(errs, errors.New("SEARCH_CACHE_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// LoadClient reads the blogctl configuration.
func LoadClient() (*ClientConfig, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("SESSION_DB", "blogctl.db")
	v.SetDefault("HTTP_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "warn")
	v.SetDefault("LOG_FORMAT", "console")

	cfg := &ClientConfig{
		APIBaseURL:  strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		SessionDB:   v.GetString("SESSION_DB"),
		HTTPTimeout: v.GetDuration("HTTP_TIMEOUT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFormat:   v.GetString("LOG_FORMAT"),
	}
	if cfg.APIBaseURL == "" {
		return nil, errors.New("API_BASE_URL is required")
	}
	if cfg.SessionDB == "" {
		return nil, errors.New("SESSION_DB is required")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
