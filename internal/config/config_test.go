package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://blog@localhost/blog")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("SEARCH_CACHE_TTL", "2m")
	t.Setenv("SEED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "blog", cfg.MongoDB)
	require.Equal(t, "redis:6379", cfg.RedisAddr)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	require.Equal(t, 2*time.Minute, cfg.SearchCacheTTL)
	require.True(t, cfg.Seed)
	require.True(t, cfg.MetricsEnabled)
	require.False(t, cfg.MinioUseSSL)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("MONGO_URI", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "POSTGRES_DSN is required")
	require.Contains(t, err.Error(), "MONGO_URI is required")
}

func TestLoadClient(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://api.example/")
	t.Setenv("SESSION_DB", "/tmp/session.db")

	cfg, err := LoadClient()
	require.NoError(t, err)
	require.Equal(t, "http://api.example", cfg.APIBaseURL)
	require.Equal(t, "/tmp/session.db", cfg.SessionDB)
	require.Equal(t, 15*time.Second, cfg.HTTPTimeout)
}
