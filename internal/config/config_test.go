package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		GraphBackend:      "memory",
		GraphTimeout:      time.Second,
		GenerationTimeout: time.Second,
		ChunkMaxWords:     400,
		ChunkOverlap:      50,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.GraphBackend = "sqlite" }, wantErr: "GRAPH_BACKEND"},
		{name: "zero chunk size", mutate: func(c *Config) { c.ChunkMaxWords = 0 }, wantErr: "CHUNK_MAX_WORDS"},
		{name: "overlap too large", mutate: func(c *Config) { c.ChunkOverlap = 400 }, wantErr: "CHUNK_OVERLAP"},
		{name: "negative overlap", mutate: func(c *Config) { c.ChunkOverlap = -1 }, wantErr: "CHUNK_OVERLAP"},
		{name: "short admin secret", mutate: func(c *Config) { c.AdminJWTSecret = "short" }, wantErr: "ADMIN_JWT_SECRET"},
		{name: "long admin secret", mutate: func(c *Config) { c.AdminJWTSecret = strings.Repeat("k", 32) }},
		{name: "zero graph timeout", mutate: func(c *Config) { c.GraphTimeout = 0 }, wantErr: "GRAPH_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAdminEnabled(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.AdminEnabled())

	cfg.RedisURL = "localhost:6379"
	assert.False(t, cfg.AdminEnabled())

	cfg.AdminJWTSecret = strings.Repeat("k", 32)
	assert.True(t, cfg.AdminEnabled())
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " map, ,region ,")
	assert.Equal(t, []string{"map", "region"}, getEnvList("TEST_LIST", nil))

	t.Setenv("TEST_LIST", " , ")
	assert.Equal(t, []string{"x"}, getEnvList("TEST_LIST", []string{"x"}))

	assert.Equal(t, []string{"y"}, getEnvList("TEST_LIST_UNSET", []string{"y"}))
}

func TestGetEnvTypedFallbacks(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	assert.Equal(t, 7, getEnvInt("TEST_INT", 7))
	t.Setenv("TEST_INT", "12")
	assert.Equal(t, 12, getEnvInt("TEST_INT", 7))

	t.Setenv("TEST_BOOL", "false")
	assert.False(t, getEnvBool("TEST_BOOL", true))

	t.Setenv("TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DUR", time.Second))
	t.Setenv("TEST_DUR", "soon")
	assert.Equal(t, time.Second, getEnvDuration("TEST_DUR", time.Second))
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GRAPH_BACKEND", "Memory")
	for _, key := range []string{"ADMIN_JWT_SECRET", "KG_VERBS", "ANSWER_CACHE_TTL", "CHUNK_MAX_WORDS", "CHUNK_OVERLAP", "GRAPH_TIMEOUT", "GENERATION_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.GraphBackend)
	assert.Equal(t, DefaultKGVerbs, cfg.KGVerbs)
	assert.Equal(t, 6*time.Hour, cfg.AnswerCacheTTL)
}

func TestRedisOptions(t *testing.T) {
	opt, err := RedisOptions(&Config{RedisURL: "redis://:secret@cache:6380/2"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)

	opt, err = RedisOptions(&Config{RedisURL: "localhost:6379", RedisDB: 1})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opt.Addr)
	assert.Equal(t, 1, opt.DB)
}
