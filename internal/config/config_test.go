package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ANON_COUNTER_STORE", "")
	t.Setenv("CHAT_ANON_LIMIT", "")
	t.Setenv("ANALYZE_ANON_LIMIT", "")
	t.Setenv("LLM_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreCookie, cfg.AnonStore)
	assert.Equal(t, 5, cfg.ChatAnonLimit)
	assert.Equal(t, 3, cfg.AnalyzeAnonLimit)
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout)
	assert.Equal(t, "gemma2-9b-it", cfg.LLMModel)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ANON_COUNTER_STORE", "REDIS")
	t.Setenv("CHAT_ANON_LIMIT", "4")
	t.Setenv("ANALYZE_ANON_LIMIT", "4")
	t.Setenv("INFERENCE_TIMEOUT", "5s")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.AnonStore)
	assert.Equal(t, 4, cfg.ChatAnonLimit)
	assert.Equal(t, 4, cfg.AnalyzeAnonLimit)
	assert.Equal(t, 5*time.Second, cfg.InferenceTimeout)
	assert.True(t, cfg.CookieSecure)
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("CHAT_ANON_LIMIT", "five")
	t.Setenv("LLM_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.ChatAnonLimit)
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AnonStore:      StoreCookie,
			JWTSecret:      "s",
			MaxUploadBytes: 1,
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("unknown store", func(t *testing.T) {
		cfg := valid()
		cfg.AnonStore = "memcached"
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative limit", func(t *testing.T) {
		cfg := valid()
		cfg.AnalyzeAnonLimit = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty secret", func(t *testing.T) {
		cfg := valid()
		cfg.JWTSecret = ""
		assert.Error(t, cfg.Validate())
	})
}
