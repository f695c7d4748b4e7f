package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"PROVIDER", "MODEL", "BASE_URL", "API_KEY", "TEMPERATURE", "MAX_TOKENS", "LOG_LEVEL", "LOG_FORMAT", "WORKFLOWS", "APP", "USER"} {
		t.Setenv(EnvPrefix+"_"+k, "")
		require.NoError(t, os.Unsetenv(EnvPrefix+"_"+k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	s, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "ark", s.Provider)
	assert.Equal(t, "doubao-seed-1-6-251015", s.Model)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "console", s.LogFormat)
	assert.Equal(t, "courier", s.App)
	assert.Equal(t, "user_123", s.User)
	assert.Nil(t, s.Temperature)
	assert.Nil(t, s.MaxTokens)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("COURIER_PROVIDER", "Gemini")
	t.Setenv("COURIER_TEMPERATURE", "0.3")
	t.Setenv("COURIER_MAX_TOKENS", "256")
	t.Setenv("COURIER_LOG_FORMAT", "JSON")

	s, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "google", s.Provider)
	assert.Equal(t, "gemini-2.0-flash", s.Model)
	require.NotNil(t, s.Temperature)
	assert.InDelta(t, 0.3, *s.Temperature, 1e-9)
	require.NotNil(t, s.MaxTokens)
	assert.Equal(t, 256, *s.MaxTokens)
	assert.Equal(t, "json", s.LogFormat)
}

func TestLoad_ConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: openai\nmodel: gpt-4o\nbase_url: http://localhost:8080\nuser: alice\n"), 0o644))

	s, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "openai", s.Provider)
	assert.Equal(t, "gpt-4o", s.Model)
	assert.Equal(t, "http://localhost:8080", s.BaseURL)
	assert.Equal(t, "alice", s.User)

	_, err = Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"temperature": {"COURIER_TEMPERATURE", "3"},
		"max tokens":  {"COURIER_MAX_TOKENS", "0"},
		"log level":   {"COURIER_LOG_LEVEL", "loud"},
		"provider":    {"COURIER_PROVIDER", "nowhere"},
		"base url":    {"COURIER_BASE_URL", "not a url"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			isolate(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load(New(), "")
			assert.Error(t, err)
		})
	}
}

func TestLoad_ProviderQualifiedModel(t *testing.T) {
	isolate(t)
	t.Setenv("COURIER_MODEL", "gemini/gemini-2.0-flash")

	s, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "google", s.Provider)
	assert.Equal(t, "gemini-2.0-flash", s.Model)
}

func TestLoad_ModelPrefixKeepsExplicitProvider(t *testing.T) {
	isolate(t)
	t.Setenv("COURIER_PROVIDER", "ark")
	t.Setenv("COURIER_MODEL", "openai/doubao-seed-1-6-251015")
	t.Setenv("COURIER_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")

	s, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "ark", s.Provider)
	assert.Equal(t, "doubao-seed-1-6-251015", s.Model)
	assert.Equal(t, "https://ark.cn-beijing.volces.com/api/v3", s.BaseURL)

	isolate(t)
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: doubao\nmodel: openai/doubao-seed-1-6-251015\n"), 0o644))
	s, err = Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "ark", s.Provider)
	assert.Equal(t, "doubao-seed-1-6-251015", s.Model)
}
