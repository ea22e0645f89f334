package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range keys {
		t.Setenv(strings.ToUpper(key), "")
		os.Unsetenv(strings.ToUpper(key))
	}
	t.Setenv(ConfigFileEnv, "")
	os.Unsetenv(ConfigFileEnv)
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("JWT_SIGNING_KEY=from-dotenv\nSTORAGE_BACKEND=sqlite\n"), 0o600))

	yamlFile := filepath.Join(dir, "taskvibe.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte("storage_backend: mongo\nnum_event_consumers: 4\ntimezone: UTC\n"), 0o600))
	t.Setenv(ConfigFileEnv, yamlFile)
	t.Setenv("SERVER_URL", "http://127.0.0.1:9090")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9090", cfg.ServerURL)
	assert.Equal(t, "from-dotenv", cfg.JWTSigningKey)
	// The environment, .env included, wins over the YAML file.
	assert.Equal(t, "sqlite", cfg.StorageBackend)
	assert.Equal(t, 4, cfg.NumEventConsumers)
	assert.Equal(t, 1, cfg.NumEventProducers)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JWTSigningKey = "key"
	assert.NoError(t, cfg.Validate())

	bad := *cfg
	bad.JWTSigningKey = ""
	assert.ErrorContains(t, bad.Validate(), "JWT_SIGNING_KEY")

	bad = *cfg
	bad.StorageBackend = "postgres"
	assert.ErrorContains(t, bad.Validate(), "STORAGE_BACKEND")

	bad = *cfg
	bad.StorageBackend = "mongo"
	assert.ErrorContains(t, bad.Validate(), "MONGODB_URI")

	bad = *cfg
	bad.ServerURL = "localhost"
	assert.ErrorContains(t, bad.Validate(), "SERVER_URL")

	bad = *cfg
	bad.Timezone = "Mars/Olympus"
	assert.ErrorContains(t, bad.Validate(), "TIMEZONE")

	bad = *cfg
	bad.AuthPassphrase = "short"
	assert.ErrorContains(t, bad.Validate(), "AUTH_PASSPHRASE")

	good := *cfg
	good.AuthPassphrase = "correct horse 1"
	assert.NoError(t, good.Validate())
}

func TestStorageOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageBackend = "sqlite"
	cfg.SQLitePath = "/tmp/taskvibe.db"
	opts := cfg.StorageOptions()
	assert.Equal(t, "sqlite", opts.Backend)
	assert.Equal(t, "/tmp/taskvibe.db", opts.SQLitePath)
}
