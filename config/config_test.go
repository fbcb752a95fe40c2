package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, 24*time.Hour, cfg.JwtTTL)
	assert.True(t, cfg.UsesInsecureSecret())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "app.yaml")
	content := []byte("http_port: 9090\njwt_secret: file-secret\ndatabase:\n  driver: postgres\n  dsn: host=db\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("BLOGDESK_HTTP_PORT", "9191")
	t.Setenv("BLOGDESK_DATABASE_DSN", "host=override")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "host=override", cfg.Database.DSN)
	assert.Equal(t, "file-secret", cfg.JwtSecret)
	assert.False(t, cfg.UsesInsecureSecret())
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BLOGDESK_SERVICE_NAME=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("BLOGDESK_SERVICE_NAME") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.ServiceName)
}

func TestValidate(t *testing.T) {
	t.Run("unknown database driver", func(t *testing.T) {
		cfg := Config{Database: DatabaseConfig{Driver: "oracle"}, Storage: StorageConfig{Driver: "local"}, JwtTTL: time.Hour}
		assert.ErrorContains(t, cfg.Validate(), "unsupported database driver")
	})

	t.Run("minio without endpoint", func(t *testing.T) {
		cfg := Config{Database: DatabaseConfig{Driver: "sqlite"}, Storage: StorageConfig{Driver: "minio"}, JwtTTL: time.Hour}
		assert.ErrorContains(t, cfg.Validate(), "endpoint")
	})

	t.Run("valid", func(t *testing.T) {
		cfg := Config{Database: DatabaseConfig{Driver: "mysql"}, Storage: StorageConfig{Driver: "local"}, JwtTTL: time.Hour}
		assert.NoError(t, cfg.Validate())
	})
}
