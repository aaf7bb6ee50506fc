package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"akatsuki/api/internal/config"
)

func bootEnv(t *testing.T) string {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := t.TempDir()
	t.Setenv("APP_ENV", "development")
	t.Setenv("LOG_DIR", dir)
	t.Setenv("MYSQL_USER", "app")
	t.Setenv("MYSQL_DB", "akatsuki")
	t.Setenv("MYSQL_PASSWORD", "")
	t.Setenv("MAIL_PASSWORD", "")
	t.Setenv(config.EncryptKeyEnv, "")
	return dir
}

func TestRun_InvalidConfigReturnsError(t *testing.T) {
	bootEnv(t)
	t.Setenv("MYSQL_PORT", "33O6")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRun_UnsealFailureReturnsAfterLogging(t *testing.T) {
	dir := bootEnv(t)
	t.Setenv("MYSQL_PORT", "")
	t.Setenv("MYSQL_PASSWORD", config.SealedPrefix+"bm90LWEtcmVhbC1ibG9i")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not unseal secrets")

	// The boot line reached the log file before run returned.
	files, globErr := filepath.Glob(filepath.Join(dir, "api*"))
	require.NoError(t, globErr)
	require.NotEmpty(t, files)
	data, readErr := os.ReadFile(files[0])
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "Booting Akatsuki API")
}
