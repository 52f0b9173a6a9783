package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every search path at an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Chdir(dir)
	return dir
}

func TestNewLoader(t *testing.T) {
	assert.Same(t, viper.GetViper(), NewLoader().GetViper())
	assert.NotNil(t, NewLoaderWithViper(nil).GetViper())
}

func TestLoadWithNoConfigFile(t *testing.T) {
	isolate(t)

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	require.NoError(t, err)
	assertDefaults(t, cfg)
}

func assertDefaults(t *testing.T, cfg *Config) {
	t.Helper()
	want := DefaultConfig()
	assert.Equal(t, want.LogLevel, cfg.LogLevel)
	assert.Equal(t, want.Scan, cfg.Scan)
	assert.Equal(t, want.Output, cfg.Output)
	assert.Equal(t, want.Batch.Workers, cfg.Batch.Workers)
	assert.Empty(t, cfg.Batch.Include)
	assert.Equal(t, want.PDF, cfg.PDF)
	assert.Equal(t, want.Server, cfg.Server)
	assert.Equal(t, want.History, cfg.History)
}

func TestLoadFromSearchPath(t *testing.T) {
	dir := isolate(t)
	content := "log_level: debug\nscan:\n  try_harder: true\n  binarizer: fixed\n  threshold: 100\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "qrscan.yaml"), []byte(content), 0o600))

	l := NewLoaderWithViper(viper.New())
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Scan.TryHarder)
	assert.Equal(t, "fixed", cfg.Scan.Binarizer)
	assert.Equal(t, 100, cfg.Scan.Threshold)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "qrscan.yaml", filepath.Base(l.GetConfigFileUsed()))
}

func TestLoadFromXDGDirectory(t *testing.T) {
	dir := isolate(t)
	xdg := filepath.Join(dir, "xdg", "qrscan")
	require.NoError(t, os.MkdirAll(xdg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(xdg, "qrscan.yaml"), []byte("output:\n  format: json\n"), 0o600))

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestEnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("QRSCAN_SCAN_INVERT_RETRY", "true")
	t.Setenv("QRSCAN_SERVER_PORT", "9090")
	t.Setenv("QRSCAN_HISTORY_PATH", "/tmp/h.db")

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	require.NoError(t, err)
	assert.True(t, cfg.Scan.InvertRetry)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/h.db", cfg.History.Path)
}

func TestLoadWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := "batch:\n  workers: 3\n  include: [\"*.png\", \"*.jpg\"]\npdf:\n  pages: \"1-2\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Batch.Workers)
	assert.Equal(t, []string{"*.png", "*.jpg"}, cfg.Batch.Include)
	assert.Equal(t, "1-2", cfg.PDF.Pages)
}

func TestLoadWithFileErrors(t *testing.T) {
	_, err := NewLoaderWithViper(viper.New()).LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("scan: [unterminated"), 0o600))
	_, err = NewLoaderWithViper(viper.New()).LoadWithFile(broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("log_level: loud\n"), 0o600))
	_, err = NewLoaderWithViper(viper.New()).LoadWithFile(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFileWithoutValidation(invalid)
	require.NoError(t, err)
	assert.Equal(t, "loud", cfg.LogLevel)
}

func TestGenerateDefaultConfigFileRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "qrscan.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "try_harder: false")
	assert.Contains(t, string(data), "  binarizer: area")

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assertDefaults(t, cfg)
}

func TestLoaderAccessors(t *testing.T) {
	l := NewLoaderWithViper(viper.New())
	l.Set("output.format", "csv")
	assert.Equal(t, "csv", l.GetString("output.format"))
	assert.Equal(t, "csv", l.Get("output.format"))
	assert.Contains(t, l.GetResolvedConfig(), "output")

	var buf bytes.Buffer
	l.PrintConfigInfo(&buf)
	assert.Contains(t, buf.String(), "Environment prefix: QRSCAN")
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("HOME", "/home/u")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, []string{".", "/home/u", "/etc/qrscan", "/xdg/qrscan"}, GetConfigSearchPaths())
}
