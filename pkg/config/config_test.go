package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Empty(t, cfg.Blink.APIServer)
	assert.Equal(t, "https://rest-{tier}.immedia-semi.com", cfg.Blink.RegionURL)
	assert.Equal(t, 30*time.Second, cfg.Blink.APITimeout)
	assert.Equal(t, 30*time.Minute, cfg.Poll.Interval)
	assert.Equal(t, 10*time.Second, cfg.Poll.RetryDelay)
	assert.Equal(t, "2015-04-19T23:11:20+0000", cfg.Poll.Since)
	assert.Equal(t, 1, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvUnprefixedNames(t *testing.T) {
	t.Setenv("EMAIL", "me@example.com")
	t.Setenv("PASSWORD", "hunter22")
	t.Setenv("SAVE_DIRECTORY", "/tmp/mirror")
	t.Setenv("BLINK_API_SERVER", "rest-prod.immedia-semi.com")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "me@example.com", cfg.Blink.Email)
	assert.Equal(t, "hunter22", cfg.Blink.Password)
	assert.Equal(t, "/tmp/mirror", cfg.Output.SaveDirectory)
	assert.Equal(t, "rest-prod.immedia-semi.com", cfg.Blink.APIServer)
	assert.NoError(t, cfg.ValidateCredentials())
}

// isolate keeps Load away from config and .env files of the machine running the tests
func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadWithoutAPIServerFailsCredentials(t *testing.T) {
	isolate(t)
	t.Setenv("EMAIL", "me@example.com")
	t.Setenv("PASSWORD", "hunter22")
	t.Setenv("SAVE_DIRECTORY", "/tmp/mirror")
	t.Setenv("BLINK_API_SERVER", "")
	t.Setenv("BLINKSYNC_API_SERVER", "")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.Blink.APIServer)
	err = cfg.ValidateCredentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BLINK_API_SERVER")
}

func TestLoadWithAPIServer(t *testing.T) {
	isolate(t)
	t.Setenv("EMAIL", "me@example.com")
	t.Setenv("PASSWORD", "hunter22")
	t.Setenv("SAVE_DIRECTORY", "/tmp/mirror")
	t.Setenv("BLINK_API_SERVER", "rest-prod.immedia-semi.com")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "rest-prod.immedia-semi.com", cfg.Blink.APIServer)
	assert.NoError(t, cfg.ValidateCredentials())
}

func TestLoadFromEnvPrefixedWins(t *testing.T) {
	t.Setenv("EMAIL", "old@example.com")
	t.Setenv("BLINKSYNC_EMAIL", "new@example.com")
	t.Setenv("BLINKSYNC_POLL_INTERVAL", "5m")
	t.Setenv("BLINKSYNC_CONCURRENT_DOWNLOADS", "4")
	t.Setenv("BLINKSYNC_METRICS_ENABLED", "true")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "new@example.com", cfg.Blink.Email)
	assert.Equal(t, 5*time.Minute, cfg.Poll.Interval)
	assert.Equal(t, 4, cfg.Download.ConcurrentDownloads)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("BLINKSYNC_CONCURRENT_DOWNLOADS", "many")
	t.Setenv("BLINKSYNC_RETRY_DELAY", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BLINKSYNC_CONCURRENT_DOWNLOADS")
	assert.Contains(t, err.Error(), "BLINKSYNC_RETRY_DELAY")
}

func TestValidateCredentialsPlaceholders(t *testing.T) {
	tests := []struct {
		name  string
		email string
		pass  string
		dir   string
		host  string
		want  string
	}{
		{"missing email", "", "pw", "/tmp", "h", "EMAIL"},
		{"x email", "X", "pw", "/tmp", "h", "EMAIL"},
		{"sample email", "Your Email Here", "pw", "/tmp", "h", "EMAIL"},
		{"sample password", "a@b.c", "Your Password Here", "/tmp", "h", "PASSWORD"},
		{"x directory", "a@b.c", "pw", "X", "h", "SAVE_DIRECTORY"},
		{"missing host", "a@b.c", "pw", "/tmp", "", "BLINK_API_SERVER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Blink.Email = tt.email
			cfg.Blink.Password = tt.pass
			cfg.Output.SaveDirectory = tt.dir
			cfg.Blink.APIServer = tt.host

			err := cfg.ValidateCredentials()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Download.ConcurrentDownloads = 11
	cfg.Poll.Interval = 0
	cfg.Logging.Level = "chatty"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrent downloads should not exceed 10")
	assert.Contains(t, err.Error(), "poll interval must be positive")
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
blink:
  email: file@example.com
  api_server: rest-prod.immedia-semi.com
output:
  save_directory: /srv/blink
poll:
  interval: 15m
download:
  concurrent_downloads: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "file@example.com", cfg.Blink.Email)
	assert.Equal(t, "/srv/blink", cfg.Output.SaveDirectory)
	assert.Equal(t, 15*time.Minute, cfg.Poll.Interval)
	assert.Equal(t, 2, cfg.Download.ConcurrentDownloads)
	// untouched keys keep their defaults
	assert.Equal(t, 10*time.Second, cfg.Poll.RetryDelay)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Blink.Email = "save@example.com"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded Config
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, "save@example.com", loaded.Blink.Email)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"save-directory":       "/data",
		"concurrent-downloads": 3,
		"poll-interval":        time.Minute,
		"metrics-address":      ":9999",
	})

	assert.Equal(t, "/data", cfg.Output.SaveDirectory)
	assert.Equal(t, 3, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, time.Minute, cfg.Poll.Interval)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9999", cfg.Metrics.Address)
}

func TestRedactedMasksPassword(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Blink.Password = "correcthorsebattery"

	red := cfg.Redacted()
	assert.Equal(t, "co...ry", red.Blink.Password)
	assert.Equal(t, "correcthorsebattery", cfg.Blink.Password)
}
