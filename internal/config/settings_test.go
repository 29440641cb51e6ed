package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	got, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, DefaultSettings(), got)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "cog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`url: https://cog.example.com
threads: 4
download_retry_cooldown: 1.5
checkpoint_flush_interval: 5s
`), 0o644))

	t.Setenv("COG_BULK_THREADS", "8")
	t.Setenv("COG_BULK_TOKEN", "abc")

	got, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, "https://cog.example.com", got.URL)
	require.Equal(t, 8, got.Threads)
	require.Equal(t, "abc", got.Token)
	require.InDelta(t, 1.5, got.DownloadRetryCooldown, 1e-9)
	require.Equal(t, 5*time.Second, got.CheckpointFlushInterval)
	require.Equal(t, DefaultSettings().DownloadMaxRetries, got.DownloadMaxRetries)
}

func TestLoad_SearchesConfigDir(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".cog-bulk"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".cog-bulk", "config.yaml"), []byte("username: alice\n"), 0o644))

	got, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)
}

func TestLoad_Errors(t *testing.T) {
	dir := isolate(t)

	_, err := Load(viper.New(), filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("threads: 0\n"), 0o644))
	_, err = Load(viper.New(), bad)
	require.ErrorContains(t, err, "threads")
}

func TestSettings_SaveOmitsPassword(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "saved", "config.yaml")

	s := DefaultSettings()
	s.URL = "https://cog.example.com"
	s.Username = "alice"
	s.Password = "hunter2"
	s.Token = "tok"
	s.Threads = 3
	s.RequestTimeout = 90 * time.Second
	require.NoError(t, s.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "hunter2")

	got, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, "tok", got.Token)
	require.Equal(t, "alice", got.Username)
	require.Empty(t, got.Password)
	require.Equal(t, 3, got.Threads)
	require.Equal(t, 90*time.Second, got.RequestTimeout)
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{"no url", func(s *Settings) { s.URL = "" }, "url"},
		{"no threads", func(s *Settings) { s.Threads = 0 }, "threads"},
		{"negative request retries", func(s *Settings) { s.RequestRetryMax = -1 }, "request_retry_max"},
		{"no download attempts", func(s *Settings) { s.DownloadMaxRetries = 0 }, "download_max_retries"},
		{"shrinking cooldown", func(s *Settings) { s.DownloadRetryExponent = 0.5 }, "download_retry_exponent"},
		{"no flush batch", func(s *Settings) { s.CheckpointFlushEvery = 0 }, "checkpoint_flush_every"},
	}

	require.NoError(t, DefaultSettings().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			require.ErrorContains(t, s.Validate(), tt.want)
		})
	}
}

func TestSettings_ToClientConfig(t *testing.T) {
	s := DefaultSettings()
	s.Token = "tok"
	cfg := s.ToClientConfig(nil)
	require.Equal(t, s.URL, cfg.URL)
	require.Equal(t, "tok", cfg.Token)
	require.Equal(t, s.RequestRetryMax, cfg.RetryMax)
	require.Equal(t, s.RequestTimeout, cfg.Timeout)
}
