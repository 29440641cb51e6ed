package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/handiism/cog-bulk/internal/api"
	"github.com/handiism/cog-bulk/internal/logger"
	"github.com/handiism/cog-bulk/internal/taskpool"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "COG_BULK"

// Keys shared by the config file, the environment and command flags.
const (
	KeyURL      = "url"
	KeyToken    = "token"
	KeyUsername = "username"
	KeyPassword = "password"

	KeyThreads             = "threads"
	KeyRequestTimeout      = "request_timeout"
	KeyRequestRetryMax     = "request_retry_max"
	KeyRequestRetryWaitMin = "request_retry_wait_min"
	KeyRequestRetryWaitMax = "request_retry_wait_max"

	KeyDownloadsPath         = "downloads_path"
	KeyDownloadMaxRetries    = "download_max_retries"
	KeyDownloadRetryCooldown = "download_retry_cooldown"
	KeyDownloadRetryExponent = "download_retry_exponent"

	KeyCheckpointFlushEvery    = "checkpoint_flush_every"
	KeyCheckpointFlushInterval = "checkpoint_flush_interval"

	KeyLogFormat = "log_format"
	KeyLogLevel  = "log_level"
)

// Settings holds all configuration options.
type Settings struct {
	// Connection
	URL      string `mapstructure:"url"`
	Token    string `mapstructure:"token"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// Remote calls
	Threads             int           `mapstructure:"threads"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	RequestRetryMax     int           `mapstructure:"request_retry_max"`
	RequestRetryWaitMin time.Duration `mapstructure:"request_retry_wait_min"`
	RequestRetryWaitMax time.Duration `mapstructure:"request_retry_wait_max"`

	// Download settings
	DownloadsPath         string  `mapstructure:"downloads_path"`
	DownloadMaxRetries    int     `mapstructure:"download_max_retries"`
	DownloadRetryCooldown float64 `mapstructure:"download_retry_cooldown"`
	DownloadRetryExponent float64 `mapstructure:"download_retry_exponent"`

	// Resume
	CheckpointFlushEvery    int           `mapstructure:"checkpoint_flush_every"`
	CheckpointFlushInterval time.Duration `mapstructure:"checkpoint_flush_interval"`

	// Logging
	LogFormat string `mapstructure:"log_format"` // text, json
	LogLevel  string `mapstructure:"log_level"`  // none, debug, info, warn, error
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		URL: "http://localhost:8000",

		Threads:             taskpool.DefaultSize(),
		RequestTimeout:      60 * time.Second,
		RequestRetryMax:     3,
		RequestRetryWaitMin: 500 * time.Millisecond,
		RequestRetryWaitMax: 10 * time.Second,

		DownloadsPath:         ".",
		DownloadMaxRetries:    7,
		DownloadRetryCooldown: 0.2,
		DownloadRetryExponent: 4.0,

		CheckpointFlushEvery:    25,
		CheckpointFlushInterval: 2 * time.Second,

		LogFormat: "text",
		LogLevel:  "warn",
	}
}

// DefaultConfigDir is where Load looks for config.yaml before the working
// directory.
func DefaultConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".cog-bulk")
}

// values flattens the settings into viper keys.
func (s *Settings) values() map[string]any {
	return map[string]any{
		KeyURL:      s.URL,
		KeyToken:    s.Token,
		KeyUsername: s.Username,
		KeyPassword: s.Password,

		KeyThreads:             s.Threads,
		KeyRequestTimeout:      s.RequestTimeout.String(),
		KeyRequestRetryMax:     s.RequestRetryMax,
		KeyRequestRetryWaitMin: s.RequestRetryWaitMin.String(),
		KeyRequestRetryWaitMax: s.RequestRetryWaitMax.String(),

		KeyDownloadsPath:         s.DownloadsPath,
		KeyDownloadMaxRetries:    s.DownloadMaxRetries,
		KeyDownloadRetryCooldown: s.DownloadRetryCooldown,
		KeyDownloadRetryExponent: s.DownloadRetryExponent,

		KeyCheckpointFlushEvery:    s.CheckpointFlushEvery,
		KeyCheckpointFlushInterval: s.CheckpointFlushInterval.String(),

		KeyLogFormat: s.LogFormat,
		KeyLogLevel:  s.LogLevel,
	}
}

// SetDefaults registers the default of every key on v. AutomaticEnv only
// resolves keys viper already knows about, so this must run before Load
// unmarshals.
func SetDefaults(v *viper.Viper) {
	for key, val := range DefaultSettings().values() {
		v.SetDefault(key, val)
	}
}

// Load resolves settings from, in increasing precedence, defaults, the
// config file, COG_BULK_* environment variables and any flags already bound
// to v. An empty path searches DefaultConfigDir and the working directory
// for config.yaml; a missing file there is not an error.
func Load(v *viper.Viper, path string) (*Settings, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" || !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	settings := DefaultSettings()
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate reports the first setting that cannot be used.
func (s *Settings) Validate() error {
	switch {
	case s.URL == "":
		return errors.New("url must be set")
	case s.Threads < 1:
		return fmt.Errorf("threads must be positive, got %d", s.Threads)
	case s.RequestRetryMax < 0:
		return fmt.Errorf("request_retry_max must not be negative, got %d", s.RequestRetryMax)
	case s.DownloadMaxRetries < 1:
		return fmt.Errorf("download_max_retries must be at least 1, got %d", s.DownloadMaxRetries)
	case s.DownloadRetryCooldown < 0:
		return fmt.Errorf("download_retry_cooldown must not be negative, got %g", s.DownloadRetryCooldown)
	case s.DownloadRetryExponent < 1:
		return fmt.Errorf("download_retry_exponent must be at least 1, got %g", s.DownloadRetryExponent)
	case s.CheckpointFlushEvery < 1:
		return fmt.Errorf("checkpoint_flush_every must be positive, got %d", s.CheckpointFlushEvery)
	}
	return nil
}

// Save writes settings to a config file. The format follows the file
// extension (yaml, json or toml). The password is never written; save a
// token instead.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	v := viper.New()
	for key, val := range s.values() {
		if key == KeyPassword {
			continue
		}
		v.Set(key, val)
	}
	return v.WriteConfigAs(path)
}

// ToClientConfig converts settings to the API client configuration.
func (s *Settings) ToClientConfig(log logger.Logger) api.Config {
	return api.Config{
		URL:          s.URL,
		Token:        s.Token,
		Username:     s.Username,
		Password:     s.Password,
		Timeout:      s.RequestTimeout,
		RetryMax:     s.RequestRetryMax,
		RetryWaitMin: s.RequestRetryWaitMin,
		RetryWaitMax: s.RequestRetryWaitMax,
		Logger:       log,
	}
}

// NewLogger builds the logger selected by LogFormat and LogLevel.
func (s *Settings) NewLogger() (*logger.ZapLogger, error) {
	return logger.NewLogger(s.LogFormat, s.LogLevel)
}
