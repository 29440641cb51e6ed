package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/handiism/cog-bulk/internal/config"
	"github.com/handiism/cog-bulk/internal/model"
)

// mustBindPFlag attempts to bind a specific key to a pflag (as used by cobra) and panics
// if the binding fails with a non-nil error.
func mustBindPFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

// bindRootFlags binds the persistent flags to the equivalent config value
// being managed by viper.
func bindRootFlags(command *cobra.Command, a *app) {
	defaultConfig := config.DefaultSettings()
	flags := command.PersistentFlags()

	flags.StringVar(&a.configPath, "config", "", "config file (default is $HOME/.cog-bulk/config.yaml)")

	flags.String("url", defaultConfig.URL, "COG server URL")
	mustBindPFlag(a.v, config.KeyURL, flags.Lookup("url"))

	flags.String("token", "", "COG authentication token")
	mustBindPFlag(a.v, config.KeyToken, flags.Lookup("token"))

	flags.String("username", "", "COG username, exchanged for a token together with --password")
	mustBindPFlag(a.v, config.KeyUsername, flags.Lookup("username"))

	flags.String("password", "", "COG password")
	mustBindPFlag(a.v, config.KeyPassword, flags.Lookup("password"))

	flags.Int("threads", defaultConfig.Threads, "number of concurrent requests")
	mustBindPFlag(a.v, config.KeyThreads, flags.Lookup("threads"))

	flags.Int("request-retries", defaultConfig.RequestRetryMax, "retries for failed requests")
	mustBindPFlag(a.v, config.KeyRequestRetryMax, flags.Lookup("request-retries"))

	flags.Duration("request-timeout", defaultConfig.RequestTimeout, "timeout for a single request")
	mustBindPFlag(a.v, config.KeyRequestTimeout, flags.Lookup("request-timeout"))

	flags.String("log-format", defaultConfig.LogFormat, "log format: text or json")
	mustBindPFlag(a.v, config.KeyLogFormat, flags.Lookup("log-format"))

	flags.String("log-level", defaultConfig.LogLevel, "log level: none, debug, info, warn or error")
	mustBindPFlag(a.v, config.KeyLogLevel, flags.Lookup("log-level"))
}

// idsFlag reads a repeatable uuid flag.
func idsFlag(cmd *cobra.Command, name string) ([]model.ID, error) {
	raw, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		return nil, err
	}
	ids, err := model.ParseIDs(raw)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return ids, nil
}
