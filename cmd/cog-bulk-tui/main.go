// Package main provides the cog-bulk terminal user interface.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/handiism/cog-bulk/internal/api"
	"github.com/handiism/cog-bulk/internal/config"
	"github.com/handiism/cog-bulk/internal/logger"
	"github.com/handiism/cog-bulk/internal/tui"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	flags := pflag.NewFlagSet("cog-bulk-tui", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to config file (default ~/.cog-bulk/config.yaml)")
	_ = flags.Parse(os.Args[1:])

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	settings, err := config.Load(viper.New(), configPath)
	if err != nil {
		return err
	}

	// Log output would tear the alternate screen, so the TUI reports
	// through its own log tail only.
	log := logger.NewNoopLogger()

	client := api.NewClient(settings.ToClientConfig(log))
	if err := client.Authenticate(context.Background()); err != nil {
		return err
	}

	return tui.Run(client, settings, log)
}
