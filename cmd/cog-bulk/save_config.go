package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/handiism/cog-bulk/internal/bulk"
	"github.com/handiism/cog-bulk/internal/config"
)

func newSaveConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save-config",
		Short: "Authenticate and save the current settings",
		Long: `Authenticates with the current credentials and writes the settings,
including the obtained token, to a config file so later commands need no
credentials. The password is never saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("output")

			client, err := a.client(cmd.Context())
			if err != nil {
				return err
			}

			settings := *a.settings
			settings.Token = client.Token()
			settings.Username = ""
			settings.Password = ""
			if err := settings.Save(path); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), render(bulk.LevelSuccess, fmt.Sprintf("Saved settings to %s", path)))
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", filepath.Join(config.DefaultConfigDir(), "config.yaml"), "config file to write")
	return cmd
}
