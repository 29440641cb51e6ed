package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/handiism/cog-bulk/internal/api"
	"github.com/handiism/cog-bulk/internal/bulk"
	"github.com/handiism/cog-bulk/internal/config"
	"github.com/handiism/cog-bulk/internal/logger"
)

// app carries what every command needs once the root flags are parsed.
type app struct {
	v          *viper.Viper
	configPath string

	settings *config.Settings
	log      logger.Logger
}

// newRootCommand enables all children commands to read flags from CLI flags,
// environment variables prefixed with COG_BULK, or config.yaml (in that order).
func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "cog-bulk",
		Short: "Bulk operations against a COG assignment server",
		Long: `cog-bulk downloads submission files, tabulates run results and deletes
objects on a COG assignment server, issuing many requests concurrently.

Settings are read from flags, COG_BULK_* environment variables and
~/.cog-bulk/config.yaml (in that order of precedence).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	bindRootFlags(root, a)

	root.AddCommand(
		newDownloadCommand(a),
		newResultsCommand(a),
		newCleanupCommand(a),
		newSaveConfigCommand(a),
	)
	return root
}

func (a *app) load() error {
	settings, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	log, err := settings.NewLogger()
	if err != nil {
		return err
	}
	a.settings = settings
	a.log = log
	return nil
}

func (a *app) client(ctx context.Context) (*api.Client, error) {
	client := api.NewClient(a.settings.ToClientConfig(a.log))
	if err := client.Authenticate(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func (a *app) runner(ctx context.Context, out io.Writer, verbose bool) (*bulk.Runner, *printer, error) {
	client, err := a.client(ctx)
	if err != nil {
		return nil, nil, err
	}
	p := newPrinter(out, verbose)
	return bulk.NewRunner(client, a.settings, a.log, p.event), p, nil
}
