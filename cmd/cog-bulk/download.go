package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/handiism/cog-bulk/internal/bulk"
	"github.com/handiism/cog-bulk/internal/config"
)

func newDownloadCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download-submissions",
		Short: "Download the files of matching submissions",
		Long: `Downloads every file of the selected submissions into

  <dest>/asn_<assignment>/usr_<user>/sub_<date>_<id>/<file>

Files that already exist, or that a previous run completed, are skipped
unless --overwrite is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := bulk.DownloadRequest{}
			var err error
			if req.Assignments, err = idsFlag(cmd, "asn-uid"); err != nil {
				return err
			}
			if req.Submissions, err = idsFlag(cmd, "sub-uid"); err != nil {
				return err
			}
			if req.Users, err = idsFlag(cmd, "usr-uid"); err != nil {
				return err
			}
			flags := cmd.Flags()
			req.Usernames, _ = flags.GetStringSlice("username")
			req.FullUUID, _ = flags.GetBool("full-uuid")
			req.FullName, _ = flags.GetBool("full-name")
			req.Overwrite, _ = flags.GetBool("overwrite")
			req.NoCheckpoint, _ = flags.GetBool("no-resume")
			req.Timing, _ = flags.GetBool("show-timing")
			verbose, _ := flags.GetBool("verbose")

			req.Dest = a.settings.DownloadsPath

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			runner, _, err := a.runner(ctx, out, verbose)
			if err != nil {
				return err
			}

			report, err := runner.DownloadSubmissions(ctx, req)
			if err != nil {
				return err
			}

			skipped := report.Count(bulk.SkippedExisting) + report.Count(bulk.SkippedCheckpoint)
			failed := len(report.Plan.Paths) - report.Count(bulk.Downloaded) - skipped
			summary(out, report.Failures, report.Plan.Orphans,
				fmt.Sprintf("Downloaded: %d, Skipped: %d, Failed: %d (%.2f MB)",
					report.Count(bulk.Downloaded), skipped, failed, float64(report.Bytes)/1024/1024),
				report.Elapsed)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSliceP("asn-uid", "a", nil, "limit to assignment UUID (repeatable)")
	flags.StringSliceP("sub-uid", "s", nil, "limit to submission UUID (repeatable)")
	flags.StringSliceP("usr-uid", "u", nil, "limit to submissions owned by user UUID (repeatable)")
	flags.StringSliceP("username", "n", nil, "limit to submissions owned by username (repeatable)")
	flags.StringP("dest", "d", config.DefaultSettings().DownloadsPath, "download root")
	mustBindPFlag(a.v, config.KeyDownloadsPath, flags.Lookup("dest"))
	flags.Bool("full-uuid", false, "name directories by full UUID only")
	flags.Bool("full-name", false, "name user directories by last and first name")
	flags.Bool("overwrite", false, "download files that already exist or were completed before")
	flags.Bool("no-resume", false, "do not read or write the checkpoint beneath the download root")
	flags.Bool("show-timing", false, "collect and show timing data")
	flags.BoolP("verbose", "v", false, "show every file")
	return cmd
}
