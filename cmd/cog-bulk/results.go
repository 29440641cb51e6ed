package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/handiism/cog-bulk/internal/bulk"
	"github.com/handiism/cog-bulk/internal/plan"
)

func newResultsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show-results",
		Short: "Show a table of run results",
		Long: `Shows one row per run with its date, user, assignment, test, submission,
status and score. Every column but Run can be hidden and the table can be
sorted by any shown column.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := bulk.ResultsRequest{}
			var err error
			if req.Assignments, err = idsFlag(cmd, "asn-uid"); err != nil {
				return err
			}
			if req.Tests, err = idsFlag(cmd, "tst-uid"); err != nil {
				return err
			}
			if req.Submissions, err = idsFlag(cmd, "sub-uid"); err != nil {
				return err
			}
			if req.Runs, err = idsFlag(cmd, "run-uid"); err != nil {
				return err
			}
			if req.Users, err = idsFlag(cmd, "usr-uid"); err != nil {
				return err
			}

			flags := cmd.Flags()
			req.Usernames, _ = flags.GetStringSlice("username")
			req.Timing, _ = flags.GetBool("show-timing")
			req.Table.FullUUID, _ = flags.GetBool("full-uuid")
			req.Table.FullName, _ = flags.GetBool("full-name")
			verbose, _ := flags.GetBool("verbose")

			hide, _ := flags.GetStringSlice("hide")
			for _, name := range hide {
				c, err := plan.ParseColumn(name)
				if err != nil {
					return fmt.Errorf("--hide: %w", err)
				}
				req.Table.Hidden = append(req.Table.Hidden, c)
			}
			if sortBy, _ := flags.GetString("sort"); sortBy != "" {
				if req.Table.SortBy, err = plan.ParseColumn(sortBy); err != nil {
					return fmt.Errorf("--sort: %w", err)
				}
			}

			lineLimit, _ := flags.GetInt("line-limit")
			if lineLimit == 0 {
				lineLimit = terminalWidth()
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			runner, _, err := a.runner(ctx, out, verbose)
			if err != nil {
				return err
			}

			report, err := runner.ShowResults(ctx, req)
			if err != nil {
				return err
			}

			fmt.Fprintln(out)
			if err := report.Table.Render(out, lineLimit); err != nil {
				return err
			}
			summary(out, report.Failures, report.Table.Orphans,
				fmt.Sprintf("Runs: %d", len(report.Table.Rows)), report.Elapsed)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSliceP("asn-uid", "a", nil, "limit to assignment UUID (repeatable)")
	flags.StringSliceP("tst-uid", "t", nil, "limit to test UUID (repeatable)")
	flags.StringSliceP("sub-uid", "s", nil, "limit to submission UUID (repeatable)")
	flags.StringSliceP("run-uid", "r", nil, "limit to run UUID (repeatable)")
	flags.StringSliceP("usr-uid", "u", nil, "limit to user UUID (repeatable)")
	flags.StringSliceP("username", "n", nil, "limit to username (repeatable)")
	flags.StringSlice("hide", nil, "hide a column: date, user, assignment, test, submission, status or score (repeatable)")
	flags.String("sort", "", "sort by column (default date, or run when date is hidden)")
	flags.Bool("full-uuid", false, "show full UUIDs instead of names and short ids")
	flags.Bool("full-name", false, "show users by last and first name")
	flags.Int("line-limit", 0, "maximum table width, -1 for no limit (default terminal width)")
	flags.Bool("show-timing", false, "collect and show timing data")
	flags.BoolP("verbose", "v", false, "show every fetched object")
	return cmd
}

// terminalWidth returns the width of stdout, or zero when it is not a
// terminal.
func terminalWidth() int {
	w, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil {
		return 0
	}
	return w
}
