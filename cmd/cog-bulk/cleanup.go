package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/handiism/cog-bulk/internal/bulk"
	"github.com/handiism/cog-bulk/internal/model"
)

// cleanupFlags maps each deletable kind to its selection and id flags.
var cleanupFlags = map[model.Kind]struct {
	name, short, idFlag string
}{
	model.KindAssignment: {"assignments", "a", "asn-uid"},
	model.KindTest:       {"tests", "t", "tst-uid"},
	model.KindSubmission: {"submissions", "s", "sub-uid"},
	model.KindRun:        {"runs", "r", "run-uid"},
	model.KindReporter:   {"reporters", "p", "rpt-uid"},
	model.KindFile:       {"files", "f", "fle-uid"},
}

func newCleanupCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete objects from the server",
		Long: `Deletes every object of the selected kinds, or only the given UUIDs
of a kind. Kinds are deleted in the order assignments, tests, submissions,
runs, reporters, files.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			all, _ := flags.GetBool("all")

			req := bulk.CleanupRequest{Only: make(map[model.Kind][]model.ID)}
			req.Timing, _ = flags.GetBool("show-timing")
			verbose, _ := flags.GetBool("verbose")

			for _, kind := range bulk.CleanupKinds() {
				f := cleanupFlags[kind]
				selected, _ := flags.GetBool(f.name)
				ids, err := idsFlag(cmd, f.idFlag)
				if err != nil {
					return err
				}
				if len(ids) > 0 {
					req.Only[kind] = ids
					selected = true
				}
				if selected || all {
					req.Kinds = append(req.Kinds, kind)
				}
			}
			if len(req.Kinds) == 0 {
				return errors.New("nothing selected, pass --all or a kind such as --submissions")
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			runner, _, err := a.runner(ctx, out, verbose)
			if err != nil {
				return err
			}

			report, err := runner.Cleanup(ctx, req)
			if err != nil {
				return err
			}

			var parts []string
			for _, kind := range req.Kinds {
				parts = append(parts, fmt.Sprintf("%s: %d", cleanupFlags[kind].name, len(report.Deleted[kind])))
			}
			summary(out, report.Failures, nil, "Deleted "+strings.Join(parts, ", "), report.Elapsed)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Bool("all", false, "delete objects of every kind")
	for _, kind := range bulk.CleanupKinds() {
		f := cleanupFlags[kind]
		flags.Bool(f.name, false, fmt.Sprintf("delete %s", f.name))
		flags.StringSliceP(f.idFlag, f.short, nil, fmt.Sprintf("only delete this %s UUID (repeatable)", strings.ToLower(kind.String())))
	}
	flags.Bool("show-timing", false, "collect and show timing data")
	flags.BoolP("verbose", "v", false, "show every deleted object")
	return cmd
}
