package bulk

import (
	"context"
	"time"

	"github.com/handiism/cog-bulk/internal/fetch"
	"github.com/handiism/cog-bulk/internal/model"
	"github.com/handiism/cog-bulk/internal/plan"
	"github.com/handiism/cog-bulk/internal/taskpool"
)

// ResultsRequest selects the runs shown in the results table.
type ResultsRequest struct {
	Assignments []model.ID
	Tests       []model.ID
	Submissions []model.ID
	Runs        []model.ID
	Users       []model.ID
	Usernames   []string

	Table  plan.TableOptions
	Timing bool
}

// ResultsReport holds the joined table and every failure met on the way.
type ResultsReport struct {
	Table    *plan.Table
	Failures []error
	Elapsed  time.Duration
}

// ShowResults walks Assignment, Test, Submission and Run, fetches the
// run owners and joins one table row per run. Runs are kept only when
// they belong to one of the selected tests, if any were selected.
func (r *Runner) ShowResults(ctx context.Context, req ResultsRequest) (*ResultsReport, error) {
	start := time.Now()
	report := &ResultsReport{}

	err := r.session(func(pool *taskpool.Pool) error {
		users, err := r.resolveUsers(ctx, pool, req.Users, req.Usernames, req.Timing)
		if err != nil {
			return err
		}

		opts := r.mapOptions(req.Timing)

		asn, err := fetch.Fetch(pool, []model.ID{model.NilID}, fetch.Stage{
			Name: "Assignments",
			List: fetch.ListAll(func() ([]model.ID, error) { return r.client.Assignments().List(ctx) }),
			Show: func(id model.ID) (model.Object, error) { return r.client.Assignments().Show(ctx, id) },
			Pre:  fetch.Prefilter{Allow: req.Assignments},
		}, opts...)
		if err != nil {
			return err
		}
		report.Failures = append(report.Failures, r.stageFailures("Assignments", asn)...)

		tests, err := fetch.Fetch(pool, asn.ObjectIDs(), fetch.Stage{
			Name: "Tests",
			List: func(auid model.ID) ([]model.ID, error) {
				return r.client.Tests().ListUnder(ctx, model.KindAssignment, auid)
			},
			Show: func(id model.ID) (model.Object, error) { return r.client.Tests().Show(ctx, id) },
			Pre:  fetch.Prefilter{Allow: req.Tests},
		}, opts...)
		if err != nil {
			return err
		}
		report.Failures = append(report.Failures, r.stageFailures("Tests", tests)...)

		sub, err := fetch.Fetch(pool, asn.ObjectIDs(), fetch.Stage{
			Name: "Submissions",
			List: func(auid model.ID) ([]model.ID, error) {
				return r.client.Submissions().ListUnder(ctx, model.KindAssignment, auid)
			},
			Show: func(id model.ID) (model.Object, error) { return r.client.Submissions().Show(ctx, id) },
			Pre:  fetch.Prefilter{Allow: req.Submissions},
			Post: fetch.Postfilter{Match: fetch.OwnerIn(users...)},
		}, opts...)
		if err != nil {
			return err
		}
		report.Failures = append(report.Failures, r.stageFailures("Submissions", sub)...)

		runs, err := fetch.Fetch(pool, sub.ObjectIDs(), fetch.Stage{
			Name: "Runs",
			List: func(suid model.ID) ([]model.ID, error) {
				return r.client.Runs().ListUnder(ctx, model.KindSubmission, suid)
			},
			Show: func(id model.ID) (model.Object, error) { return r.client.Runs().Show(ctx, id) },
			Pre:  fetch.Prefilter{Allow: req.Runs},
			Post: fetch.Postfilter{Match: fetch.TestIn(req.Tests...)},
		}, opts...)
		if err != nil {
			return err
		}
		report.Failures = append(report.Failures, r.stageFailures("Runs", runs)...)

		owners, failures := r.showUsers(ctx, pool, runs.Objects, req.Timing)
		report.Failures = append(report.Failures, failures...)

		table, err := plan.Results(plan.ResultTree{
			Assignments: asn.Objects,
			Tests:       tests.Objects,
			Submissions: sub.Objects,
			Runs:        runs.Objects,
			Users:       owners,
		}, req.Table)
		if err != nil {
			return err
		}
		for _, o := range table.Orphans {
			r.progress(ProgressEvent{Message: o.String(), Level: LevelWarning})
		}
		report.Table = table
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.Timing {
		report.Elapsed = r.timed("show-results", start)
	}
	return report, nil
}
