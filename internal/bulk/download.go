package bulk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/handiism/cog-bulk/internal/api"
	"github.com/handiism/cog-bulk/internal/checkpoint"
	"github.com/handiism/cog-bulk/internal/fetch"
	ioutils "github.com/handiism/cog-bulk/internal/io"
	"github.com/handiism/cog-bulk/internal/mapper"
	"github.com/handiism/cog-bulk/internal/model"
	"github.com/handiism/cog-bulk/internal/plan"
	"github.com/handiism/cog-bulk/internal/taskpool"
)

// DownloadRequest selects the submissions whose files are downloaded.
type DownloadRequest struct {
	// Dest is the download root.
	Dest string

	Assignments []model.ID
	Submissions []model.ID
	Users       []model.ID
	Usernames   []string

	FullUUID  bool
	FullName  bool
	Overwrite bool
	// NoCheckpoint disables resuming from and recording to the checkpoint
	// store.
	NoCheckpoint bool
	Timing       bool
}

// FileOutcome is what happened to one planned file.
type FileOutcome int

const (
	Downloaded FileOutcome = iota
	SkippedExisting
	SkippedCheckpoint
)

func (o FileOutcome) String() string {
	switch o {
	case Downloaded:
		return "downloaded"
	case SkippedExisting:
		return "exists"
	case SkippedCheckpoint:
		return "already complete"
	default:
		return "unknown"
	}
}

// DownloadError is one failed file.
type DownloadError struct {
	Path string
	File model.ID
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download %s (%s): %v", e.Path, e.File, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// DownloadReport summarizes one DownloadSubmissions call.
type DownloadReport struct {
	Plan     *plan.DownloadPlan
	Outcomes map[string]FileOutcome
	Bytes    int64
	// Failures holds fetch.Failure and *DownloadError values.
	Failures []error
	Elapsed  time.Duration
}

// Count returns how many files ended with outcome.
func (r *DownloadReport) Count(outcome FileOutcome) int {
	n := 0
	for _, o := range r.Outcomes {
		if o == outcome {
			n++
		}
	}
	return n
}

// DownloadSubmissions fetches Assignment, Submission and File objects,
// plans a destination path for every file and downloads them.
//
// Failures below the top level are isolated: a submission that cannot be
// fetched only removes its own files from the plan. An allow-list naming an
// unknown id or an unknown username fails the whole call with
// fetch.ErrNotFound.
func (r *Runner) DownloadSubmissions(ctx context.Context, req DownloadRequest) (*DownloadReport, error) {
	start := time.Now()
	report := &DownloadReport{Outcomes: make(map[string]FileOutcome)}

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

		files, err := fetch.Fetch(pool, sub.ObjectIDs(), fetch.Stage{
			Name: "Files",
			List: func(suid model.ID) ([]model.ID, error) {
				return r.client.Files().ListUnder(ctx, model.KindSubmission, suid)
			},
			Show: func(id model.ID) (model.Object, error) { return r.client.Files().Show(ctx, id) },
		}, opts...)
		if err != nil {
			return err
		}
		report.Failures = append(report.Failures, r.stageFailures("Files", files)...)

		owners, failures := r.showUsers(ctx, pool, sub.Objects, req.Timing)
		report.Failures = append(report.Failures, failures...)

		report.Plan = plan.Download(plan.DownloadTree{
			Assignments: asn.Objects,
			Submissions: sub.Objects,
			Files:       files.Objects,
			Users:       owners,
			FileLists:   files.Lists,
		}, plan.DownloadOptions{
			Root:     req.Dest,
			FullUUID: req.FullUUID,
			FullName: req.FullName,
		})
		for _, o := range report.Plan.Orphans {
			r.progress(ProgressEvent{Message: o.String(), Level: LevelWarning})
		}

		return r.execute(ctx, pool, req, report)
	})
	if err != nil {
		return nil, err
	}

	if req.Timing {
		report.Elapsed = r.timed("download-submissions", start)
	}
	return report, nil
}

func (r *Runner) execute(ctx context.Context, pool *taskpool.Pool, req DownloadRequest, report *DownloadReport) error {
	for _, dir := range report.Plan.SubmissionDirs {
		if err := ioutils.EnsureDir(dir); err != nil {
			return fmt.Errorf("create submission directory: %w", err)
		}
	}

	var store *checkpoint.Store
	if !req.NoCheckpoint {
		var err error
		store, err = checkpoint.Open(ctx, req.Dest,
			checkpoint.WithFlushEvery(r.settings.CheckpointFlushEvery),
			checkpoint.WithFlushInterval(r.settings.CheckpointFlushInterval),
			checkpoint.WithLogger(r.log),
		)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				r.log.Error("closing checkpoint store", zap.Error(err))
			}
		}()
		if _, err := store.Load(ctx); err != nil {
			return err
		}
	}

	var received int64
	res := mapper.Map(pool, report.Plan.SortedPaths(), func(path string) (FileOutcome, error) {
		fuid := report.Plan.Paths[path]
		if !req.Overwrite {
			// A checkpoint only counts when the file is at its planned path,
			// so a run with a different naming mode still writes its layout.
			exists := ioutils.FileExists(path)
			if exists && store != nil && store.Completed(fuid) {
				return SkippedCheckpoint, nil
			}
			if exists {
				r.progress(ProgressEvent{Message: fmt.Sprintf("Skipping existing: %s", filepath.Base(path)), Level: LevelVerbose})
				r.mark(ctx, store, fuid)
				return SkippedExisting, nil
			}
		}

		n, err := r.downloadFile(ctx, fuid, path)
		atomic.AddInt64(&received, n)
		if err != nil {
			r.progress(ProgressEvent{Message: fmt.Sprintf("Error downloading %s: %v", filepath.Base(path), err), Level: LevelError})
			return 0, err
		}
		r.progress(ProgressEvent{Message: fmt.Sprintf("Downloaded: %s", filepath.Base(path)), Level: LevelVerbose})
		r.mark(ctx, store, fuid)
		return Downloaded, nil
	}, append(r.mapOptions(req.Timing), mapper.WithLabel("Downloading Files"))...)

	report.Bytes = received
	for path, outcome := range res.Values {
		report.Outcomes[path] = outcome
	}
	for _, path := range report.Plan.SortedPaths() {
		if err, ok := res.Failures[path]; ok {
			report.Failures = append(report.Failures, &DownloadError{Path: path, File: report.Plan.Paths[path], Err: err})
		}
	}

	level := LevelSuccess
	if len(res.Failures) > 0 {
		level = LevelWarning
	}
	r.progress(ProgressEvent{
		Message: fmt.Sprintf("Downloaded %d files, skipped %d, failed %d",
			report.Count(Downloaded), report.Count(SkippedExisting)+report.Count(SkippedCheckpoint), len(res.Failures)),
		Level: level,
	})
	return nil
}

// mark records a finished file. A failed flush only affects resuming, the
// file itself is already in place.
func (r *Runner) mark(ctx context.Context, store *checkpoint.Store, id model.ID) {
	if store == nil {
		return
	}
	if err := store.Mark(ctx, id); err != nil {
		r.log.Warn("checkpoint flush failed", zap.Error(err))
	}
}

// downloadFile retries a file with the exponential cooldown from the
// settings. Client errors other than 408 and 429 are not retried.
func (r *Runner) downloadFile(ctx context.Context, id model.ID, path string) (int64, error) {
	var written int64
	attempt := 0
	op := func() error {
		attempt++
		n, err := r.client.Files().Download(ctx, id, path, nil)
		written = n
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.progress(ProgressEvent{
			Message: fmt.Sprintf("Retry %d/%d for %s in %s: %v", attempt, r.settings.DownloadMaxRetries-1, filepath.Base(path), wait, err),
			Level:   LevelWarning,
		})
	}

	err := backoff.RetryNotify(op, r.retryPolicy(ctx), notify)
	return written, err
}

func (r *Runner) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(r.settings.DownloadRetryCooldown * float64(time.Second))
	b.Multiplier = r.settings.DownloadRetryExponent
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0
	b.Reset()

	retries := r.settings.DownloadMaxRetries - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	code := api.StatusCode(err)
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 400 && code < 500:
		return false
	}
	return true
}
