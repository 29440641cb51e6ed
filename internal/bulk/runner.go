package bulk

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/handiism/cog-bulk/internal/api"
	"github.com/handiism/cog-bulk/internal/config"
	"github.com/handiism/cog-bulk/internal/fetch"
	"github.com/handiism/cog-bulk/internal/logger"
	"github.com/handiism/cog-bulk/internal/mapper"
	"github.com/handiism/cog-bulk/internal/model"
	"github.com/handiism/cog-bulk/internal/taskpool"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a progress update. Batch is set for per-key
// completion updates and nil for plain messages.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
	Batch   *mapper.Progress
}

// Runner drives the bulk operations against one authenticated client.
type Runner struct {
	client     *api.Client
	settings   *config.Settings
	log        logger.Logger
	onProgress func(ProgressEvent)
}

// NewRunner creates a Runner. log and onProgress may be nil. onProgress is
// called from pool workers and must be safe for concurrent use.
func NewRunner(client *api.Client, settings *config.Settings, log logger.Logger, onProgress func(ProgressEvent)) *Runner {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Runner{
		client:     client,
		settings:   settings,
		log:        log,
		onProgress: onProgress,
	}
}

// session runs fn with a pool sized from the settings. Every batch of one
// bulk operation shares the same slots.
func (r *Runner) session(fn func(*taskpool.Pool) error) error {
	pool, err := taskpool.New(r.settings.Threads, taskpool.WithLogger(r.log))
	if err != nil {
		return err
	}
	return pool.Session(fn)
}

func (r *Runner) mapOptions(timing bool) []mapper.Option {
	opts := []mapper.Option{
		mapper.WithLogger(r.log),
		mapper.WithProgress(func(p mapper.Progress) {
			r.progress(ProgressEvent{
				Message: fmt.Sprintf("%s: %d/%d", p.Label, p.Done, p.Total),
				Level:   LevelVerbose,
				Batch:   &p,
			})
		}),
	}
	if timing {
		opts = append(opts, mapper.WithTiming())
	}
	return opts
}

// resolveUsers turns usernames into ids and appends them to ids. An unknown
// username fails the whole operation.
func (r *Runner) resolveUsers(ctx context.Context, pool *taskpool.Pool, ids []model.ID, usernames []string, timing bool) ([]model.ID, error) {
	if len(usernames) == 0 {
		return ids, nil
	}

	users := r.client.Users()
	res := mapper.Map(pool, usernames, func(name string) (model.ID, error) {
		return users.ByUsername(ctx, name)
	}, append(r.mapOptions(timing), mapper.WithLabel("Getting User IDs"))...)

	if len(res.Failures) > 0 {
		names := make([]string, 0, len(res.Failures))
		for name := range res.Failures {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("%w: user %q: %v", fetch.ErrNotFound, names[0], res.Failures[names[0]])
	}

	out := append([]model.ID(nil), ids...)
	for _, name := range usernames {
		out = append(out, res.Values[name])
	}
	return out, nil
}

// showUsers fetches the owners referenced by objects. Owners that cannot be
// fetched are returned as failures and later rendered by id.
func (r *Runner) showUsers(ctx context.Context, pool *taskpool.Pool, objects map[model.ID]model.Object, timing bool) (map[model.ID]model.Object, []error) {
	owners := model.NewIDSet()
	for _, obj := range objects {
		if id, err := obj.Owner(); err == nil {
			owners.Add(id)
		}
	}

	users := r.client.Users()
	res := mapper.Map(pool, owners.Sorted(), func(id model.ID) (model.Object, error) {
		return users.Show(ctx, id)
	}, append(r.mapOptions(timing), mapper.WithLabel("Getting Users"))...)

	var failures []error
	for _, id := range sortedKeys(res.Failures) {
		failures = append(failures, fetch.Failure{Stage: "Users", Phase: fetch.PhaseShow, ID: id, Err: res.Failures[id]})
	}
	return res.Values, failures
}

func (r *Runner) stageFailures(stage string, res *fetch.Result) []error {
	var out []error
	for _, f := range res.Failures(stage) {
		r.progress(ProgressEvent{Message: f.Error(), Level: LevelError})
		out = append(out, f)
	}
	return out
}

func (r *Runner) timed(label string, start time.Time) time.Duration {
	elapsed := time.Since(start)
	r.log.Info("operation complete", zap.String("operation", label), zap.Duration("elapsed", elapsed))
	return elapsed
}

func (r *Runner) progress(event ProgressEvent) {
	if r.onProgress != nil {
		r.onProgress(event)
	}
}

func sortedKeys[V any](m map[model.ID]V) []model.ID {
	ids := make([]model.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	model.SortIDs(ids)
	return ids
}
