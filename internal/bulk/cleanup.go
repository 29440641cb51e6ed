package bulk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/handiism/cog-bulk/internal/fetch"
	"github.com/handiism/cog-bulk/internal/mapper"
	"github.com/handiism/cog-bulk/internal/model"
	"github.com/handiism/cog-bulk/internal/taskpool"
)

// CleanupKinds lists the kinds Cleanup can delete, in the order it deletes
// them.
func CleanupKinds() []model.Kind {
	return []model.Kind{
		model.KindAssignment,
		model.KindTest,
		model.KindSubmission,
		model.KindRun,
		model.KindReporter,
		model.KindFile,
	}
}

// CleanupRequest selects what Cleanup deletes.
type CleanupRequest struct {
	// Kinds to delete. Every object of a kind is deleted unless Only names
	// a subset for it.
	Kinds  []model.Kind
	Only   map[model.Kind][]model.ID
	Timing bool
}

// DeleteError is one object that could not be deleted.
type DeleteError struct {
	Kind model.Kind
	ID   model.ID
	Err  error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("failed to delete %s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// CleanupReport tallies deletions per kind.
type CleanupReport struct {
	Deleted  map[model.Kind][]model.ID
	Failures []error
	Elapsed  time.Duration
}

// Cleanup lists every object of each selected kind, narrows them to the
// allow-list of that kind if one is given and deletes them. Kinds are
// processed in CleanupKinds order regardless of the request order.
func (r *Runner) Cleanup(ctx context.Context, req CleanupRequest) (*CleanupReport, error) {
	selected := make(map[model.Kind]bool, len(req.Kinds))
	for _, k := range req.Kinds {
		if k == model.KindUser {
			return nil, fmt.Errorf("%w: users cannot be cleaned up", fetch.ErrInvalidConfiguration)
		}
		selected[k] = true
	}

	start := time.Now()
	report := &CleanupReport{Deleted: make(map[model.Kind][]model.ID)}

	err := r.session(func(pool *taskpool.Pool) error {
		for _, kind := range CleanupKinds() {
			if !selected[kind] {
				continue
			}
			if err := r.cleanupKind(ctx, pool, kind, req, report); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.Timing {
		report.Elapsed = r.timed("cleanup", start)
	}
	return report, nil
}

func (r *Runner) cleanupKind(ctx context.Context, pool *taskpool.Pool, kind model.Kind, req CleanupRequest, report *CleanupReport) error {
	res := r.client.Resource(kind)
	name := plural(kind)

	found, err := fetch.Fetch(pool, []model.ID{model.NilID}, fetch.Stage{
		Name: name,
		List: fetch.ListAll(func() ([]model.ID, error) { return res.List(ctx) }),
		Show: func(id model.ID) (model.Object, error) { return res.Show(ctx, id) },
		Pre:  fetch.Prefilter{Allow: req.Only[kind]},
	}, r.mapOptions(req.Timing)...)
	if err != nil {
		return err
	}
	report.Failures = append(report.Failures, r.stageFailures(name, found)...)

	deleted := mapper.Map(pool, found.ChildIDs.Sorted(), func(id model.ID) (model.Object, error) {
		return res.Delete(ctx, id)
	}, append(r.mapOptions(req.Timing), mapper.WithLabel("Deleting "+name))...)

	report.Deleted[kind] = sortedKeys(deleted.Values)
	for _, id := range sortedKeys(deleted.Failures) {
		e := &DeleteError{Kind: kind, ID: id, Err: deleted.Failures[id]}
		r.progress(ProgressEvent{Message: e.Error(), Level: LevelError})
		report.Failures = append(report.Failures, e)
	}

	level := LevelSuccess
	if len(deleted.Failures) > 0 {
		level = LevelWarning
	}
	r.progress(ProgressEvent{
		Message: fmt.Sprintf("Deleted %d %s, failed %d", len(deleted.Values), name, len(deleted.Failures)),
		Level:   level,
	})
	return nil
}

func plural(kind model.Kind) string {
	c := kind.Collection()
	if c == "" {
		return kind.String()
	}
	return strings.ToUpper(c[:1]) + c[1:]
}
