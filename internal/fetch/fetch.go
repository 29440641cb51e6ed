package fetch

import (
	"errors"
	"fmt"

	"github.com/handiism/cog-bulk/internal/mapper"
	"github.com/handiism/cog-bulk/internal/model"
	"github.com/handiism/cog-bulk/internal/taskpool"
)

var (
	// ErrNotFound is returned when an allow-list names an id missing from the
	// listed or fetched set.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfiguration is shared with the task pool so callers can test
	// for either with one errors.Is.
	ErrInvalidConfiguration = taskpool.ErrInvalidConfiguration
)

// ListFunc expands a parent into its child identifiers.
type ListFunc func(parent model.ID) ([]model.ID, error)

// ShowFunc fetches one full object.
type ShowFunc func(id model.ID) (model.Object, error)

// Prefilter narrows the listed ids before any object is fetched.
type Prefilter struct {
	// Allow, when non-empty, must be a subset of the listed ids and becomes
	// the working set.
	Allow []model.ID
	// Match is applied after Allow.
	Match func(model.ID) bool
}

// Postfilter narrows fetched objects using their attributes.
type Postfilter struct {
	// Allow, when non-empty, must be a subset of the fetched ids.
	Allow []model.ID
	// Match is applied after Allow.
	Match func(model.ID, model.Object) bool
}

// Stage describes one list then show hop down the resource hierarchy.
type Stage struct {
	Name string
	List ListFunc
	Show ShowFunc
	Pre  Prefilter
	Post Postfilter
}

// Result is the joined output of a Stage.
type Result struct {
	// Lists holds the children reported by each parent that listed successfully.
	Lists map[model.ID][]model.ID
	// ChildIDs is the working set that survived the prefilter.
	ChildIDs model.IDSet
	// Objects holds the fetched objects that survived the postfilter.
	Objects map[model.ID]model.Object

	ListFailures map[model.ID]error
	ShowFailures map[model.ID]error
}

// ObjectIDs returns the ids of the surviving objects, sorted, ready to be
// used as the parents of the next stage.
func (r *Result) ObjectIDs() []model.ID {
	ids := make([]model.ID, 0, len(r.Objects))
	for id := range r.Objects {
		ids = append(ids, id)
	}
	model.SortIDs(ids)
	return ids
}

// Phase names the step a failure happened in.
type Phase string

const (
	PhaseList Phase = "list"
	PhaseShow Phase = "show"
)

// Failure is one recorded per-id error.
type Failure struct {
	Stage string
	Phase Phase
	ID    model.ID
	Err   error
}

func (f Failure) Error() string {
	if f.Phase == PhaseList {
		if f.ID.IsNil() {
			return fmt.Sprintf("failed to list %s: %v", f.Stage, f.Err)
		}
		return fmt.Sprintf("failed to list %s under %s: %v", f.Stage, f.ID, f.Err)
	}
	return fmt.Sprintf("failed to get %s %s: %v", f.Stage, f.ID, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Failures enumerates list then show failures, each group sorted by id.
func (r *Result) Failures(stage string) []Failure {
	out := make([]Failure, 0, len(r.ListFailures)+len(r.ShowFailures))
	add := func(phase Phase, m map[model.ID]error) {
		ids := make([]model.ID, 0, len(m))
		for id := range m {
			ids = append(ids, id)
		}
		model.SortIDs(ids)
		for _, id := range ids {
			out = append(out, Failure{Stage: stage, Phase: phase, ID: id, Err: m[id]})
		}
	}
	add(PhaseList, r.ListFailures)
	add(PhaseShow, r.ShowFailures)
	return out
}

// Fetch lists the children of every parent, applies the prefilter, shows
// every surviving child and applies the postfilter. List and show failures
// are isolated per id; only a bad allow-list or a missing callback fails the
// whole call.
func Fetch(pool *taskpool.Pool, parents []model.ID, stage Stage, opts ...mapper.Option) (*Result, error) {
	if stage.List == nil {
		return nil, fmt.Errorf("%w: stage %q has no list operation", ErrInvalidConfiguration, stage.Name)
	}
	if stage.Show == nil {
		return nil, fmt.Errorf("%w: stage %q has no show operation", ErrInvalidConfiguration, stage.Name)
	}

	listed := mapper.Map(pool, parents, stage.List,
		append(opts, mapper.WithLabel("Listing "+stage.Name))...)

	candidates := model.NewIDSet()
	for _, children := range listed.Values {
		for _, id := range children {
			candidates.Add(id)
		}
	}

	working, err := prefilter(stage, candidates)
	if err != nil {
		return nil, err
	}

	shown := mapper.Map(pool, working.Sorted(), stage.Show,
		append(opts, mapper.WithLabel("Getting "+stage.Name))...)

	objects, err := postfilter(stage, shown.Values)
	if err != nil {
		return nil, err
	}

	return &Result{
		Lists:        listed.Values,
		ChildIDs:     working,
		Objects:      objects,
		ListFailures: listed.Failures,
		ShowFailures: shown.Failures,
	}, nil
}

func prefilter(stage Stage, candidates model.IDSet) (model.IDSet, error) {
	working := candidates
	if len(stage.Pre.Allow) > 0 {
		working = model.NewIDSet()
		for _, id := range stage.Pre.Allow {
			if !candidates.Has(id) {
				return nil, fmt.Errorf("%w: pre-filtered %s %s was not listed", ErrNotFound, stage.Name, id)
			}
			working.Add(id)
		}
	}
	if stage.Pre.Match != nil {
		matched := model.NewIDSet()
		for id := range working {
			if stage.Pre.Match(id) {
				matched.Add(id)
			}
		}
		working = matched
	}
	return working, nil
}

func postfilter(stage Stage, fetched map[model.ID]model.Object) (map[model.ID]model.Object, error) {
	objects := fetched
	if len(stage.Post.Allow) > 0 {
		objects = make(map[model.ID]model.Object, len(stage.Post.Allow))
		for _, id := range stage.Post.Allow {
			obj, ok := fetched[id]
			if !ok {
				return nil, fmt.Errorf("%w: post-filtered %s %s was not fetched", ErrNotFound, stage.Name, id)
			}
			objects[id] = obj
		}
	}
	if stage.Post.Match != nil {
		matched := make(map[model.ID]model.Object, len(objects))
		for id, obj := range objects {
			if stage.Post.Match(id, obj) {
				matched[id] = obj
			}
		}
		objects = matched
	}
	return objects, nil
}
