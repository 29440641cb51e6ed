package fetch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/handiism/cog-bulk/internal/model"
	"github.com/handiism/cog-bulk/internal/taskpool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeTree struct {
	children map[model.ID][]model.ID
	objects  map[model.ID]model.Object
	listErr  map[model.ID]error
	showErr  map[model.ID]error
}

func (f *fakeTree) list(parent model.ID) ([]model.ID, error) {
	if err := f.listErr[parent]; err != nil {
		return nil, err
	}
	return f.children[parent], nil
}

func (f *fakeTree) show(id model.ID) (model.Object, error) {
	if err := f.showErr[id]; err != nil {
		return nil, err
	}
	obj, ok := f.objects[id]
	if !ok {
		return nil, errors.New("404")
	}
	return obj, nil
}

func (f *fakeTree) stage() Stage {
	return Stage{Name: "Things", List: f.list, Show: f.show}
}

func newPool(t *testing.T) *taskpool.Pool {
	t.Helper()
	p, err := taskpool.New(3)
	require.NoError(t, err)
	p.Open()
	t.Cleanup(func() { p.Close(true) })
	return p
}

var (
	p1 = model.MustParseID("10000000-0000-0000-0000-000000000001")
	p2 = model.MustParseID("10000000-0000-0000-0000-000000000002")
	c1 = model.MustParseID("20000000-0000-0000-0000-000000000001")
	c2 = model.MustParseID("20000000-0000-0000-0000-000000000002")
	c3 = model.MustParseID("20000000-0000-0000-0000-000000000003")
	u1 = model.MustParseID("30000000-0000-0000-0000-000000000001")
	u2 = model.MustParseID("30000000-0000-0000-0000-000000000002")
)

func newFakeTree() *fakeTree {
	return &fakeTree{
		children: map[model.ID][]model.ID{
			p1: {c1, c2},
			p2: {c2, c3},
		},
		objects: map[model.ID]model.Object{
			c1: {"name": "one", "owner": u1.String()},
			c2: {"name": "two", "owner": u1.String()},
			c3: {"name": "three", "owner": u2.String()},
		},
	}
}

func TestFetch_RoundTrip(t *testing.T) {
	tree := newFakeTree()
	res, err := Fetch(newPool(t), []model.ID{p1}, tree.stage())
	require.NoError(t, err)

	assert.Equal(t, model.NewIDSet(c1, c2), res.ChildIDs)
	require.Len(t, res.Objects, 2)
	assert.Equal(t, "one", res.Objects[c1]["name"])
	assert.Equal(t, "two", res.Objects[c2]["name"])
	assert.Equal(t, []model.ID{c1, c2}, res.Lists[p1])
	assert.Empty(t, res.ListFailures)
	assert.Empty(t, res.ShowFailures)
	assert.Equal(t, []model.ID{c1, c2}, res.ObjectIDs())
}

func TestFetch_IsolatesFailures(t *testing.T) {
	tree := newFakeTree()
	listErr := errors.New("list down")
	showErr := errors.New("show down")
	tree.listErr = map[model.ID]error{p1: listErr}
	tree.showErr = map[model.ID]error{c3: showErr}

	res, err := Fetch(newPool(t), []model.ID{p1, p2}, tree.stage())
	require.NoError(t, err)

	require.ErrorIs(t, res.ListFailures[p1], listErr)
	assert.NotContains(t, res.Lists, p1)
	assert.Equal(t, model.NewIDSet(c2, c3), res.ChildIDs)
	assert.Contains(t, res.Objects, c2)
	require.ErrorIs(t, res.ShowFailures[c3], showErr)

	failures := res.Failures("Things")
	require.Len(t, failures, 2)
	assert.Equal(t, PhaseList, failures[0].Phase)
	assert.Equal(t, PhaseShow, failures[1].Phase)
	assert.ErrorIs(t, failures[1], showErr)
	assert.Contains(t, failures[1].Error(), "failed to get Things")
}

func TestFetch_Prefilter(t *testing.T) {
	t.Run("allow_list_missing_id_is_not_found", func(t *testing.T) {
		tree := newFakeTree()
		stage := tree.stage()
		stage.Pre.Allow = []model.ID{c1, c3}

		res, err := Fetch(newPool(t), []model.ID{p1}, stage)
		require.Nil(t, res)
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorContains(t, err, c3.String())
	})

	t.Run("allow_list_narrows", func(t *testing.T) {
		tree := newFakeTree()
		stage := tree.stage()
		stage.Pre.Allow = []model.ID{c2, c2}

		res, err := Fetch(newPool(t), []model.ID{p1, p2}, stage)
		require.NoError(t, err)
		assert.Equal(t, model.NewIDSet(c2), res.ChildIDs)
		assert.Len(t, res.Objects, 1)
	})

	t.Run("full_allow_list_is_noop", func(t *testing.T) {
		tree := newFakeTree()
		plain, err := Fetch(newPool(t), []model.ID{p1, p2}, tree.stage())
		require.NoError(t, err)

		stage := tree.stage()
		stage.Pre.Allow = plain.ChildIDs.Sorted()
		filtered, err := Fetch(newPool(t), []model.ID{p1, p2}, stage)
		require.NoError(t, err)
		assert.Equal(t, plain.ChildIDs, filtered.ChildIDs)
		assert.Equal(t, plain.Objects, filtered.Objects)
	})

	t.Run("predicate", func(t *testing.T) {
		tree := newFakeTree()
		var shown []model.ID
		stage := tree.stage()
		stage.Show = func(id model.ID) (model.Object, error) {
			shown = append(shown, id)
			return tree.show(id)
		}
		stage.Pre.Match = func(id model.ID) bool { return id != c2 }

		p, err := taskpool.New(1)
		require.NoError(t, err)
		var res *Result
		require.NoError(t, p.Session(func(p *taskpool.Pool) error {
			res, err = Fetch(p, []model.ID{p1, p2}, stage)
			return err
		}))
		assert.Equal(t, model.NewIDSet(c1, c3), res.ChildIDs)
		assert.ElementsMatch(t, []model.ID{c1, c3}, shown)
	})
}

func TestFetch_Postfilter(t *testing.T) {
	t.Run("allow_list_missing_fetch_is_not_found", func(t *testing.T) {
		tree := newFakeTree()
		tree.showErr = map[model.ID]error{c1: errors.New("flaky")}
		stage := tree.stage()
		stage.Post.Allow = []model.ID{c1}

		_, err := Fetch(newPool(t), []model.ID{p1}, stage)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("owner_predicate", func(t *testing.T) {
		tree := newFakeTree()
		stage := tree.stage()
		stage.Post.Match = OwnerIn(u1)

		res, err := Fetch(newPool(t), []model.ID{p1, p2}, stage)
		require.NoError(t, err)
		assert.Equal(t, model.NewIDSet(c1, c2, c3), res.ChildIDs)
		assert.Equal(t, []model.ID{c1, c2}, res.ObjectIDs())
	})

	t.Run("empty_owner_set_accepts_all", func(t *testing.T) {
		require.Nil(t, OwnerIn())
		require.Nil(t, TestIn())
	})
}

func TestFetch_InvalidConfiguration(t *testing.T) {
	tree := newFakeTree()
	p := newPool(t)

	_, err := Fetch(p, []model.ID{p1}, Stage{Name: "x", Show: tree.show})
	require.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = Fetch(p, []model.ID{p1}, Stage{Name: "x", List: tree.list})
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestFetch_ChainedStages(t *testing.T) {
	tree := newFakeTree()
	grandchild := model.MustParseID("40000000-0000-0000-0000-000000000001")
	tree.children[c1] = []model.ID{grandchild}
	tree.objects[grandchild] = model.Object{"name": "leaf"}

	p := newPool(t)
	top, err := Fetch(p, []model.ID{model.NilID}, Stage{
		Name: "Parents",
		List: ListAll(func() ([]model.ID, error) { return []model.ID{p1}, nil }),
		Show: func(id model.ID) (model.Object, error) { return model.Object{"name": "p"}, nil },
	})
	require.NoError(t, err)

	mid, err := Fetch(p, top.ObjectIDs(), tree.stage())
	require.NoError(t, err)

	leaves, err := Fetch(p, mid.ObjectIDs(), tree.stage())
	require.NoError(t, err)
	assert.Equal(t, []model.ID{grandchild}, leaves.ObjectIDs())
}
