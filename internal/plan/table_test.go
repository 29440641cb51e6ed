package plan

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handiism/cog-bulk/internal/model"
)

var (
	tst1 = model.MustParseID("e0000000-0000-0000-0000-000000000001")
	run1 = model.MustParseID("90000000-0000-0000-0000-0000000000b1")
	run2 = model.MustParseID("90000000-0000-0000-0000-0000000000b2")
	run3 = model.MustParseID("90000000-0000-0000-0000-0000000000b3")
)

func resultTree() ResultTree {
	return ResultTree{
		Assignments: map[model.ID]model.Object{asnA: {"name": "Homework 1"}},
		Tests:       map[model.ID]model.Object{tst1: {"name": "Grader"}},
		Submissions: map[model.ID]model.Object{
			sub1: {"assignment": asnA.String(), "owner": usr1.String()},
		},
		Runs: map[model.ID]model.Object{
			// run1 is later than run2 but has the lower score
			run1: {"submission": sub1.String(), "test": tst1.String(), "owner": usr1.String(),
				"status": "complete", "score": 9.0, "created_time": 1445003600.0},
			run2: {"submission": sub1.String(), "test": tst1.String(), "owner": usr1.String(),
				"status": "complete", "score": 10.0, "created_time": 1445000000.0},
		},
		Users: map[model.ID]model.Object{usr1: {"username": "alice", "first": "Alice", "last": "Liddell"}},
	}
}

func TestResults_DefaultColumnsAndSort(t *testing.T) {
	tbl, err := Results(resultTree(), TableOptions{Location: time.UTC})
	require.NoError(t, err)

	assert.Equal(t, []string{"Run", "Date", "User", "Assignment", "Test", "Submission", "Status", "Score"}, tbl.Headers())
	assert.Equal(t, ColDate, tbl.SortBy)
	assert.Equal(t, [][]string{
		{"0000000000B2", "10/16/15 12:53:20", "alice", "Homework 1", "Grader", "000000000001", "complete", "10"},
		{"0000000000B1", "10/16/15 13:53:20", "alice", "Homework 1", "Grader", "000000000001", "complete", "9"},
	}, tbl.Cells())
	assert.Empty(t, tbl.Orphans)
}

func TestResults_HiddenColumnsAndSortBy(t *testing.T) {
	t.Run("date_hidden_sorts_by_run", func(t *testing.T) {
		tbl, err := Results(resultTree(), TableOptions{Hidden: []Column{ColDate, ColRun, ColTest}})
		require.NoError(t, err)
		assert.Equal(t, []string{"Run", "User", "Assignment", "Submission", "Status", "Score"}, tbl.Headers())
		assert.Equal(t, ColRun, tbl.SortBy)
		assert.Equal(t, run1, tbl.Rows[0].Run)
	})

	t.Run("score_sorts_numerically", func(t *testing.T) {
		tree := resultTree()
		run3Obj := model.Object{}
		for k, v := range tree.Runs[run1] {
			run3Obj[k] = v
		}
		run3Obj["score"] = 100.0
		tree.Runs[run3] = run3Obj

		tbl, err := Results(tree, TableOptions{SortBy: ColScore})
		require.NoError(t, err)
		got := []model.ID{tbl.Rows[0].Run, tbl.Rows[1].Run, tbl.Rows[2].Run}
		assert.Equal(t, []model.ID{run1, run2, run3}, got)
	})

	t.Run("sort_by_hidden_column", func(t *testing.T) {
		_, err := Results(resultTree(), TableOptions{Hidden: []Column{ColScore}, SortBy: ColScore})
		require.ErrorContains(t, err, "not displayed")
	})
}

func TestResults_DisplayModes(t *testing.T) {
	tbl, err := Results(resultTree(), TableOptions{FullUUID: true, Hidden: []Column{ColDate, ColStatus, ColScore}})
	require.NoError(t, err)
	assert.Equal(t, []string{run1.String(), usr1.String(), asnA.String(), tst1.String(), sub1.String()}, tbl.Rows[0].Cells)

	tbl, err = Results(resultTree(), TableOptions{FullName: true, Hidden: []Column{ColDate}})
	require.NoError(t, err)
	assert.Equal(t, "Liddell, Alice", tbl.Rows[0].Cells[1])
}

func TestResults_OrphanedRuns(t *testing.T) {
	tree := resultTree()
	ghost := model.MustParseID("50000000-0000-0000-0000-0000000000ee")
	tree.Runs[run3] = model.Object{"submission": ghost.String(), "test": tst1.String(),
		"owner": usr1.String(), "created_time": 1.0}
	tree.Runs[run2]["test"] = "not-an-id"

	tbl, err := Results(tree, TableOptions{})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, run1, tbl.Rows[0].Run)
	require.Len(t, tbl.Orphans, 2)

	for _, o := range tbl.Orphans {
		assert.Equal(t, model.KindRun, o.Kind)
		if o.Leaf == run3 {
			assert.Equal(t, model.KindSubmission, o.Missing)
			assert.Equal(t, ghost, o.Ref)
		} else {
			assert.NotEmpty(t, o.Reason)
		}
	}
}

func TestParseColumn(t *testing.T) {
	c, err := ParseColumn("assignment")
	require.NoError(t, err)
	assert.Equal(t, ColAssignment, c)

	_, err = ParseColumn("grade")
	require.Error(t, err)
}

func TestTable_Render(t *testing.T) {
	tbl, err := Results(resultTree(), TableOptions{Location: time.UTC})
	require.NoError(t, err)

	var wide bytes.Buffer
	require.NoError(t, tbl.Render(&wide, 0))
	out := wide.String()
	for _, h := range tbl.Headers() {
		assert.Contains(t, out, h)
	}
	assert.Contains(t, out, "Homework 1")

	var narrow bytes.Buffer
	require.NoError(t, tbl.Render(&narrow, 60))
	assert.Contains(t, narrow.String(), "...")
	assert.NotContains(t, narrow.String(), "10/16/15 12:53:20")
}

func TestFit(t *testing.T) {
	headers, rows := fit([]string{"A", "Long heading"}, [][]string{{"x", "a long long value"}}, 20)
	assert.Equal(t, "A", headers[0])
	for _, r := range rows {
		for i, c := range r {
			assert.LessOrEqual(t, len(c), max(len(headers[i]), 20))
		}
	}
	assert.True(t, strings.HasSuffix(rows[0][1], "..."))
}
