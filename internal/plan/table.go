package plan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/handiism/cog-bulk/internal/model"
)

// Column is one field of the results table.
type Column int

const (
	ColRun Column = iota + 1
	ColDate
	ColUser
	ColAssignment
	ColTest
	ColSubmission
	ColStatus
	ColScore
)

var columnNames = []string{"", "Run", "Date", "User", "Assignment", "Test", "Submission", "Status", "Score"}

// AllColumns lists every column in display order.
func AllColumns() []Column {
	return []Column{ColRun, ColDate, ColUser, ColAssignment, ColTest, ColSubmission, ColStatus, ColScore}
}

func (c Column) String() string {
	if c < ColRun || c > ColScore {
		return fmt.Sprintf("Column(%d)", int(c))
	}
	return columnNames[c]
}

// ParseColumn matches a column heading case-insensitively.
func ParseColumn(s string) (Column, error) {
	for _, c := range AllColumns() {
		if strings.EqualFold(strings.TrimSpace(s), c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown column %q", s)
}

// dateLayout matches the remote tool's month/day/year rendering.
const dateLayout = "01/02/06 15:04:05"

// ResultTree holds the objects fetched along Assignment, Test, Submission,
// Run plus the run owners.
type ResultTree struct {
	Assignments map[model.ID]model.Object
	Tests       map[model.ID]model.Object
	Submissions map[model.ID]model.Object
	Runs        map[model.ID]model.Object
	Users       map[model.ID]model.Object
}

// TableOptions selects and orders the table columns.
type TableOptions struct {
	// Hidden columns are left out. Run is always shown.
	Hidden []Column
	// SortBy defaults to Date, or Run when Date is hidden.
	SortBy   Column
	FullUUID bool
	FullName bool
	Location *time.Location
}

type sortKey struct {
	num   float64
	isNum bool
	str   string
}

// Row is one joined run.
type Row struct {
	Run   model.ID
	Cells []string
	keys  []sortKey
}

// Table is the result of joining every run with its ancestors.
type Table struct {
	Columns []Column
	Rows    []Row
	Orphans []Orphan
	SortBy  Column
}

// Headers returns the column headings.
func (t *Table) Headers() []string {
	h := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		h[i] = c.String()
	}
	return h
}

// Cells returns the rows as plain strings.
func (t *Table) Cells() [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Cells
	}
	return out
}

// Results builds one row per run by resolving Submission, Assignment, Test
// and User from the fetched maps. No remote calls are made. Runs whose
// submission, assignment or test is missing become orphans.
func Results(tree ResultTree, opts TableOptions) (*Table, error) {
	hidden := make(map[Column]bool, len(opts.Hidden))
	for _, c := range opts.Hidden {
		if c != ColRun {
			hidden[c] = true
		}
	}

	t := &Table{}
	for _, c := range AllColumns() {
		if !hidden[c] {
			t.Columns = append(t.Columns, c)
		}
	}

	t.SortBy = opts.SortBy
	if t.SortBy == 0 {
		t.SortBy = ColDate
		if hidden[ColDate] {
			t.SortBy = ColRun
		}
	}
	sortIdx := -1
	for i, c := range t.Columns {
		if c == t.SortBy {
			sortIdx = i
		}
	}
	if sortIdx < 0 {
		return nil, fmt.Errorf("cannot sort by %s: column is not displayed", t.SortBy)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	runIDs := make([]model.ID, 0, len(tree.Runs))
	for id := range tree.Runs {
		runIDs = append(runIDs, id)
	}
	model.SortIDs(runIDs)

	for _, ruid := range runIDs {
		row, orphan := joinRun(tree, ruid, t.Columns, opts, loc)
		if orphan != nil {
			t.Orphans = append(t.Orphans, *orphan)
			continue
		}
		t.Rows = append(t.Rows, row)
	}

	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := t.Rows[i].keys[sortIdx], t.Rows[j].keys[sortIdx]
		if a.isNum && b.isNum {
			if a.num != b.num {
				return a.num < b.num
			}
		} else if a.str != b.str {
			return a.str < b.str
		}
		return t.Rows[i].Run.String() < t.Rows[j].Run.String()
	})

	return t, nil
}

func joinRun(tree ResultTree, ruid model.ID, cols []Column, opts TableOptions, loc *time.Location) (Row, *Orphan) {
	run := tree.Runs[ruid]

	suid, err := run.Submission()
	if err != nil {
		o := badAttr(model.KindRun, ruid, err)
		return Row{}, &o
	}
	sub, ok := tree.Submissions[suid]
	if !ok {
		o := missingRef(model.KindRun, ruid, model.KindSubmission, suid)
		return Row{}, &o
	}
	tuid, err := run.Test()
	if err != nil {
		o := badAttr(model.KindRun, ruid, err)
		return Row{}, &o
	}
	tst, ok := tree.Tests[tuid]
	if !ok {
		o := missingRef(model.KindRun, ruid, model.KindTest, tuid)
		return Row{}, &o
	}
	auid, err := sub.Assignment()
	if err != nil {
		o := badAttr(model.KindRun, ruid, err)
		return Row{}, &o
	}
	asn, ok := tree.Assignments[auid]
	if !ok {
		o := missingRef(model.KindRun, ruid, model.KindAssignment, auid)
		return Row{}, &o
	}
	usid, err := run.Owner()
	if err != nil {
		o := badAttr(model.KindRun, ruid, err)
		return Row{}, &o
	}
	created, err := run.CreatedTime()
	if err != nil {
		o := badAttr(model.KindRun, ruid, err)
		return Row{}, &o
	}

	row := Row{Run: ruid}
	for _, c := range cols {
		var cell string
		key := sortKey{}
		switch c {
		case ColRun:
			cell = idCell(ruid, opts.FullUUID)
		case ColDate:
			cell = created.In(loc).Format(dateLayout)
			key = sortKey{num: float64(created.UnixNano()), isNum: true}
		case ColUser:
			cell = userCell(tree.Users[usid], usid, opts)
		case ColAssignment:
			cell = nameCell(asn, auid, opts.FullUUID)
		case ColTest:
			cell = nameCell(tst, tuid, opts.FullUUID)
		case ColSubmission:
			cell = idCell(suid, opts.FullUUID)
		case ColStatus:
			cell = run.StringOr(model.AttrStatus, "")
		case ColScore:
			cell = run.StringOr(model.AttrScore, "")
			if n, err := strconv.ParseFloat(cell, 64); err == nil {
				key = sortKey{num: n, isNum: true}
			}
		}
		key.str = cell
		row.Cells = append(row.Cells, cell)
		row.keys = append(row.keys, key)
	}
	return row, nil
}

func idCell(id model.ID, full bool) string {
	if full {
		return id.String()
	}
	return strings.ToUpper(id.Short())
}

func nameCell(obj model.Object, id model.ID, full bool) string {
	if full {
		return id.String()
	}
	return obj.StringOr(model.AttrName, id.String())
}

func userCell(usr model.Object, usid model.ID, opts TableOptions) string {
	if opts.FullUUID || usr == nil {
		return usid.String()
	}
	if opts.FullName {
		return fmt.Sprintf("%s, %s", usr.StringOr(model.AttrLast, ""), usr.StringOr(model.AttrFirst, ""))
	}
	return usr.StringOr(model.AttrUsername, usid.String())
}
