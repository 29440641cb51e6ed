package plan

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ioutils "github.com/handiism/cog-bulk/internal/io"
	"github.com/handiism/cog-bulk/internal/model"
)

var (
	asnA = model.MustParseID("a0000000-0000-0000-0000-00000000000a")
	sub1 = model.MustParseID("50000000-0000-0000-0000-000000000001")
	sub2 = model.MustParseID("50000000-0000-0000-0000-000000000002")
	usr1 = model.MustParseID("70000000-0000-0000-0000-000000000001")
	fle1 = model.MustParseID("f0000000-0000-0000-0000-000000000001")
	fle2 = model.MustParseID("f0000000-0000-0000-0000-000000000002")
)

func scenarioTree() DownloadTree {
	return DownloadTree{
		Assignments: map[model.ID]model.Object{
			asnA: {"name": "Home work 1"},
		},
		Submissions: map[model.ID]model.Object{
			sub1: {"assignment": asnA.String(), "owner": usr1.String(), "created_time": 1445000000.0},
			sub2: {"assignment": asnA.String(), "owner": usr1.String(), "created_time": 1445000000.0},
		},
		Files: map[model.ID]model.Object{
			fle1: {"name": "main.c"},
			fle2: {"name": "main.c"},
		},
		Users: map[model.ID]model.Object{
			usr1: {"username": "alice", "first": "Alice", "last": "Liddell"},
		},
		FileLists: map[model.ID][]model.ID{
			sub1: {fle1},
			sub2: {fle2},
		},
	}
}

func TestDownload_SharedOwnerGetsDistinctPaths(t *testing.T) {
	root := filepath.FromSlash("/dl")
	plan := Download(scenarioTree(), DownloadOptions{Root: root, Location: time.UTC})

	want := map[string]model.ID{
		filepath.Join(root, "asn_Homework1_00000000000a", "usr_alice", "sub_151016_125320_000000000001", "main.c"): fle1,
		filepath.Join(root, "asn_Homework1_00000000000a", "usr_alice", "sub_151016_125320_000000000002", "main.c"): fle2,
	}
	if diff := cmp.Diff(want, plan.Paths); diff != "" {
		t.Errorf("Download() paths mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, plan.SubmissionDirs, 2)
	assert.Empty(t, plan.Orphans)
	assert.Equal(t, []string{
		filepath.Join(root, "asn_Homework1_00000000000a", "usr_alice", "sub_151016_125320_000000000001", "main.c"),
		filepath.Join(root, "asn_Homework1_00000000000a", "usr_alice", "sub_151016_125320_000000000002", "main.c"),
	}, plan.SortedPaths())
}

func TestDownload_NamingModes(t *testing.T) {
	root := filepath.FromSlash("/dl")

	t.Run("full_uuid", func(t *testing.T) {
		plan := Download(scenarioTree(), DownloadOptions{Root: root, FullUUID: true, FullName: true})
		want := filepath.Join(root, "asn_"+asnA.String(), "usr_"+usr1.String(), "sub_"+sub1.String(), "main.c")
		assert.Equal(t, fle1, plan.Paths[want])
	})

	t.Run("full_name", func(t *testing.T) {
		plan := Download(scenarioTree(), DownloadOptions{Root: root, FullName: true, Location: time.UTC})
		want := filepath.Join(root, "asn_Homework1_00000000000a", "usr_Liddell_Alice_000000000001", "sub_151016_125320_000000000001", "main.c")
		assert.Equal(t, fle1, plan.Paths[want])
	})

	t.Run("missing_user_falls_back_to_id", func(t *testing.T) {
		tree := scenarioTree()
		tree.Users = nil
		plan := Download(tree, DownloadOptions{Root: root, Location: time.UTC})
		want := filepath.Join(root, "asn_Homework1_00000000000a", "usr_"+usr1.String(), "sub_151016_125320_000000000001", "main.c")
		assert.Equal(t, fle1, plan.Paths[want])
	})
}

func TestDownload_ContainsRemoteNames(t *testing.T) {
	names := []string{
		"../../etc/passwd",
		"/abs/path.txt",
		"a/../../../b",
		`..\..\boot.ini`,
		"..",
		"???",
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			tree := scenarioTree()
			tree.Files[fle1] = model.Object{"name": name}
			tree.FileLists = map[model.ID][]model.ID{sub1: {fle1}}

			plan := Download(tree, DownloadOptions{Root: t.TempDir(), Location: time.UTC})
			require.Len(t, plan.Paths, 1)
			require.Len(t, plan.SubmissionDirs, 1)
			for path := range plan.Paths {
				subDir := plan.SubmissionDirs[0]
				assert.True(t, ioutils.Within(subDir, path), "%s escapes %s", path, subDir)
				assert.NotEqual(t, subDir, path)
				rel, err := filepath.Rel(subDir, path)
				require.NoError(t, err)
				assert.Equal(t, rel, ioutils.SanitizeRelative(rel))
			}
		})
	}
}

func TestDownload_CollidingNamesInOneSubmission(t *testing.T) {
	tree := scenarioTree()
	tree.FileLists = map[model.ID][]model.ID{sub1: {fle1, fle2}}

	plan := Download(tree, DownloadOptions{Root: "/dl", Location: time.UTC})
	require.Len(t, plan.Paths, 2)
	var suffixed int
	for path := range plan.Paths {
		if strings.HasSuffix(path, "main_"+fle2.Short()+".c") {
			suffixed++
		}
	}
	assert.Equal(t, 1, suffixed)
}

func TestDownload_CollisionOrderFollowsIDs(t *testing.T) {
	tree := scenarioTree()
	tree.FileLists = map[model.ID][]model.ID{sub1: {fle2, fle1}}

	plan := Download(tree, DownloadOptions{Root: "/dl", Location: time.UTC})
	dir := filepath.Join("/dl", "asn_Homework1_00000000000a", "usr_alice", "sub_151016_125320_000000000001")
	assert.Equal(t, fle1, plan.Paths[filepath.Join(dir, "main.c")])
	assert.Equal(t, fle2, plan.Paths[filepath.Join(dir, "main_"+fle2.Short()+".c")])
}

func TestDownload_SuffixedNameAlreadyTaken(t *testing.T) {
	fle3 := model.MustParseID("f0000000-0000-0000-0000-000000000003")
	tree := scenarioTree()
	tree.Files[fle3] = model.Object{"name": "main_" + fle2.Short() + ".c"}
	tree.FileLists = map[model.ID][]model.ID{sub1: {fle3, fle1, fle2}}

	plan := Download(tree, DownloadOptions{Root: "/dl", Location: time.UTC})
	dir := filepath.Join("/dl", "asn_Homework1_00000000000a", "usr_alice", "sub_151016_125320_000000000001")
	want := map[string]model.ID{
		filepath.Join(dir, "main.c"):                                   fle1,
		filepath.Join(dir, "main_"+fle2.Short()+".c"):                  fle2,
		filepath.Join(dir, "main_"+fle2.Short()+"_"+fle3.Short()+".c"): fle3,
	}
	if diff := cmp.Diff(want, plan.Paths); diff != "" {
		t.Errorf("Download() paths mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, plan.Orphans)

	// Three files with one name still get three paths.
	tree.Files[fle3] = model.Object{"name": "main.c"}
	tree.Files[fle2] = model.Object{"name": "main_" + fle3.Short() + ".c"}
	plan = Download(tree, DownloadOptions{Root: "/dl", Location: time.UTC})
	assert.Len(t, plan.Paths, 3)
	assert.Equal(t, fle3, plan.Paths[filepath.Join(dir, "main_"+fle3.Short()+"_2.c")])
}

func TestDownload_Orphans(t *testing.T) {
	tree := scenarioTree()
	missingSub := model.MustParseID("50000000-0000-0000-0000-0000000000ff")
	missingFile := model.MustParseID("f0000000-0000-0000-0000-0000000000ff")
	tree.FileLists[missingSub] = []model.ID{missingFile}
	tree.FileLists[sub2] = append(tree.FileLists[sub2], missingFile)
	delete(tree.Assignments, asnA)

	plan := Download(tree, DownloadOptions{Root: "/dl"})
	assert.Empty(t, plan.Paths)
	require.Len(t, plan.Orphans, 4)

	byMissing := map[model.Kind]int{}
	for _, o := range plan.Orphans {
		assert.Equal(t, model.KindFile, o.Kind)
		byMissing[o.Missing]++
		assert.Contains(t, o.String(), "skipped File")
	}
	assert.Equal(t, 1, byMissing[model.KindSubmission])
	assert.Equal(t, 3, byMissing[model.KindAssignment])

	tree = scenarioTree()
	tree.FileLists[sub1] = append(tree.FileLists[sub1], missingFile)
	plan = Download(tree, DownloadOptions{Root: "/dl"})
	assert.Len(t, plan.Paths, 2)
	require.Len(t, plan.Orphans, 1)
	assert.Equal(t, model.KindFile, plan.Orphans[0].Missing)
}
