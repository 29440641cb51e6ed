package plan

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ioutils "github.com/handiism/cog-bulk/internal/io"
	"github.com/handiism/cog-bulk/internal/model"
)

// DownloadTree holds the objects fetched along Assignment, Submission, File
// plus the submission owners.
type DownloadTree struct {
	Assignments map[model.ID]model.Object
	Submissions map[model.ID]model.Object
	Files       map[model.ID]model.Object
	Users       map[model.ID]model.Object

	// FileLists maps a submission to the files listed under it.
	FileLists map[model.ID][]model.ID
}

// DownloadOptions controls how destination paths are named.
type DownloadOptions struct {
	Root string
	// FullUUID names every directory by the full identifier only.
	FullUUID bool
	// FullName uses "Last_First" plus the user suffix instead of the username.
	FullName bool
	// Location is used to render submission dates, time.Local when nil.
	Location *time.Location
}

// DownloadPlan maps every destination path to the file it receives.
type DownloadPlan struct {
	Paths          map[string]model.ID
	SubmissionDirs []string
	Orphans        []Orphan
}

// SortedPaths returns the destination paths in lexical order.
func (p *DownloadPlan) SortedPaths() []string {
	paths := make([]string, 0, len(p.Paths))
	for path := range p.Paths {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Download derives
//
//	<root>/asn_<name>_<short>/usr_<user>/sub_<yymmdd_HHMMSS>_<short>/<name>
//
// for every listed file. Submission directories embed the submission's own
// id, so two submissions sharing an owner and timestamp never collide.
// Files whose submission, assignment or file object is missing are reported
// as orphans instead.
func Download(tree DownloadTree, opts DownloadOptions) *DownloadPlan {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	p := &DownloadPlan{Paths: make(map[string]model.ID)}

	subIDs := make([]model.ID, 0, len(tree.FileLists))
	for id := range tree.FileLists {
		subIDs = append(subIDs, id)
	}
	model.SortIDs(subIDs)

	for _, suid := range subIDs {
		files := tree.FileLists[suid]
		subDir, orphan := submissionDir(tree, suid, opts, loc)
		if orphan != nil {
			for _, fuid := range files {
				o := *orphan
				o.Kind, o.Leaf = model.KindFile, fuid
				if o.Reason != "" {
					o.Reason = fmt.Sprintf("submission %s: %s", suid, o.Reason)
				}
				p.Orphans = append(p.Orphans, o)
			}
			continue
		}
		p.SubmissionDirs = append(p.SubmissionDirs, subDir)

		// Colliding names are resolved in id order, independent of the
		// order the server listed them in.
		files = append([]model.ID(nil), files...)
		model.SortIDs(files)

		for _, fuid := range files {
			fobj, ok := tree.Files[fuid]
			if !ok {
				p.Orphans = append(p.Orphans, missingRef(model.KindFile, fuid, model.KindFile, fuid))
				continue
			}
			rel := ioutils.SanitizeRelative(fobj.StringOr(model.AttrName, ""))
			if rel == "" {
				rel = fuid.String()
			}
			dest := p.free(filepath.Join(subDir, rel), fuid)
			p.Paths[dest] = fuid
		}
	}
	return p
}

func submissionDir(tree DownloadTree, suid model.ID, opts DownloadOptions, loc *time.Location) (string, *Orphan) {
	sub, ok := tree.Submissions[suid]
	if !ok {
		o := missingRef(model.KindSubmission, suid, model.KindSubmission, suid)
		return "", &o
	}
	auid, err := sub.Assignment()
	if err != nil {
		o := badAttr(model.KindSubmission, suid, err)
		return "", &o
	}
	asn, ok := tree.Assignments[auid]
	if !ok {
		o := missingRef(model.KindSubmission, suid, model.KindAssignment, auid)
		return "", &o
	}
	usid, err := sub.Owner()
	if err != nil {
		o := badAttr(model.KindSubmission, suid, err)
		return "", &o
	}

	if opts.FullUUID {
		return filepath.Join(opts.Root,
			"asn_"+auid.String(),
			"usr_"+usid.String(),
			"sub_"+suid.String(),
		), nil
	}

	created, err := sub.CreatedTime()
	if err != nil {
		o := badAttr(model.KindSubmission, suid, err)
		return "", &o
	}

	asnName := segment(asn.StringOr(model.AttrName, ""))
	return filepath.Join(opts.Root,
		fmt.Sprintf("asn_%s_%s", asnName, auid.Short()),
		userSegment(tree.Users[usid], usid, opts.FullName),
		fmt.Sprintf("sub_%s_%s", created.In(loc).Format("060102_150405"), suid.Short()),
	), nil
}

func userSegment(usr model.Object, usid model.ID, fullName bool) string {
	if usr == nil {
		return "usr_" + usid.String()
	}
	if fullName {
		name := segment(usr.StringOr(model.AttrLast, "") + "_" + usr.StringOr(model.AttrFirst, ""))
		return fmt.Sprintf("usr_%s_%s", name, usid.Short())
	}
	name := segment(usr.StringOr(model.AttrUsername, ""))
	if name == "" {
		return "usr_" + usid.String()
	}
	return "usr_" + name
}

// segment strips whitespace and anything outside the portable filename set
// from a display name.
func segment(name string) string {
	return ioutils.CleanFileName(ioutils.StripSpace(name))
}

// free returns dest, or dest suffixed with the file's short id (and a counter
// if that is taken as well) so no planned path is ever reused.
func (p *DownloadPlan) free(dest string, fuid model.ID) string {
	if _, taken := p.Paths[dest]; !taken {
		return dest
	}
	ext := filepath.Ext(dest)
	base := strings.TrimSuffix(dest, ext) + "_" + fuid.Short()
	candidate := base + ext
	for n := 2; ; n++ {
		if _, taken := p.Paths[candidate]; !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
}
