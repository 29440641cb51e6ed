package model

import (
	"fmt"
	"strings"
)

// Kind is one of the resource categories exposed by the remote service.
type Kind int

const (
	KindAssignment Kind = iota
	KindTest
	KindSubmission
	KindRun
	KindFile
	KindUser
	KindReporter
)

var kindInfo = map[Kind]struct {
	name       string
	collection string
	parents    []Kind
}{
	KindAssignment: {"Assignment", "assignments", nil},
	KindTest:       {"Test", "tests", []Kind{KindAssignment}},
	KindSubmission: {"Submission", "submissions", []Kind{KindAssignment}},
	KindRun:        {"Run", "runs", []Kind{KindSubmission}},
	KindFile:       {"File", "files", []Kind{KindTest, KindSubmission}},
	KindUser:       {"User", "users", nil},
	KindReporter:   {"Reporter", "reporters", []Kind{KindTest}},
}

// Kinds lists every resource kind in hierarchy order.
func Kinds() []Kind {
	return []Kind{KindAssignment, KindTest, KindSubmission, KindRun, KindFile, KindUser, KindReporter}
}

// String returns the singular display name, e.g. "Submission".
func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Collection returns the REST collection name, which is also the key of list responses.
func (k Kind) Collection() string {
	return kindInfo[k].collection
}

// Parents returns the kinds k can be listed under.
func (k Kind) Parents() []Kind {
	return kindInfo[k].parents
}

// ListableUnder reports whether k can be listed beneath parent.
func (k Kind) ListableUnder(parent Kind) bool {
	for _, p := range kindInfo[k].parents {
		if p == parent {
			return true
		}
	}
	return false
}

// ParseKind accepts either the display name or the collection name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, info := range kindInfo {
		if s == strings.ToLower(info.name) || s == info.collection {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown resource kind %q", s)
}
