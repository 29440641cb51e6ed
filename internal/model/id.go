package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ID identifies one remote resource instance.
type ID uuid.UUID

// NilID is the synthetic parent used for top-level listings.
var NilID = ID(uuid.Nil)

// ParseID parses the canonical textual form of an identifier.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return NilID, fmt.Errorf("invalid identifier %q: %w", s, err)
	}
	return ID(u), nil
}

// MustParseID is like ParseID but panics on error. Intended for tests and constants.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// NewID returns a random identifier.
func NewID() ID {
	return ID(uuid.New())
}

// String returns the canonical 36 character form.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// Short returns the trailing 12 hex digits (the UUID node field).
//
// Short is a display convenience only and is never used as a map key.
func (id ID) Short() string {
	return fmt.Sprintf("%x", id[10:])
}

// IsNil reports whether id is the zero identifier.
func (id ID) IsNil() bool {
	return id == NilID
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseIDs parses every string in ss, failing on the first invalid entry.
func ParseIDs(ss []string) ([]ID, error) {
	ids := make([]ID, 0, len(ss))
	for _, s := range ss {
		id, err := ParseID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// IDSet is an unordered set of identifiers.
type IDSet map[ID]struct{}

// NewIDSet returns a set holding ids.
func NewIDSet(ids ...ID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id into the set.
func (s IDSet) Add(id ID) {
	s[id] = struct{}{}
}

// Has reports whether id is in the set.
func (s IDSet) Has(id ID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members ordered by their canonical string.
func (s IDSet) Sorted() []ID {
	ids := make([]ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids
}

// SortIDs orders ids by their canonical string form.
func SortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
